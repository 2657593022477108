package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
)

var maxDevices int = 1000
var readingsPerDevice int = 20
var httpHostPort string = common.GetEnvOr("VITALS_BENCH_TARGET", "127.0.0.1:1080")

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))

type readingBody struct {
	HeartRate   float64   `json:"heartRate"`
	Temperature float64   `json:"temperature"`
	OxygenLevel float64   `json:"oxygenLevel"`
	Timestamp   time.Time `json:"timestamp"`
}

func main() {
	deviceIDs := common.Mapper(make([]int, maxDevices), func(int) string {
		return uuid.NewString()
	})
	fmt.Printf("generated %v device IDs\n", maxDevices)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		log.Fatal("Failed to connect to HTTP server:", err)
	}
	resp.Body.Close()

	// hold one websocket subscriber per device so every post fans out
	var received sync.Map
	var wg sync.WaitGroup
	for _, deviceID := range deviceIDs {
		wg.Add(1)
		go func(deviceID string) {
			defer wg.Done()
			url := fmt.Sprintf("ws://%s/ws/devices/%s", httpHostPort, deviceID)
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				log.Printf("dial failed for %s: %v", deviceID, err)
				return
			}
			defer conn.Close()

			count := 0
			conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
			for count < readingsPerDevice {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
				count++
			}
			received.Store(deviceID, count)
		}(deviceID)
	}

	start := time.Now()

	var postWg sync.WaitGroup
	for _, deviceID := range deviceIDs {
		postWg.Add(1)
		go func(deviceID string) {
			defer postWg.Done()
			for i := 0; i < readingsPerDevice; i++ {
				postReading(deviceID)
			}
		}(deviceID)
	}
	postWg.Wait()
	fmt.Printf("posted %v readings in %v\n", maxDevices*readingsPerDevice, time.Since(start))

	wg.Wait()

	total := 0
	received.Range(func(_, v any) bool {
		total += v.(int)
		return true
	})
	fmt.Printf("received %v envelopes across %v subscribers in %v\n", total, maxDevices, time.Since(start))
}

func postReading(deviceID string) {
	body := readingBody{
		HeartRate:   70 + rnd.Float64()*20,
		Temperature: 36.5 + rnd.Float64(),
		OxygenLevel: 95 + rnd.Float64()*3,
		Timestamp:   time.Now(),
	}
	payload, _ := json.Marshal(body)

	url := fmt.Sprintf("http://%s/devices/%s/readings", httpHostPort, deviceID)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("post failed for %s: %v", deviceID, err)
		return
	}
	resp.Body.Close()
}
