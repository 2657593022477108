package ingest

import (
	"math/rand"
	"sync"
	"time"

	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

// Source produces the next candidate reading for a device. Candidates
// are untrusted: everything a Source hands out still goes through the
// validator before it is observable anywhere downstream.
type Source interface {
	Next(deviceID string) models.Reading
}

// SimulatedSource generates vitals around healthy baselines. With
// SpikeEvery > 0 every Nth candidate carries an implausible heart rate
// so the rejection path is exercised in normal operation.
type SimulatedSource struct {
	SpikeEvery int

	mu    sync.Mutex
	rnd   *rand.Rand
	count int
}

func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimulatedSource) Next(deviceID string) models.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++

	reading := models.Reading{
		HeartRate:   70 + s.rnd.Float64()*20,
		Temperature: 36.5 + s.rnd.Float64(),
		OxygenLevel: 95 + s.rnd.Float64()*3,
		Timestamp:   time.Now(),
	}

	if s.SpikeEvery > 0 && s.count%s.SpikeEvery == 0 {
		reading.HeartRate = 210 + s.rnd.Float64()*20
	}

	return reading
}
