package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/db"
	"vitalwatch.dev/vitals-telemetry-service/pkg/hub"
	vitalsHttp "vitalwatch.dev/vitals-telemetry-service/pkg/http"
	"vitalwatch.dev/vitals-telemetry-service/pkg/ingest"
	"vitalwatch.dev/vitals-telemetry-service/pkg/vitals"
	"vitalwatch.dev/vitals-telemetry-service/pkg/ws"
)

func main() {
	var err error

	err = godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file, copy .env.example to .env first if in development")
	}

	var dbInstance *db.DB
	vitalsDbType := os.Getenv(common.EnvKeyVitalsDBType)
	switch vitalsDbType {
	case "file":
		dbInstance = db.GetInstance(db.UseSqliteDialector())
	case "memory":
		dbInstance = db.GetInstance(db.UseMemorySqliteDialector())
	default:
		log.Fatal("Unknown VITALS_DB_TYPE: " + vitalsDbType)
	}

	httpHostPort := strings.TrimSpace(os.Getenv(common.EnvKeyVitalsHttpHostPort))

	var defaultRate float64
	var defaultBurst int64

	if defaultRate, err = strconv.ParseFloat(os.Getenv(common.EnvKeyVitalsDefaultRate), 64); err != nil {
		log.Fatal("Invalid VITALS_DEFAULT_RATE, or not set in .env, should be a float64 value")
	}

	if defaultBurst, err = strconv.ParseInt(os.Getenv(common.EnvKeyVitalsDefaultBurst), 10, 64); err != nil {
		log.Fatal("Invalid VITALS_DEFAULT_BURST, or not set in .env, should be an int value")
	}

	historyCap := vitals.DefaultHistoryCap
	if raw := os.Getenv(common.EnvKeyVitalsHistoryCap); raw != "" {
		if historyCap, err = strconv.Atoi(raw); err != nil || historyCap <= 0 {
			log.Fatal("Invalid VITALS_HISTORY_CAP, should be a positive int value")
		}
	}

	sampleInterval := ingest.DefaultSampleInterval
	if raw := os.Getenv(common.EnvKeyVitalsSampleIntervalMs); raw != "" {
		var ms int
		if ms, err = strconv.Atoi(raw); err != nil || ms <= 0 {
			log.Fatal("Invalid VITALS_SAMPLE_INTERVAL_MS, should be a positive int value")
		}
		sampleInterval = time.Duration(ms) * time.Millisecond
	}

	logger := common.GetLogger()

	vitalsCore := vitals.Vitals{
		Db:         *dbInstance,
		HistoryCap: historyCap,
	}
	vitalsCore.WithServices(vitals.ServiceOpts{
		History: vitalsCore.GetIHistory(),
		Alert:   vitalsCore.GetIAlert(),
		Device:  vitalsCore.GetIDevice(),
	})

	broadcastHub := hub.NewHub()

	manager := ingest.NewManager(&vitalsCore, broadcastHub, ingest.NewSimulatedSource())
	manager.Interval = sampleInterval
	defer manager.Shutdown()

	if redisAddr := strings.TrimSpace(os.Getenv(common.EnvKeyVitalsRedisAddr)); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		bridge := hub.NewRedisBridge(client, broadcastHub)
		manager.Bridge = bridge

		go func() {
			if err := bridge.RunRelay(context.Background()); err != nil && err != context.Canceled {
				logger.Warn("Redis relay stopped", zap.Error(err))
			}
		}()

		logger.Info("Redis fan-out bridge enabled", zap.String("addr", redisAddr))
	}

	if httpHostPort == "" {
		// fallback to default http port
		httpHostPort = ":1080"
	}

	engine := gin.Default()

	rs := &vitalsHttp.RestfulServer{
		Server:           engine,
		Vitals:           &vitalsCore,
		Hub:              broadcastHub,
		RateLimiterStore: vitals.NewRateLimiterStore(rate.Limit(defaultRate), int(defaultBurst)),
	}
	rs.Setup()

	wsServer := ws.NewWsServer(broadcastHub, manager)
	wsServer.Setup(engine)

	logger.Info("Server created with:",
		zap.Float64("default_rate", defaultRate),
		zap.Int64("default_burst", defaultBurst),
		zap.Int("history_cap", historyCap),
		zap.Duration("sample_interval", sampleInterval))

	logger.Info("Starting HTTP server on: " + httpHostPort)
	if err := engine.Run(httpHostPort); err != nil {
		log.Fatalf("http server failed to serve: %v", err)
	}
}
