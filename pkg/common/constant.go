package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyVitalsDBType string = "VITALS_DB_TYPE"
	EnvKeyVitalsDbPath string = "VITALS_DB_PATH"

	EnvKeyVitalsHttpHostPort string = "VITALS_HTTP_HOST_PORT"

	EnvKeyVitalsDefaultRate  string = "VITALS_DEFAULT_RATE"
	EnvKeyVitalsDefaultBurst string = "VITALS_DEFAULT_BURST"

	EnvKeyVitalsHistoryCap       string = "VITALS_HISTORY_CAP"
	EnvKeyVitalsSampleIntervalMs string = "VITALS_SAMPLE_INTERVAL_MS"

	EnvKeyVitalsRedisAddr string = "VITALS_REDIS_ADDR"

	LoggerNameVitalsCore      string = "vitals_core"
	LoggerNameBroadcastHub    string = "broadcast_hub"
	LoggerNameIngestLoop      string = "ingest_loop"
	LoggerNameSubscription    string = "subscription"
	LoggerNameRestfulServer   string = "restful_server"
	LoggerFieldVitalsCategory string = "category"
	LoggerCategoryHistory     string = "history"
	LoggerCategoryAlert       string = "alert"
	LoggerCategoryDevice      string = "device"
	LoggerCategoryValidate    string = "validate"
)
