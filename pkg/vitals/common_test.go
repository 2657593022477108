package vitals

import (
	"bufio"
	"encoding/json"
	"io"
	"testing"

	"go.uber.org/mock/gomock"
	"vitalwatch.dev/vitals-telemetry-service/pkg/db"
	"vitalwatch.dev/vitals-telemetry-service/pkg/vitals/mocks"
)

func GetMockVitalsWithMemorySqliteDialector(t *testing.T, useMockIHistory, useMockIAlert, useMockIDevice bool) (
	*gomock.Controller,
	*Vitals,
	*mocks.MockIHistory,
	*mocks.MockIAlert,
	*mocks.MockIDevice,
) {
	ctrl := gomock.NewController(t)

	mockIHistory := mocks.NewMockIHistory(ctrl)
	mockIAlert := mocks.NewMockIAlert(ctrl)
	mockIDevice := mocks.NewMockIDevice(ctrl)
	dialector := db.UseMemorySqliteDialector()
	dbInstance := db.GetInstance(dialector) // ensure migrations
	vitalsInstance := &Vitals{Db: *dbInstance}

	historyService := vitalsInstance.GetIHistory()
	if useMockIHistory {
		historyService = mockIHistory
	}

	alertService := vitalsInstance.GetIAlert()
	if useMockIAlert {
		alertService = mockIAlert
	}

	deviceService := vitalsInstance.GetIDevice()
	if useMockIDevice {
		deviceService = mockIDevice
	}

	vitalsInstance.WithServices(ServiceOpts{
		History: historyService,
		Alert:   alertService,
		Device:  deviceService,
	})

	return ctrl, vitalsInstance, mockIHistory, mockIAlert, mockIDevice
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
