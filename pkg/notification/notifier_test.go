package notification

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeviceAlertBody(t *testing.T) {
	alert := DeviceAlert{
		AccountID:        "6f1c1f5e-0000-4000-8000-000000000001",
		DeviceIdentifier: "dev-abc",
		Model:            "Pixel 8",
		Platform:         "android",
		OccurredAt:       time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}

	body := alert.Body()
	assert.Contains(t, body, "6f1c1f5e-0000-4000-8000-000000000001")
	assert.Contains(t, body, "dev-abc")
	assert.Contains(t, body, "Pixel 8")
	assert.Contains(t, body, "2025-03-10T09:30:00Z")
}

func TestMockNotifierRecordsAlerts(t *testing.T) {
	mock := &MockNotifier{}

	err := mock.SendDeviceAlert(DeviceAlert{DeviceIdentifier: "dev-1"})
	assert.NoError(t, err)
	sent := mock.SentAlerts()
	assert.Len(t, sent, 1)
	assert.Equal(t, "dev-1", sent[0].DeviceIdentifier)
}

func TestMockNotifierFailInjection(t *testing.T) {
	mock := &MockNotifier{Fail: errors.New("smtp down")}

	err := mock.SendDeviceAlert(DeviceAlert{DeviceIdentifier: "dev-1"})
	assert.Error(t, err)
	assert.Empty(t, mock.SentAlerts())
}
