// Package notification delivers security alerts raised by the session
// guard, currently a single alert type for sign-in attempts from an
// unrecognized device.
package notification

import (
	"fmt"
	"sync"
	"time"
)

// DeviceAlert describes a denied sign-in attempt.
type DeviceAlert struct {
	AccountID        string
	DeviceIdentifier string
	Model            string
	Platform         string
	OccurredAt       time.Time
}

// Subject returns the alert email subject line.
func (a DeviceAlert) Subject() string {
	return "Unauthorized device sign-in attempt"
}

// Body returns the plain-text alert message.
func (a DeviceAlert) Body() string {
	return fmt.Sprintf(
		"A sign-in attempt for account %s was denied.\n\n"+
			"Device: %s\nModel: %s\nPlatform: %s\nTime: %s\n\n"+
			"If this was you, contact your administrator to register the device.",
		a.AccountID,
		a.DeviceIdentifier,
		a.Model,
		a.Platform,
		a.OccurredAt.UTC().Format(time.RFC3339),
	)
}

// Notifier sends a device alert to the configured recipient.
type Notifier interface {
	SendDeviceAlert(alert DeviceAlert) error
}

// MockNotifier records alerts for tests. Safe for concurrent use.
type MockNotifier struct {
	Fail error

	mu   sync.Mutex
	sent []DeviceAlert
}

func (m *MockNotifier) SendDeviceAlert(alert DeviceAlert) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, alert)
	return nil
}

// SentAlerts returns a copy of the alerts recorded so far.
func (m *MockNotifier) SentAlerts() []DeviceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeviceAlert(nil), m.sent...)
}
