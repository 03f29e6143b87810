package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("MULESOFT_URL", "http://mule:4797/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 10*time.Second, cfg.Notification.WebhookTimeout)
	assert.Equal(t, 3, cfg.Notification.MaxAttempts)
	assert.Equal(t, "http://mule:4797/api/webhooks/sla-notification", cfg.Notification.SLAWebhookURL())
	assert.Equal(t, "http://mule:4797/api/webhooks/ticket-notification", cfg.Notification.TicketWebhookURL())
	assert.Zero(t, cfg.SLA.WarningThresholdPercent)
	assert.Equal(t, "IT Service Desk", cfg.SLA.FallbackGroup)
	assert.Equal(t, time.Minute, cfg.SLA.SweepInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SLA_SWEEP_INTERVAL", "15s")
	t.Setenv("NOTIFY_WEBHOOK_MAX_ATTEMPTS", "5")
	t.Setenv("NOTIFY_WEBHOOK_TIMEOUT", "not-a-duration")
	t.Setenv("SLA_FALLBACK_GROUP", "Operations")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.SLA.SweepInterval)
	assert.Equal(t, 5, cfg.Notification.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Notification.WebhookTimeout)
	assert.Equal(t, "Operations", cfg.SLA.FallbackGroup)
}

func TestLoad_Threshold(t *testing.T) {
	for _, value := range []string{"150", "-5"} {
		t.Setenv("SLA_WARNING_THRESHOLD_PERCENT", value)
		_, err := Load()
		assert.Error(t, err, value)
	}

	t.Setenv("SLA_WARNING_THRESHOLD_PERCENT", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.SLA.WarningThresholdPercent)

	t.Setenv("SLA_WARNING_THRESHOLD_PERCENT", "90")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.SLA.WarningThresholdPercent)
}

func TestLoad_RejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}
