package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 180, cfg.Calendar.MinTermDays)
	assert.Equal(t, 730, cfg.Calendar.MaxTermDays)
	assert.True(t, cfg.Compliance.BlockOnMissedDeadline)
	assert.Equal(t, 3*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, "@every 1h", cfg.Archival.SweepSchedule)
	assert.Equal(t, "log", cfg.Notifications.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Aggregates.CacheTTL)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("NOTIFIER_DRIVER", "REDIS")
	v.Set("DB_LOCK_TIMEOUT", "bogus")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	cfg := fromViper(v)

	assert.Equal(t, "redis", cfg.Notifications.Driver)
	assert.Equal(t, 3*time.Second, cfg.Database.LockTimeout)
	require.Len(t, cfg.CORS.AllowedOrigins, 2)
	assert.Equal(t, "http://b.test", cfg.CORS.AllowedOrigins[1])
}

func TestCalendarLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, CalendarConfig{Timezone: "Nowhere/Invalid"}.Location())
	assert.Equal(t, time.UTC, CalendarConfig{}.Location())
}
