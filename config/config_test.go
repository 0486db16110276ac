package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MAX_MODULE_DEPTH", "5")
	t.Setenv("WS_PING_INTERVAL", "30s")
	t.Setenv("WS_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("REDIS_ADDR", "")

	LoadConfig()

	assert.Equal(t, "8080", AppConfig.Port)
	assert.Equal(t, 5, AppConfig.MaxModuleDepth)
	assert.Equal(t, 30*time.Second, AppConfig.PingInterval)
	assert.True(t, AppConfig.WSInsecureSkipVerify)
	assert.Empty(t, AppConfig.RedisAddr)
	assert.Equal(t, "coursehub:changes", AppConfig.RedisChannel)
}

func TestLoadConfigFallsBackOnBadValues(t *testing.T) {
	t.Setenv("MAX_MODULE_DEPTH", "deep")
	t.Setenv("WS_PING_INTERVAL", "soon")
	t.Setenv("WS_INSECURE_SKIP_VERIFY", "maybe")

	LoadConfig()

	assert.Equal(t, 3, AppConfig.MaxModuleDepth)
	assert.Equal(t, 25*time.Second, AppConfig.PingInterval)
	assert.False(t, AppConfig.WSInsecureSkipVerify)
}

func TestLoadConfigClampsDepth(t *testing.T) {
	t.Setenv("MAX_MODULE_DEPTH", "0")
	LoadConfig()
	assert.Equal(t, 1, AppConfig.MaxModuleDepth)
}
