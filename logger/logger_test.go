package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactHidesSecrets(t *testing.T) {
	kv := []interface{}{"userId", 3, "Token", "abc.def.ghi", "dangling"}
	out := redact(kv)
	assert.Equal(t, []interface{}{"userId", 3, "Token", "[REDACTED]", "dangling"}, out)
	assert.Equal(t, "abc.def.ghi", kv[3], "input must not be modified")
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production"} {
		log, err := New(mode)
		require.NoError(t, err)
		log.With("component", "test").Debug("hello", "token", "secret")
	}
}
