package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	assert.Equal(t, "fallback", GetEnvString("TEST_ENV_STRING", "fallback"))

	t.Setenv("TEST_ENV_STRING", "value")
	assert.Equal(t, "value", GetEnvString("TEST_ENV_STRING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"unset", "", 7},
		{"valid", "42", 42},
		{"padded", " 12 ", 12},
		{"negative", "-3", -3},
		{"decimal falls back", "1.5", 7},
		{"garbage falls back", "ten", 7},
		{"trailing text falls back", "10s", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			assert.Equal(t, tt.want, GetEnvInt("TEST_ENV_INT", 7))
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_ENV_FLOAT", "0.25")
	assert.Equal(t, 0.25, GetEnvFloat("TEST_ENV_FLOAT", 1))

	t.Setenv("TEST_ENV_FLOAT", "quarter")
	assert.Equal(t, 1.0, GetEnvFloat("TEST_ENV_FLOAT", 1))
}

func TestGetEnvBool(t *testing.T) {
	for _, v := range []string{"1", "t", "true", "TRUE", "True"} {
		t.Setenv("TEST_ENV_BOOL", v)
		assert.True(t, GetEnvBool("TEST_ENV_BOOL", false), v)
	}
	for _, v := range []string{"0", "f", "false", "FALSE"} {
		t.Setenv("TEST_ENV_BOOL", v)
		assert.False(t, GetEnvBool("TEST_ENV_BOOL", true), v)
	}
	t.Setenv("TEST_ENV_BOOL", "yes")
	assert.True(t, GetEnvBool("TEST_ENV_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_ENV_DURATION", "1m30s")
	assert.Equal(t, 90*time.Second, GetEnvDuration("TEST_ENV_DURATION", time.Second))

	t.Setenv("TEST_ENV_DURATION", "90")
	assert.Equal(t, time.Second, GetEnvDuration("TEST_ENV_DURATION", time.Second))
}

func TestGetEnvStringList(t *testing.T) {
	t.Setenv("TEST_ENV_LIST", " bpm, ,key ,")
	assert.Equal(t, []string{"bpm", "key"}, GetEnvStringList("TEST_ENV_LIST", nil))

	t.Setenv("TEST_ENV_LIST", " , ")
	assert.Equal(t, []string{"genre"}, GetEnvStringList("TEST_ENV_LIST", []string{"genre"}))
}
