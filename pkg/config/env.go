// Package config reads process settings from environment variables.
//
// Unset or empty variables yield the default. Malformed values also yield
// the default and are logged at warn level, so a typo never stops a process
// from starting with a sane setting.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvString returns the value of key, or defaultValue when unset.
//
//	addr := GetEnvString("API_ADDR", ":8080")
func GetEnvString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt parses key as a base-10 integer.
//
//	n := GetEnvInt("REPLAY_CONCURRENCY", 4)
func GetEnvInt(key string, defaultValue int) int {
	return parse(key, defaultValue, func(s string) (int, error) {
		return strconv.Atoi(strings.TrimSpace(s))
	})
}

// GetEnvFloat parses key as a float64.
func GetEnvFloat(key string, defaultValue float64) float64 {
	return parse(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	})
}

// GetEnvBool parses key with strconv.ParseBool ("1", "t", "true", "0", "f",
// "false" in any case).
func GetEnvBool(key string, defaultValue bool) bool {
	return parse(key, defaultValue, func(s string) (bool, error) {
		return strconv.ParseBool(strings.TrimSpace(s))
	})
}

// GetEnvDuration parses key with time.ParseDuration.
//
//	timeout := GetEnvDuration("REPLAY_TIMEOUT", 2*time.Minute)
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return parse(key, defaultValue, func(s string) (time.Duration, error) {
		return time.ParseDuration(strings.TrimSpace(s))
	})
}

// GetEnvStringList splits key on commas, trimming blanks and dropping empty
// items. A list with no items yields defaultValue.
//
//	// ENRICH_FIELDS="bpm, key"
//	fields := GetEnvStringList("ENRICH_FIELDS", nil) // ["bpm", "key"]
func GetEnvStringList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func parse[T any](key string, defaultValue T, fn func(string) (T, error)) T {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := fn(valueStr)
	if err != nil {
		slog.Warn("invalid value for environment variable, using default",
			slog.String("key", key),
			slog.String("value", valueStr),
			slog.Any("default", defaultValue),
			slog.String("error", err.Error()))
		return defaultValue
	}
	return value
}
