// Package config loads fail-open settings for long-running components.
//
// A Load* call never fails: a missing variable yields the default, and an
// unparsable or invalid one yields the default plus a warning. Callers log
// the warning and count it in ConfigMetrics so a bad deploy is visible
// without taking the process down.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Result is the outcome of loading one variable.
type Result[T any] struct {
	Value T
	// Warning explains why the default was used. Empty unless FallbackApplied.
	Warning         string
	FallbackApplied bool
}

// Load reads key, parses it and validates it. validate may be nil.
func Load[T any](key string, def T, parse func(string) (T, error), validate func(T) error) Result[T] {
	raw := os.Getenv(key)
	if raw == "" {
		return Result[T]{Value: def}
	}

	v, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(v)
	}
	if err != nil {
		return Result[T]{
			Value:           def,
			Warning:         fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", key, raw, err, def),
			FallbackApplied: true,
		}
	}
	return Result[T]{Value: v}
}

// LoadString loads a string. An empty variable counts as unset.
func LoadString(key, def string, validate func(string) error) Result[string] {
	return Load(key, def, func(s string) (string, error) { return s, nil }, validate)
}

// LoadInt loads a base-10 integer.
func LoadInt(key string, def int, validate func(int) error) Result[int] {
	return Load(key, def, strconv.Atoi, validate)
}

// LoadDuration loads a Go duration string such as "90s" or "1h30m".
func LoadDuration(key string, def time.Duration, validate func(time.Duration) error) Result[time.Duration] {
	return Load(key, def, time.ParseDuration, validate)
}

// LoadBool loads anything strconv.ParseBool accepts.
func LoadBool(key string, def bool) Result[bool] {
	return Load(key, def, strconv.ParseBool, nil)
}
