package os

import (
	"fmt"
	"os"
	"time"
)

// Get environment variable. If missing/empty, return fallback value.
func GetEnvOr(name, fallback string) string {
	val := os.Getenv(name)
	if val == "" {
		return fallback
	}
	return val
}

// Get environment variable as time.Duration (like "90s", "30m").
// If missing/empty, return fallback value.
//
// It is an error when the variable is set but not parsable.
func GetEnvDurationOr(name string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(name)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s: %w", name, err)
	}
	return d, nil
}
