package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func String(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Bool accepts true/1/yes in any case; anything else set is false.
func Bool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Seconds reads a whole number of seconds. Negative values clamp to zero.
func Seconds(name string, def int) time.Duration {
	return time.Duration(max(Int(name, def), 0)) * time.Second
}

// Millis reads a whole number of milliseconds. Negative values clamp to zero.
func Millis(name string, def int) time.Duration {
	return time.Duration(max(Int(name, def), 0)) * time.Millisecond
}
