// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/xgcurate/internal/log"
	xnet "github.com/ManuGH/xgcurate/internal/platform/net"
)

// lookupEnv reads key and converts it with parse. Unset or blank variables
// and values parse rejects fall back to defaultValue; the outcome is logged
// at debug level (warn for rejected values).
func lookupEnv[T any](logger zerolog.Logger, key string, defaultValue T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return defaultValue
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", displayValue(key, raw)).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Str("value", displayValue(key, raw)).
		Str("source", "environment").
		Msg("using environment variable")
	return v
}

// displayValue keeps credentials out of the log.
func displayValue(key, value string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "token") || strings.Contains(lower, "password"):
		return "***"
	case strings.Contains(lower, "url"):
		return xnet.SanitizeURL(value)
	default:
		return value
	}
}

// ParseString reads a string from the environment or returns defaultValue.
// Surrounding whitespace is kept.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Str("value", displayValue(key, raw)).
		Str("source", "environment").
		Msg("using environment variable")
	return raw
}

// ParseInt reads an integer; unparsable values fall back to defaultValue.
func ParseInt(key string, defaultValue int) int {
	return lookupEnv(log.WithComponent("config"), key, defaultValue, strconv.Atoi)
}

// ParseDuration reads a Go duration such as "90s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return lookupEnv(log.WithComponent("config"), key, defaultValue, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, defaultValue bool) bool {
	return lookupEnv(log.WithComponent("config"), key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", s)
	})
}

// ParseList reads a comma-separated list. Blank items are dropped.
func ParseList(key string, defaultValue []string) []string {
	return lookupEnv(log.WithComponent("config"), key, defaultValue, func(s string) ([]string, error) {
		var out []string
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return out, nil
	})
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv expands ${VAR} references to set variables. Bare $ signs and
// unset variables are left as written.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
			return v
		}
		return ref
	})
}
