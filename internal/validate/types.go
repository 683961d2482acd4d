// SPDX-License-Identifier: MIT

package validate

import (
	"fmt"
	"slices"
)

// LogLevels lists the accepted log level names.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// ParseLogLevel returns s when it names a level in LogLevels.
func ParseLogLevel(s string) (string, error) {
	if !slices.Contains(LogLevels, s) {
		return "", fmt.Errorf("invalid log level %q (must be one of %v)", s, LogLevels)
	}
	return s, nil
}
