package util

import (
	"os"
	"strings"
)

// GetEnvironmentVariables returns the BUSPULSE_ prefixed environment
// variables, keyed by their full names.
func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		if !strings.HasPrefix(pair[0], "BUSPULSE_") {
			continue
		}

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}
