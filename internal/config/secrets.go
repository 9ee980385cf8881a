package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ALIDDNS_"

// getEnv retrieves an environment variable value.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrFile retrieves a value from either a direct environment variable
// or a file path specified by the file key (Docker secrets pattern).
//
// If both are set, the file takes precedence. The file contents are trimmed
// of leading/trailing whitespace.
func getEnvOrFile(directKey, fileKey string) (string, error) {
	if filePath := os.Getenv(fileKey); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("%s: reading secret file: %w", fileKey, err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	return os.Getenv(directKey), nil
}

// lookupEnv returns the first non-empty value among ALIDDNS_<key> and the
// legacy names, together with the variable it came from.
func lookupEnv(key string, legacy ...string) (value, from string) {
	names := append([]string{EnvPrefix + key}, legacy...)
	for _, name := range names {
		if v := getEnv(name); v != "" {
			return v, name
		}
	}
	return "", ""
}

// parseBool parses a boolean string.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// parseDuration accepts a bare number of seconds or a Go duration.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use seconds or a format like 60s, 10m)", s)
	}
	return d, nil
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
