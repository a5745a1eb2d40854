package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Reachability      time.Duration // Time allowed for new machines to accept SSH
	ServerCreate      time.Duration // Timeout for the infra apply
	SSHMaxRetries     int           // Connection attempts per SSH dial
	SSHRetryDelay     time.Duration // Delay between SSH connection attempts
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - TESTNET_TIMEOUT_REACHABILITY (default: 10m)
//   - TESTNET_TIMEOUT_SERVER_CREATE (default: 20m)
//   - TESTNET_SSH_MAX_RETRIES (default: 30)
//   - TESTNET_SSH_RETRY_DELAY (default: 10s)
//   - TESTNET_RETRY_MAX_ATTEMPTS (default: 5)
//   - TESTNET_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Reachability:      parseDuration("TESTNET_TIMEOUT_REACHABILITY", 10*time.Minute),
		ServerCreate:      parseDuration("TESTNET_TIMEOUT_SERVER_CREATE", 20*time.Minute),
		SSHMaxRetries:     parseInt("TESTNET_SSH_MAX_RETRIES", 30),
		SSHRetryDelay:     parseDuration("TESTNET_SSH_RETRY_DELAY", 10*time.Second),
		RetryMaxAttempts:  parseInt("TESTNET_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("TESTNET_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
