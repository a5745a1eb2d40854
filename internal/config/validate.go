package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one configuration finding.
type ValidationError struct {
	Field    string
	Message  string
	Severity Severity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is the list of findings for a configuration.
type ValidationErrors []ValidationError

// Errors returns only the findings with error severity.
func (v ValidationErrors) Errors() ValidationErrors {
	var out ValidationErrors
	for _, e := range v {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// Err joins the error-severity findings, or returns nil if there are none.
func (v ValidationErrors) Err() error {
	var errs []error
	for _, e := range v.Errors() {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func (v ValidationErrors) String() string {
	lines := make([]string, 0, len(v))
	for _, e := range v {
		lines = append(lines, fmt.Sprintf("[%s] %s", e.Severity, e.Error()))
	}
	return strings.Join(lines, "\n")
}

// Validate checks the configuration and returns every finding. Credentials
// only needed by some commands are reported as warnings.
func (c *Config) Validate() ValidationErrors {
	var v ValidationErrors
	add := func(sev Severity, field, format string, args ...any) {
		v = append(v, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Severity: sev})
	}

	if c.Provider != DefaultProvider {
		add(SeverityError, "provider", "unsupported provider %q: only %q is available", c.Provider, DefaultProvider)
	}
	if c.SSHUser == "" {
		add(SeverityError, "ssh_user", "is required")
	}
	if c.Concurrency < 1 {
		add(SeverityError, "concurrency", "must be at least 1, got %d", c.Concurrency)
	}
	if c.S3.Bucket == "" {
		add(SeverityError, "s3.bucket", "is required")
	}

	if c.SSHKeyPath == "" {
		add(SeverityWarning, "ssh_key_path", "not set: SSH_KEY_PATH is required for log collection")
	} else if _, err := os.Stat(c.SSHKeyPath); err != nil {
		add(SeverityError, "ssh_key_path", "cannot read %s: %v", c.SSHKeyPath, err)
	}
	if c.HCloud.Token == "" {
		add(SeverityWarning, "hcloud.token", "HCLOUD_TOKEN is not set: infra commands will fail")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		add(SeverityError, "s3", "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	return v
}
