// Package runner abstracts how the provisioner reaches a target host's
// crontab: over SSH for inventory hosts, or directly via os/exec for the
// local machine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnreachable marks hosts the provisioner could not connect to.
var ErrUnreachable = errors.New("host unreachable")

// ErrPermissionDenied marks failures to act as the service user, typically
// crontab -u being refused for a non-privileged login.
var ErrPermissionDenied = errors.New("permission denied")

// Runner reads and writes a user's crontab on one host.
type Runner interface {
	ReadCrontab(ctx context.Context, user string) (string, error)
	WriteCrontab(ctx context.Context, user, content string) error
	Close() error
}

// crontabCommand builds the remote crontab invocation. op is "-l" to read
// or "-" to replace from stdin. An empty user targets the login user's own
// crontab.
func crontabCommand(user, op string) string {
	if user == "" {
		return "crontab " + op
	}
	return fmt.Sprintf("crontab -u %s %s", user, op)
}

// isEmptyCrontab reports whether crontab -l failed only because the user
// has no crontab yet.
func isEmptyCrontab(stderr string) bool {
	return strings.Contains(stderr, "no crontab for")
}

// isPermissionDenied recognises the stderr shapes crontab emits when -u is
// refused, across the common cron implementations.
func isPermissionDenied(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "must be privileged") ||
		strings.Contains(s, "permission denied") ||
		strings.Contains(s, "not allowed") ||
		strings.Contains(s, "operation not permitted")
}

// classifyCrontabError wraps a crontab failure with the matching sentinel.
func classifyCrontabError(op, user, stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if isPermissionDenied(msg) {
		return fmt.Errorf("%s crontab for %q: %w: %s", op, user, ErrPermissionDenied, msg)
	}
	if msg != "" {
		return fmt.Errorf("%s crontab for %q: %w: %s", op, user, err, msg)
	}
	return fmt.Errorf("%s crontab for %q: %w", op, user, err)
}
