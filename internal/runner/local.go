package runner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Local runs crontab directly on the machine the provisioner runs on.
type Local struct {
	logger zerolog.Logger
}

// NewLocal creates a local runner.
func NewLocal(logger zerolog.Logger) *Local {
	return &Local{logger: logger.With().Str("runner", "local").Logger()}
}

func (l *Local) ReadCrontab(ctx context.Context, user string) (string, error) {
	cmd := exec.CommandContext(ctx, "crontab", crontabArgs(user, "-l")...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isEmptyCrontab(stderr.String()) {
			return "", nil
		}
		return "", classifyCrontabError("read", user, stderr.String(), err)
	}
	return stdout.String(), nil
}

func (l *Local) WriteCrontab(ctx context.Context, user, content string) error {
	cmd := exec.CommandContext(ctx, "crontab", crontabArgs(user, "-")...)
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classifyCrontabError("write", user, stderr.String(), err)
	}
	l.logger.Debug().Str("user", user).Int("bytes", len(content)).Msg("crontab written")
	return nil
}

func (l *Local) Close() error { return nil }

func crontabArgs(user string, rest ...string) []string {
	if user == "" {
		return rest
	}
	return append([]string{"-u", user}, rest...)
}
