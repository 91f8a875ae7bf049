// output-on-error runs a command, swallowing its output unless it fails.
// On a nonzero exit the buffered output is written to stderr and the
// child's exit code is propagated, so cron only mails when something
// actually went wrong.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: output-on-error <command> [args...]")
		os.Exit(64)
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	if err == nil {
		return
	}

	_, _ = os.Stderr.Write(buf.Bytes())

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(127)
}
