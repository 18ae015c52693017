// Package localexec delivers alerts by running an allow-listed local
// notifier command.
package localexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fentz26/cbclipper/internal/alerts"
)

// allowedCommands defines the strict allowlist of notifier commands.
var allowedCommands = map[string]bool{
	"notify-send": true,
	"osascript":   true,
	"paplay":      true,
	"afplay":      true,
}

// LocalExec implements alerts.Notifier by running a local command.
// Arguments may reference {title}, {message} and {mode}.
type LocalExec struct {
	command string
	args    []string
}

// New creates a LocalExec notifier. An empty command selects the platform
// default.
func New(command string, args []string) *LocalExec {
	if command == "" {
		command, args = DefaultCommand()
	}
	return &LocalExec{command: command, args: args}
}

// DefaultCommand returns the notifier command for the current platform.
func DefaultCommand() (string, []string) {
	if runtime.GOOS == "darwin" {
		return "osascript", []string{"-e", `display notification "{message}" with title "{title}"`}
	}
	return "notify-send", []string{"{title}", "{message}"}
}

// Name returns the notifier identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// IsAllowed checks if a command is in the allowlist.
func IsAllowed(cmd string) bool {
	return allowedCommands[cmd]
}

// Notify runs the configured command for a.
func (l *LocalExec) Notify(ctx context.Context, a alerts.Alert) (*alerts.ExecResult, error) {
	if !IsAllowed(l.command) {
		return nil, fmt.Errorf("command not allowed: %s", l.command)
	}

	args := expandArgs(l.args, a)
	execCmd := exec.CommandContext(ctx, l.command, args...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return nil, fmt.Errorf("exec error: %w", err)
		}
	}

	return &alerts.ExecResult{
		Command:  l.command,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func expandArgs(args []string, a alerts.Alert) []string {
	r := strings.NewReplacer(
		"{title}", a.Title,
		"{message}", a.Message,
		"{mode}", string(a.Mode),
	)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = r.Replace(arg)
	}
	return out
}
