package tmux

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// LaunchSpec describes a worker process to spawn into a pane.
type LaunchSpec struct {
	Env  map[string]string
	Argv []string // argv[0] is the binary name, resolved on PATH
}

// BuildLaunchCommand assembles the shell command line that, once sent as
// literal keystrokes followed by Enter, exports the worker's environment,
// sources the user's rc file when a POSIX-like shell is in use, and execs
// the agent binary so it replaces the shell as the pane's foreground
// process (so pane-death detection later reflects the agent, not a
// surviving shell).
func BuildLaunchCommand(spec LaunchSpec) (string, error) {
	for k := range spec.Env {
		if err := ValidateEnvKey(k); err != nil {
			return "", err
		}
	}

	if isWindowsCmd() {
		return buildCmdLaunchCommand(spec), nil
	}
	return buildPosixLaunchCommand(spec), nil
}

// isWindowsCmd reports whether the pane's shell is Windows cmd.exe rather
// than a POSIX-like shell (bash/zsh, including MSYS/Git Bash emulations).
func isWindowsCmd() bool {
	if runtime.GOOS != "windows" {
		return false
	}
	if os.Getenv("MSYSTEM") != "" || os.Getenv("SHELL") != "" {
		return false
	}
	return os.Getenv("COMSPEC") != ""
}

func buildPosixLaunchCommand(spec LaunchSpec) string {
	var b strings.Builder
	for k, v := range spec.Env {
		fmt.Fprintf(&b, "export %s=%s; ", k, shellQuote(v))
	}

	home := os.Getenv("HOME")
	if home != "" {
		for _, rc := range []string{".bashrc", ".zshrc"} {
			rcPath := home + "/" + rc
			fmt.Fprintf(&b, "[ -f %s ] && . %s; ", shellQuote(rcPath), shellQuote(rcPath))
		}
	}

	b.WriteString("exec ")
	for i, a := range spec.Argv {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(shellQuote(a))
	}
	return b.String()
}

func buildCmdLaunchCommand(spec LaunchSpec) string {
	var parts []string
	for k, v := range spec.Env {
		parts = append(parts, fmt.Sprintf("set %s=%s", k, v))
	}
	var argv []string
	for _, a := range spec.Argv {
		if strings.ContainsAny(a, " \t") {
			argv = append(argv, `"`+strings.ReplaceAll(a, `"`, `\"`)+`"`)
		} else {
			argv = append(argv, a)
		}
	}
	parts = append(parts, strings.Join(argv, " "))
	return strings.Join(parts, " && ")
}

// SpawnWorkerInPane sends the assembled launch command into paneID as
// literal keystrokes followed by a newline.
func (o *Ops) SpawnWorkerInPane(ctx context.Context, paneID string, spec LaunchSpec) error {
	cmdLine, err := BuildLaunchCommand(spec)
	if err != nil {
		return err
	}
	if err := o.SendKeysLiteral(ctx, paneID, cmdLine); err != nil {
		return fmt.Errorf("spawn worker in pane %s: %w", paneID, err)
	}
	if err := o.SendKeyName(ctx, paneID, "Enter"); err != nil {
		return fmt.Errorf("spawn worker in pane %s: submit: %w", paneID, err)
	}
	return nil
}
