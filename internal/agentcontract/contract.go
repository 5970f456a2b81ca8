// Package agentcontract is the registry of supported agent families
// (claude/codex/gemini). For each family it knows the launch binary, the
// install hint shown on failure, how to build argv for a given model and
// extra flags, whether the family accepts a non-interactive prompt
// argument, and how to parse its one-shot stdout.
//
// Adding a family is a matter of registering one more Contract; nothing
// else in the scheduler switches on agent type directly.
package agentcontract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Type tags one of the supported agent families.
type Type string

const (
	Claude Type = "claude"
	Codex  Type = "codex"
	Gemini Type = "gemini"
)

// PromptMode describes how a family accepts a one-shot prompt outside of
// the interactive REPL, if it supports that at all.
type PromptMode struct {
	Supported bool
	// Positional is true when the prompt is a bare trailing argv element;
	// when false, Flag names the single flag the prompt is passed under.
	Positional bool
	Flag       string
}

// OutputParser extracts the human-relevant text from a one-shot run's
// captured stdout.
type OutputParser func(stdout string) string

// Contract is everything the scheduler needs to know about an agent family.
type Contract struct {
	Type         Type
	Binary       string
	InstallHint  string
	PromptMode   PromptMode
	BaseArgs     []string
	ModelFlag    string
	ParseOutput  OutputParser
}

// BuildArgs builds the full launch argument list (excluding the binary
// itself) for a model override and extra passthrough flags.
func (c Contract) BuildArgs(model string, extraFlags []string) []string {
	args := append([]string{}, c.BaseArgs...)
	if model != "" && c.ModelFlag != "" {
		args = append(args, c.ModelFlag, model)
	}
	args = append(args, extraFlags...)
	return args
}

// PromptArgs returns the additional argv elements that deliver a
// non-interactive prompt, or nil if the family has no prompt mode.
func (c Contract) PromptArgs(prompt string) []string {
	if !c.PromptMode.Supported {
		return nil
	}
	if c.PromptMode.Positional {
		return []string{prompt}
	}
	return []string{c.PromptMode.Flag, prompt}
}

// NeedsPaneNotify reports whether the scheduler must, after spawning this
// family into a pane, wait for its REPL to come up and deliver the
// initial task instruction through the pane-input submitter rather than
// relying solely on argv. Claude has no prompt-mode at all, so this is
// its only delivery path. Gemini also needs it: its CLI still boots an
// interactive session and shows a first-run trust dialog even when a
// prompt is passed via -p, so the embedded prompt alone isn't enough to
// get it working. Codex's "exec" mode genuinely runs the prompt headless
// to completion, so it is the one family that skips this step.
func (c Contract) NeedsPaneNotify() bool {
	return c.Type != Codex
}

// NeedsTrustConfirm reports whether the scheduler must dismiss a
// known first-run "do you trust this directory" prompt before the
// initial task notification will land. Only Gemini shows this dialog in
// practice.
func (c Contract) NeedsTrustConfirm() bool {
	return c.Type == Gemini
}

func trimParser(stdout string) string {
	return strings.TrimSpace(stdout)
}

// registry is the default set of known agent families. It is a package
// variable rather than a literal map lookup scattered across call sites so
// a fourth family can be added by appending one Contract.
var registry = map[Type]Contract{
	Claude: {
		Type:        Claude,
		Binary:      "claude",
		InstallHint: "install the Claude CLI: https://docs.claude.com/claude-code",
		BaseArgs:    []string{"--dangerously-skip-permissions"},
		ModelFlag:   "--model",
		ParseOutput: trimParser,
	},
	Codex: {
		Type:        Codex,
		Binary:      "codex",
		InstallHint: "install the Codex CLI: npm install -g @openai/codex",
		BaseArgs:    []string{"exec", "--json", "--dangerously-bypass-approvals-and-sandbox", "--skip-git-repo-check"},
		ModelFlag:   "--model",
		PromptMode:  PromptMode{Supported: true, Positional: true},
		ParseOutput: parseCodexOutput,
	},
	Gemini: {
		Type:        Gemini,
		Binary:      "gemini",
		InstallHint: "install the Gemini CLI: npm install -g @google/gemini-cli",
		BaseArgs:    []string{"--yolo"},
		ModelFlag:   "--model",
		PromptMode:  PromptMode{Supported: true, Positional: false, Flag: "-p"},
		ParseOutput: trimParser,
	},
}

// Get returns the Contract for a type, and a NotFoundError if it isn't
// registered.
func Get(t Type) (Contract, error) {
	c, ok := registry[t]
	if !ok {
		return Contract{}, &NotFoundError{Type: t}
	}
	return c, nil
}

// ForIndex resolves the agent type for a worker slot per spec §4.7:
// agentTypes[workerIndex mod len(agentTypes)], falling back to the first
// entry, and falling back to Claude if the list is empty.
func ForIndex(agentTypes []Type, workerIndex int) Type {
	if len(agentTypes) == 0 {
		return Claude
	}
	return agentTypes[workerIndex%len(agentTypes)]
}

// NotFoundError is returned when a requested agent type has no registered
// Contract.
type NotFoundError struct {
	Type Type
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no contract registered for agent type %q", e.Type)
}

// NotAvailableError is returned by Probe when the family's binary cannot
// be found or does not respond to --version in time.
type NotAvailableError struct {
	Type   Type
	Binary string
	Hint   string
	Cause  error
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("agent %q (%s) is not available: %v — %s", e.Type, e.Binary, e.Cause, e.Hint)
}

func (e *NotAvailableError) Unwrap() error { return e.Cause }

const probeTimeout = 5 * time.Second

// Probe invokes "<binary> --version" with a 5 second timeout and returns
// nil when the process exits 0.
func Probe(ctx context.Context, t Type) error {
	c, err := Get(t)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Binary, "--version")
	if err := cmd.Run(); err != nil {
		return &NotAvailableError{Type: t, Binary: c.Binary, Hint: c.InstallHint, Cause: err}
	}
	return nil
}

// ValidateOrFail probes the family and returns a NotAvailableError
// carrying the install hint when it's missing; callers surface this at
// team-start time and fail fast before creating any filesystem or
// multiplexer state.
func ValidateOrFail(ctx context.Context, t Type) error {
	return Probe(ctx, t)
}

// BuildArgv composes the full argv (binary plus arguments) for spawning a
// worker of the given type.
func BuildArgv(t Type, model string, extraFlags []string) ([]string, error) {
	c, err := Get(t)
	if err != nil {
		return nil, err
	}
	args := c.BuildArgs(model, extraFlags)
	return append([]string{c.Binary}, args...), nil
}

// Env derives the worker's environment variables per spec §4.2.
func Env(teamName, workerName string, t Type) map[string]string {
	return map[string]string{
		"OMC_TEAM_WORKER":     fmt.Sprintf("%s/%s", teamName, workerName),
		"OMC_TEAM_NAME":       teamName,
		"OMC_WORKER_AGENT_TYPE": string(t),
	}
}
