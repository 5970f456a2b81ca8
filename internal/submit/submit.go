// Package submit delivers a short text message into a pane running an
// interactive agent REPL and detects that it was consumed, without
// disturbing the pane if the user is in scrollback/copy-mode or the REPL
// is blocked on a confirmation prompt. It never returns an error: per
// spec §4.4 the contract is a bool — true when consumed, false when it
// could not be delivered safely — because a failed submit is an expected,
// frequent outcome (busy pane, copy-mode) and not exceptional.
package submit

import (
	"context"
	"log"
	"os"
	"regexp"
	"strings"
	"time"
)

const (
	maxMessageLength = 200
	submissionRounds = 6
	retryRounds      = 4
	roundDelay       = 100 * time.Millisecond
)

// Multiplexer is the subset of tmux operations the submitter needs. It is
// declared here, not in package tmux, so tests can supply a fake without
// spawning real tmux processes.
type Multiplexer interface {
	CapturePane(ctx context.Context, paneID string, lines int) (string, error)
	IsPaneInCopyMode(ctx context.Context, paneID string) (bool, error)
	SendKeysLiteral(ctx context.Context, paneID, text string) error
	SendKeyName(ctx context.Context, paneID, keyName string) error
}

// Sleeper abstracts time.Sleep so tests run instantly.
type Sleeper func(time.Duration)

// Submitter delivers messages into panes per the state machine in spec §4.4.
type Submitter struct {
	Mux   Multiplexer
	Sleep Sleeper
}

// New returns a Submitter using mux and real sleeps.
func New(mux Multiplexer) *Submitter {
	return &Submitter{Mux: mux, Sleep: time.Sleep}
}

var trustPromptPattern = regexp.MustCompile(`(?i)do you trust the contents of this directory\?`)
var trustChoicePattern = regexp.MustCompile(`(?i)yes, continue|no, quit|press enter to continue`)
var busyPattern = regexp.MustCompile(`(?i)esc to interrupt|background terminal running`)
var readyPromptGlyphs = []string{"›", ">", "❯"}
var readyHintPattern = regexp.MustCompile(`(?i)gpt-[a-z0-9.-]+|\d+% left`)

func adaptiveRetryDisabled() bool {
	return os.Getenv("OMX_TEAM_AUTO_INTERRUPT_RETRY") == "0"
}

func truncate(message string) string {
	runes := []rune(message)
	if len(runes) <= maxMessageLength {
		return message
	}
	log.Printf("submit: message truncated from %d to %d characters", len(runes), maxMessageLength)
	return string(runes[:maxMessageLength])
}

// looksReady implements the "ready" heuristic: the tail shows a prompt
// glyph or an agent hint (model identifier, "N% left" token).
func looksReady(tail string) bool {
	for _, glyph := range readyPromptGlyphs {
		if strings.Contains(tail, glyph) {
			return true
		}
	}
	return readyHintPattern.MatchString(tail)
}

func showsTrustPrompt(tail string) bool {
	return trustPromptPattern.MatchString(tail) && trustChoicePattern.MatchString(tail)
}

func isBusy(tail string) bool {
	return busyPattern.MatchString(tail)
}

func containsLine(tail, message string) bool {
	return strings.Contains(tail, message)
}

// Submit delivers message into paneID, returning true once it has been
// consumed by the REPL.
func (s *Submitter) Submit(ctx context.Context, paneID, message string) bool {
	message = truncate(message)

	inCopyMode, err := s.Mux.IsPaneInCopyMode(ctx, paneID)
	if err != nil || inCopyMode {
		return false
	}

	tail, err := s.Mux.CapturePane(ctx, paneID, 80)
	if err != nil {
		return false
	}

	if showsTrustPrompt(tail) {
		s.Mux.SendKeyName(ctx, paneID, "Enter")
		s.sleep(50 * time.Millisecond)
		s.Mux.SendKeyName(ctx, paneID, "Enter")
		s.sleep(50 * time.Millisecond)
		tail, err = s.Mux.CapturePane(ctx, paneID, 80)
		if err != nil {
			return false
		}
	}

	busy := isBusy(tail)

	if err := s.Mux.SendKeysLiteral(ctx, paneID, message); err != nil {
		return false
	}

	if s.submissionLoop(ctx, paneID, message, busy, submissionRounds) {
		return true
	}

	if s.adaptiveRetryAllowed(ctx, paneID, message, busy) {
		s.Mux.SendKeyName(ctx, paneID, "C-u")
		if err := s.Mux.SendKeysLiteral(ctx, paneID, message); err == nil {
			if s.submissionLoop(ctx, paneID, message, false, retryRounds) {
				return true
			}
		}
	}

	inCopyMode, err = s.Mux.IsPaneInCopyMode(ctx, paneID)
	if err == nil && inCopyMode {
		return false
	}

	s.doubleEnter(ctx, paneID)
	return true
}

// submissionLoop performs up to `rounds` rounds of waiting ~100ms then
// submitting, re-capturing after each to check the message line is gone.
func (s *Submitter) submissionLoop(ctx context.Context, paneID, message string, busyFirstRound bool, rounds int) bool {
	for round := 0; round < rounds; round++ {
		s.sleep(roundDelay)

		if round == 0 && busyFirstRound {
			s.Mux.SendKeyName(ctx, paneID, "Tab")
			s.Mux.SendKeyName(ctx, paneID, "Enter")
		} else {
			s.doubleEnter(ctx, paneID)
		}

		tail, err := s.Mux.CapturePane(ctx, paneID, 80)
		if err != nil {
			continue
		}
		if !containsLine(tail, message) {
			return true
		}
	}
	return false
}

func (s *Submitter) doubleEnter(ctx context.Context, paneID string) {
	s.Mux.SendKeyName(ctx, paneID, "Enter")
	s.sleep(50 * time.Millisecond)
	s.Mux.SendKeyName(ctx, paneID, "Enter")
}

// adaptiveRetryAllowed checks every condition in spec §4.4 step 6 before
// permitting the single clear-and-resend retry.
func (s *Submitter) adaptiveRetryAllowed(ctx context.Context, paneID, message string, busy bool) bool {
	if adaptiveRetryDisabled() {
		return false
	}
	inCopyMode, err := s.Mux.IsPaneInCopyMode(ctx, paneID)
	if err != nil || inCopyMode {
		return false
	}
	if !busy {
		return false
	}
	tail, err := s.Mux.CapturePane(ctx, paneID, 80)
	if err != nil {
		return false
	}
	if !containsLine(tail, message) {
		return false
	}
	if isBusy(tail) {
		return false
	}
	return looksReady(tail)
}

func (s *Submitter) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}
