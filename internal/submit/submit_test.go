package submit

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeMux struct {
	tailSeq      []string // sequence of CapturePane results, last one repeats
	copyMode     bool
	sentLiteral  []string
	sentKeys     []string
	captureCalls int
}

func (f *fakeMux) CapturePane(ctx context.Context, paneID string, lines int) (string, error) {
	f.captureCalls++
	idx := f.captureCalls - 1
	if idx >= len(f.tailSeq) {
		idx = len(f.tailSeq) - 1
	}
	if idx < 0 {
		return "", nil
	}
	return f.tailSeq[idx], nil
}

func (f *fakeMux) IsPaneInCopyMode(ctx context.Context, paneID string) (bool, error) {
	return f.copyMode, nil
}

func (f *fakeMux) SendKeysLiteral(ctx context.Context, paneID, text string) error {
	f.sentLiteral = append(f.sentLiteral, text)
	return nil
}

func (f *fakeMux) SendKeyName(ctx context.Context, paneID, keyName string) error {
	f.sentKeys = append(f.sentKeys, keyName)
	return nil
}

func noSleep(time.Duration) {}

func TestSubmitRoundtripMessageDisappears(t *testing.T) {
	mux := &fakeMux{
		tailSeq: []string{
			"prompt> ",       // initial capture (trust/busy check)
			"prompt> hello",  // after the first submission round, message still visible
			"prompt> ",       // after the second round, gone
		},
	}
	s := &Submitter{Mux: mux, Sleep: noSleep}
	ok := s.Submit(context.Background(), "%1", "hello")
	if !ok {
		t.Fatal("expected Submit to return true")
	}
	if len(mux.sentLiteral) != 1 || mux.sentLiteral[0] != "hello" {
		t.Errorf("sentLiteral = %v", mux.sentLiteral)
	}
}

func TestSubmitNeverRemovesTextStillReturnsTrueAfterFinalNudge(t *testing.T) {
	tails := make([]string, 0, 20)
	tails = append(tails, "prompt> ")
	for i := 0; i < 15; i++ {
		tails = append(tails, "prompt> stuck message")
	}
	mux := &fakeMux{tailSeq: tails}
	s := &Submitter{Mux: mux, Sleep: noSleep}
	ok := s.Submit(context.Background(), "%1", "stuck message")
	if !ok {
		t.Fatal("expected Submit to return true via final nudge even if text never disappears")
	}
}

func TestSubmitCopyModeReturnsFalseNoSends(t *testing.T) {
	mux := &fakeMux{copyMode: true}
	s := &Submitter{Mux: mux, Sleep: noSleep}
	ok := s.Submit(context.Background(), "%1", "hello")
	if ok {
		t.Fatal("expected Submit to return false in copy-mode")
	}
	if len(mux.sentLiteral) != 0 || len(mux.sentKeys) != 0 {
		t.Errorf("expected no keystrokes sent in copy-mode, got literal=%v keys=%v", mux.sentLiteral, mux.sentKeys)
	}
}

func TestSubmitTrustPromptDismissedBeforeSend(t *testing.T) {
	mux := &fakeMux{
		tailSeq: []string{
			"Do you trust the contents of this directory?\nYes, continue\nNo, quit",
			"prompt> ",
			"prompt> hello",
			"prompt> ",
		},
	}
	s := &Submitter{Mux: mux, Sleep: noSleep}
	ok := s.Submit(context.Background(), "%1", "hello")
	if !ok {
		t.Fatal("expected Submit to succeed")
	}
	// The first key sent must be the Enter that dismisses the trust prompt.
	enterIdx := -1
	for i, k := range mux.sentKeys {
		if k == "Enter" {
			enterIdx = i
			break
		}
	}
	if enterIdx != 0 {
		t.Errorf("expected Enter before anything else, sentKeys=%v", mux.sentKeys)
	}
	if len(mux.sentLiteral) == 0 {
		t.Fatal("expected literal text to be sent after dismissing trust prompt")
	}
}

func TestTruncateLongMessage(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := truncate(long)
	if len(got) != maxMessageLength {
		t.Errorf("len = %d, want %d", len(got), maxMessageLength)
	}
}

func TestLooksReady(t *testing.T) {
	if !looksReady("some text > ") {
		t.Error("expected prompt glyph to be ready")
	}
	if !looksReady("gpt-4o 42% left") {
		t.Error("expected agent hint to be ready")
	}
	if looksReady("just some scrollback") {
		t.Error("expected not ready")
	}
}
