package mailbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/omc/teamctl/internal/teamstate"
)

// Message is one entry in a worker's mailbox log.
type Message struct {
	ID     string    `json:"id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

// Store appends messages to <teamName>/mailbox/<worker>.jsonl, the
// durable record of every message regardless of whether a live Client is
// also in use.
type Store struct {
	cwd, teamName string
	client        *Client // optional, nil when fanout is disabled
}

// NewStore returns a Store rooted at the team's state tree. client may be
// nil.
func NewStore(cwd, teamName string, client *Client) *Store {
	return &Store{cwd: cwd, teamName: teamName, client: client}
}

// Append writes msg to the recipient's JSONL log and, if a Client is
// attached, also publishes it for live subscribers.
func (s *Store) Append(msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	path := teamstate.MailboxPath(s.cwd, s.teamName, msg.To)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create mailbox dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mailbox for %s: %w", msg.To, err)
	}
	defer f.Close()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mailbox message: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append mailbox message: %w", err)
	}

	if s.client != nil {
		if err := s.client.PublishMessage(s.teamName, msg); err != nil {
			return fmt.Errorf("publish mailbox message: %w", err)
		}
	}
	return nil
}

// Send is a convenience wrapper around Append stamping SentAt with now.
func (s *Store) Send(from, to, body string, now time.Time) error {
	return s.Append(Message{From: from, To: to, Body: body, SentAt: now})
}

// Read returns every message ever appended for workerName, in send order.
// Malformed lines are skipped rather than failing the whole read.
func (s *Store) Read(workerName string) ([]Message, error) {
	path := teamstate.MailboxPath(s.cwd, s.teamName, workerName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mailbox for %s: %w", workerName, err)
	}

	var msgs []Message
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
