package scheduler

import (
	"encoding/json"
	"os"
	"time"

	"github.com/omc/teamctl/internal/tasks"
)

// doneSentinel is the on-disk shape of a worker's done.json (spec §3).
type doneSentinel struct {
	TaskID      string       `json:"taskId"`
	Status      tasks.Status `json:"status"`
	Summary     string       `json:"summary"`
	CompletedAt time.Time    `json:"completedAt"`
}

// readDoneSentinel reads path if present (applySentinel deletes it once
// applied); a missing file is not an error. A malformed sentinel is tolerated per spec §7
// SentinelMalformed: the caller falls back to the active worker's
// recorded task id when TaskID is empty.
func readDoneSentinel(path string) (*doneSentinel, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var sentinel doneSentinel
	if err := json.Unmarshal(data, &sentinel); err != nil {
		return &doneSentinel{}, true
	}
	return &sentinel, true
}
