package teamstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TeamConfig is the on-disk shape of config.json (spec §3): a snapshot of
// the team start request, persisted so components that don't hold the
// original in-memory request (notably the shutdown coordinator, which may
// run in a process that never called startTeam) can still learn the
// team's shape.
type TeamConfig struct {
	TeamName    string   `json:"teamName"`
	AgentTypes  []string `json:"agentTypes"`
	WorkerCount int      `json:"workerCount"`
	TaskCount   int      `json:"taskCount"`
	Cwd         string   `json:"cwd"`
	CreatedAt   time.Time `json:"createdAt"`
}

// WriteConfig persists cfg to config.json under the team root.
func WriteConfig(cwd string, cfg TeamConfig) error {
	path := ConfigPath(cwd, cfg.TeamName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create team root: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal team config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadConfig loads config.json, or returns an error if it is missing or
// malformed; shutdown and monitor both need a trustworthy workerCount to
// know how many acks/workers to expect.
func ReadConfig(cwd, teamName string) (TeamConfig, error) {
	data, err := os.ReadFile(ConfigPath(cwd, teamName))
	if err != nil {
		return TeamConfig{}, fmt.Errorf("read team config: %w", err)
	}
	var cfg TeamConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return TeamConfig{}, fmt.Errorf("parse team config: %w", err)
	}
	return cfg, nil
}

// WorkerName derives the 1-based worker identity from its position (spec
// §3 "worker-<n>").
func WorkerName(index int) string {
	return fmt.Sprintf("worker-%d", index+1)
}
