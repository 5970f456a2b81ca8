// Package config loads teamctl.yaml, the optional file of tunables a
// project can check in to override scheduler defaults without touching
// code, the way the teacher's internal/agents.LoadTeamsConfig reads
// teams.yaml.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults holds every tunable the scheduler, job supervisor, and
// submitter read at startup.
type Defaults struct {
	// DefaultModel is passed to an agent contract's ModelFlag when a
	// task doesn't specify one.
	DefaultModel string `yaml:"defaultModel"`

	// PollIntervalMs is the watchdog tick period (spec §5).
	PollIntervalMs int `yaml:"pollIntervalMs"`

	// WorkerSpawnDelayMs is how long the scheduler waits after spawning
	// a worker's CLI process before attempting the trust-prompt
	// dismissal and initial task notification.
	WorkerSpawnDelayMs int `yaml:"workerSpawnDelayMs"`

	// NudgeIntervalMs is loaded and exposed through NudgeInterval(); the
	// job supervisor's idle nudger does not read it (its timing comes
	// from the per-wait jobs.NudgeOptions).
	NudgeIntervalMs int `yaml:"nudgeIntervalMs"`

	// ShutdownTimeoutMs is loaded and exposed through ShutdownTimeout();
	// cmd/teamctl does not read it and gives its signal-triggered
	// shutdown a fixed 2-second ack timeout.
	ShutdownTimeoutMs int `yaml:"shutdownTimeoutMs"`
}

// DefaultDefaults returns the built-in tunables used when no
// teamctl.yaml is present or a field is left zero.
func DefaultDefaults() Defaults {
	return Defaults{
		DefaultModel:       "",
		PollIntervalMs:     1000,
		WorkerSpawnDelayMs: 4000,
		NudgeIntervalMs:    800,
		ShutdownTimeoutMs:  30000,
	}
}

// Load reads path and overlays it onto DefaultDefaults. A missing file is
// not an error; Load simply returns the defaults.
func Load(path string) (Defaults, error) {
	d := DefaultDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse %s: %w", path, err)
	}
	return applyZeroDefaults(d), nil
}

// applyZeroDefaults restores built-in values for any field the YAML file
// left unset (yaml.Unmarshal leaves zero Go values for omitted keys).
func applyZeroDefaults(d Defaults) Defaults {
	base := DefaultDefaults()
	if d.PollIntervalMs == 0 {
		d.PollIntervalMs = base.PollIntervalMs
	}
	if d.WorkerSpawnDelayMs == 0 {
		d.WorkerSpawnDelayMs = base.WorkerSpawnDelayMs
	}
	if d.NudgeIntervalMs == 0 {
		d.NudgeIntervalMs = base.NudgeIntervalMs
	}
	if d.ShutdownTimeoutMs == 0 {
		d.ShutdownTimeoutMs = base.ShutdownTimeoutMs
	}
	return d
}

// PollInterval returns PollIntervalMs as a time.Duration.
func (d Defaults) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMs) * time.Millisecond
}

// WorkerSpawnDelay returns WorkerSpawnDelayMs as a time.Duration.
func (d Defaults) WorkerSpawnDelay() time.Duration {
	return time.Duration(d.WorkerSpawnDelayMs) * time.Millisecond
}

// NudgeInterval returns NudgeIntervalMs as a time.Duration.
func (d Defaults) NudgeInterval() time.Duration {
	return time.Duration(d.NudgeIntervalMs) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMs as a time.Duration.
func (d Defaults) ShutdownTimeout() time.Duration {
	return time.Duration(d.ShutdownTimeoutMs) * time.Millisecond
}
