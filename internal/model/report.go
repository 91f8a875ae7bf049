package model

import "time"

// ChangeEvent actions.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionRemoved   = "removed"
	ActionUnchanged = "unchanged"
)

// ChangeEvent kinds.
const (
	KindJob = "job"
	KindEnv = "env"
)

// ChangeEvent records what happened to a single crontab entry during a run.
type ChangeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Host      string    `json:"host"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// HostResult is the outcome of converging a single host.
type HostResult struct {
	Host    string        `json:"host"`
	Changed bool          `json:"changed"`
	Error   string        `json:"error,omitempty"`
	Events  []ChangeEvent `json:"events,omitempty"`
}

// Failed reports whether the host run aborted with an error.
func (r HostResult) Failed() bool { return r.Error != "" }

// RunReport is the full result of one provisioning pass.
type RunReport struct {
	RunID      string       `json:"run_id"`
	Playbook   string       `json:"playbook"`
	DryRun     bool         `json:"dry_run"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Hosts      []HostResult `json:"hosts"`
}

// Summary aggregates event actions across all hosts.
func (r *RunReport) Summary() map[string]int {
	counts := make(map[string]int)
	for _, h := range r.Hosts {
		if h.Failed() {
			counts["failed"]++
			continue
		}
		for _, e := range h.Events {
			counts[e.Action]++
		}
	}
	return counts
}
