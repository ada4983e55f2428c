package submissions

import "time"

// Kind distinguishes serial wrappers from array submissions.
//
// NOTE: These values are persisted in sb-XXXX.json.
type Kind string

const (
	KindSerial Kind = "serial"
	KindArray  Kind = "array"
)

// Record describes one prepared submission. New fields must be additive.
type Record struct {
	SbatchID int    `json:"sbatch_id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	RunID    string `json:"run_id"`

	ScriptPath string `json:"script_path"`
	SpecPath   string `json:"spec_path,omitempty"`

	JobIDs []string `json:"job_ids"`
	// Parcels holds the job ids of each array element, in array-index order.
	Parcels [][]string `json:"parcels,omitempty"`

	WallTime  string `json:"wall_time"`
	NTasks    int    `json:"n_tasks"`
	Memory    string `json:"memory"`
	RateLimit int    `json:"rate_limit,omitempty"`
	// ManualTime is true when --time overrode the estimate.
	ManualTime bool `json:"manual_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
