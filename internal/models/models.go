package models

import "time"

// Session statuses
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusExited    = "exited"
)

// Session kinds
const (
	KindWorkout        = "workout"
	KindMorningWorkout = "morning_workout"
	KindCooking        = "cooking"
)

// StepSpec describes one step as clients and presets supply it.
type StepSpec struct {
	Name              string   `json:"name" yaml:"name" toml:"name"`
	Instruction       string   `json:"instruction,omitempty" yaml:"instruction" toml:"instruction"`
	DurationSeconds   int      `json:"duration_seconds" yaml:"duration_seconds" toml:"duration_seconds"`
	BreakAfterSeconds int      `json:"break_after_seconds,omitempty" yaml:"break_after_seconds" toml:"break_after_seconds"`
	Ingredients       []string `json:"ingredients,omitempty" yaml:"ingredients" toml:"ingredients"`
}

// Snapshot is the persisted view of a session's timer state
type Snapshot struct {
	CurrentStepIndex     int    `json:"current_step_index"`
	Phase                string `json:"phase"`
	RemainingSeconds     int    `json:"remaining_seconds"`
	CompletedStepIndices []int  `json:"completed_step_indices"`
}

// Session represents a guided session hosted by the service
type Session struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Kind      string     `json:"kind"`
	Preset    string     `json:"preset,omitempty"`
	Title     string     `json:"title,omitempty"`
	Steps     []StepSpec `json:"steps"`
	Status    string     `json:"status"` // "active", "completed", "exited"
	State     Snapshot   `json:"state"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Clone returns a deep copy so stored records are never shared with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Steps = make([]StepSpec, len(s.Steps))
	for i, step := range s.Steps {
		step.Ingredients = append([]string(nil), step.Ingredients...)
		out.Steps[i] = step
	}
	out.State.CompletedStepIndices = append([]int(nil), s.State.CompletedStepIndices...)
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	return &out
}

// Completion records a finished session and the points it earned
type Completion struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Kind           string    `json:"kind"`
	Preset         string    `json:"preset,omitempty"`
	CompletedSteps int       `json:"completed_steps"`
	TotalSteps     int       `json:"total_steps"`
	Points         int       `json:"points"`
	CompletedAt    time.Time `json:"completed_at"`
}

// StartSessionRequest represents the request to start a session.
// Either Preset or Steps must be set.
type StartSessionRequest struct {
	UserID string     `json:"user_id"`
	Preset string     `json:"preset,omitempty"`
	Kind   string     `json:"kind,omitempty"`
	Title  string     `json:"title,omitempty"`
	Steps  []StepSpec `json:"steps,omitempty"`
}

// GoToStepRequest represents a jump request; -1 returns to the overview
type GoToStepRequest struct {
	Index *int `json:"index"`
}

// TickRequest delivers client-driven ticks
type TickRequest struct {
	Count int `json:"count"`
}

// CompletionsResponse lists a user's completions
type CompletionsResponse struct {
	UserID      string        `json:"user_id"`
	TotalPoints int           `json:"total_points"`
	Completions []*Completion `json:"completions"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
