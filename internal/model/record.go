// Package model defines the core memory data types.
package model

import "time"

// Weight bounds for a memory record. Weights outside this range are
// clamped at every write path, never rejected.
const (
	MinWeight = 0.1
	MaxWeight = 10.0
)

// DefaultWeight is applied when a caller does not supply a weight.
const DefaultWeight = 5.0

// Role identifies the speaker of a dialogue turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRoles are the allowed record roles.
var ValidRoles = map[Role]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
}

// Well-known record types. Type is a free-form tag; these are the ones
// the engine itself assigns or treats specially.
const (
	TypeUserInput = "user_input"
	TypeAssistant = "assistant_reply"
	TypeSummary   = "summary"
	TypeSystem    = "system"
)

// MemoryRecord is a stored dialogue memory with a retention weight.
type MemoryRecord struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Role         Role              `json:"role"`
	Type         string            `json:"type"`
	SessionID    string            `json:"session_id,omitempty"`
	GroupID      string            `json:"group_id,omitempty"`
	Weight       float64           `json:"weight"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed *time.Time        `json:"last_accessed,omitempty"`
	LastDecayed  *time.Time        `json:"last_decayed,omitempty"`
	Archived     bool              `json:"archived"`
	Deleted      bool              `json:"deleted"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Tier returns the retention tier derived from the record's weight.
func (r MemoryRecord) Tier() Tier {
	return TierOf(r.Weight)
}

// VectorEntry is the stored embedding for a record. A record owns at
// most one entry; its presence must agree with the ANN index.
type VectorEntry struct {
	RecordID  string    `json:"record_id"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Association is a directed, typed link between two records.
type Association struct {
	SourceID      string     `json:"source_id"`
	TargetID      string     `json:"target_id"`
	Type          string     `json:"type"`
	Strength      float64    `json:"strength"`
	CreatedAt     time.Time  `json:"created_at"`
	LastActivated *time.Time `json:"last_activated,omitempty"`
}

// Session groups dialogue turns. A session ends explicitly or by
// inactivity timeout, at which point the next turn starts a new one.
type Session struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	LastActive time.Time  `json:"last_active"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// DefaultSessionTimeout is the inactivity window after which a new
// turn opens a fresh session.
const DefaultSessionTimeout = 3600 * time.Second

// DialoguePair is one user/assistant exchange within a session.
type DialoguePair struct {
	User      MemoryRecord `json:"user"`
	Assistant MemoryRecord `json:"assistant"`
}

// ClampWeight bounds w to [MinWeight, MaxWeight].
func ClampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
