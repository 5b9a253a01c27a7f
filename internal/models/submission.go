package models

import (
	"encoding/json"
	"time"
)

// DefaultPressure is used for samples that arrive without a pressure value
// (mouse input instead of a stylus).
const DefaultPressure = 0.5

// Approval is the moderation state of a submission. A submission starts
// unset and only moves through explicit admin actions; every transition
// between the three states is allowed so a moderator can correct mistakes.
type Approval string

const (
	ApprovalUnset    Approval = ""
	ApprovalApproved Approval = "approved"
	ApprovalDenied   Approval = "denied"
)

// Sample is one pointer event within a stroke.
type Sample struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure"`
}

// UnmarshalJSON defaults a missing pressure to DefaultPressure and clamps
// out-of-range values into [0, 1].
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw struct {
		X        float64  `json:"x"`
		Y        float64  `json:"y"`
		Pressure *float64 `json:"pressure"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.X = raw.X
	s.Y = raw.Y
	s.Pressure = DefaultPressure
	if raw.Pressure != nil {
		s.Pressure = *raw.Pressure
	}
	if s.Pressure < 0 {
		s.Pressure = 0
	}
	if s.Pressure > 1 {
		s.Pressure = 1
	}
	return nil
}

// Stroke is one continuous pen motion, in drawing order.
type Stroke []Sample

// Submission is one participant's drawing plus its moderation state.
// The ID doubles as the record's file name, derived from the creation
// instant in unix milliseconds.
type Submission struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Strokes   []Stroke  `json:"strokes"`
	Approved  Approval  `json:"approved,omitempty"`
}

// Role is a connection's self-declared capability class. It only gates
// which inbound events are accepted; every role receives every broadcast.
type Role int

const (
	RoleObserver Role = iota
	RoleQuestion
	RoleAdmin
	RoleResults
)

// ParseRole maps the handshake query value to a Role. Anything
// unrecognized becomes an observer rather than an error.
func ParseRole(s string) Role {
	switch s {
	case "question":
		return RoleQuestion
	case "admin":
		return RoleAdmin
	case "results":
		return RoleResults
	default:
		return RoleObserver
	}
}

func (r Role) String() string {
	switch r {
	case RoleQuestion:
		return "question"
	case RoleAdmin:
		return "admin"
	case RoleResults:
		return "results"
	default:
		return "observer"
	}
}
