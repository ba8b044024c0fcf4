package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ActorKind tells whether an ActorRef points at a known identity or only carries a label.
type ActorKind string

const (
	ActorReference ActorKind = "reference"
	ActorLabel     ActorKind = "label"
)

// ActorRef records who performed an action: either a canonical user id or a raw label
// (e.g. a name typed by an operator before the person has an account).
type ActorRef struct {
	Kind  ActorKind  `json:"kind"`
	ID    *uuid.UUID `json:"id,omitempty"`
	Label string     `json:"label,omitempty"`
}

func ActorFromID(id uuid.UUID) ActorRef {
	return ActorRef{Kind: ActorReference, ID: &id}
}

func ActorFromLabel(label string) ActorRef {
	return ActorRef{Kind: ActorLabel, Label: strings.TrimSpace(label)}
}

// ParseActor builds a reference when s is a UUID and a label otherwise.
func ParseActor(s string) ActorRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return ActorRef{}
	}
	if id, err := uuid.Parse(s); err == nil {
		return ActorFromID(id)
	}
	return ActorFromLabel(s)
}

func (a ActorRef) IsZero() bool {
	return a.Kind == "" || (a.Kind == ActorReference && (a.ID == nil || *a.ID == uuid.Nil)) || (a.Kind == ActorLabel && a.Label == "")
}

func (a ActorRef) String() string {
	switch {
	case a.IsZero():
		return ""
	case a.Kind == ActorReference:
		return a.ID.String()
	default:
		return a.Label
	}
}

// MarshalJSON writes null for an empty ref so optional actors (approvedBy) read naturally.
func (a ActorRef) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	type plain ActorRef
	return json.Marshal(plain(a))
}

// UnmarshalJSON accepts the tagged object, a bare string (id or label) or null.
func (a *ActorRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ActorRef{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = ParseActor(s)
		return nil
	}
	type plain ActorRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = ActorRef(p)
	return nil
}

// Scan implements sql.Scanner (stored as JSON text).
func (a *ActorRef) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = ActorRef{}
		return nil
	case []byte:
		return a.UnmarshalJSON(v)
	case string:
		return a.UnmarshalJSON([]byte(v))
	default:
		return errors.New("unsupported type for ActorRef")
	}
}

// Value implements driver.Valuer.
func (a ActorRef) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	b, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
