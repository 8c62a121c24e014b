package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a reference to a doctor or patient. The upstream API returns either a
// bare identifier or a populated document, so both shapes decode into Ref.
type Ref struct {
	ID       string `json:"_id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decode reference id: %w", err)
		}
		*r = Ref{ID: id}
		return nil
	}

	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode reference: %w", err)
	}
	*r = Ref(p)
	return nil
}

// Role is the viewer of an appointment page.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Counterpart returns the role whose name is shown on the viewer's cards.
func (r Role) Counterpart() Role {
	if r == RolePatient {
		return RoleDoctor
	}
	return RolePatient
}
