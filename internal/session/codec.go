package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// record is the wire form of a Session. Scratch is kept raw and decoded
// by flow, since the flow field selects its concrete type.
type record struct {
	Identity  Identity        `json:"identity"`
	Flow      Flow            `json:"flow"`
	State     State           `json:"state"`
	Scratch   json.RawMessage `json:"scratch,omitempty"`
	History   []FocusRecord   `json:"history,omitempty"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Marshal encodes s as JSON.
func Marshal(s Session) ([]byte, error) {
	rec := record{
		Identity:  s.Identity,
		Flow:      s.Flow,
		State:     s.State,
		History:   s.History,
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Scratch != nil {
		raw, err := json.Marshal(s.Scratch)
		if err != nil {
			return nil, fmt.Errorf("encode %s scratch: %w", s.Flow, err)
		}
		rec.Scratch = raw
	}
	return json.Marshal(rec)
}

// Unmarshal decodes a session produced by Marshal and validates it.
func Unmarshal(data []byte) (Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	s := Session{
		Identity:  rec.Identity,
		Flow:      rec.Flow,
		State:     rec.State,
		History:   rec.History,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	}

	scratch, err := decodeScratch(rec.Flow, rec.Scratch)
	if err != nil {
		return Session{}, err
	}
	s.Scratch = scratch

	if err := s.Validate(); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func decodeScratch(flow Flow, raw json.RawMessage) (Scratch, error) {
	if flow == FlowNone {
		return nil, nil
	}
	if len(raw) == 0 {
		return NewScratch(flow), nil
	}
	var err error
	switch flow {
	case FlowRegistration:
		var sc RegistrationScratch
		err = json.Unmarshal(raw, &sc)
		if err == nil {
			return sc, nil
		}
	case FlowSupervisor:
		var sc SupervisorScratch
		err = json.Unmarshal(raw, &sc)
		if err == nil {
			return sc, nil
		}
	case FlowParticipant:
		var sc ParticipantScratch
		err = json.Unmarshal(raw, &sc)
		if err == nil {
			return sc, nil
		}
	default:
		return nil, fmt.Errorf("decode scratch: %w: unknown flow %q", ErrInvariant, flow)
	}
	return nil, fmt.Errorf("decode %s scratch: %w", flow, err)
}
