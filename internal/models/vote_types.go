package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VoteDirection represents the direction of a vote.
type VoteDirection int

const (
	VoteUp   VoteDirection = 1
	VoteDown VoteDirection = -1
)

func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

func (d VoteDirection) String() string {
	switch d {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	default:
		return fmt.Sprintf("VoteDirection(%d)", int(d))
	}
}

// UnmarshalJSON accepts 1 / -1 as well as "up" / "down".
func (d *VoteDirection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "up", "+1", "1":
			*d = VoteUp
		case "down", "-1":
			*d = VoteDown
		default:
			return fmt.Errorf("unknown vote direction %q", s)
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("vote direction must be 1, -1, \"up\" or \"down\": %w", err)
	}
	*d = VoteDirection(n)
	return nil
}
