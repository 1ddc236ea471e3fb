package entity

import (
	"bytes"
	"encoding/json"
)

// UserSummary is the public card of a portal user.
type UserSummary struct {
	ID        string `json:"_id"`
	Name      string `json:"name,omitempty"`
	Headline  string `json:"headline,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
}

// UnmarshalJSON accepts both a populated user object and a bare id string,
// since the portal only populates references on some endpoints.
func (u *UserSummary) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*u = UserSummary{ID: id}
		return nil
	}

	type plain UserSummary
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*u = UserSummary(p)
	return nil
}
