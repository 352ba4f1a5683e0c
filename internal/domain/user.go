package domain

import (
	"bytes"
	"encoding/json"
)

// AccountType distinguishes regular users from vendor and guide accounts.
type AccountType string

const (
	AccountUser   AccountType = "user"
	AccountVendor AccountType = "vendor"
	AccountGuide  AccountType = "guide"
)

// User is the public profile attached to sessions, chats and messages.
type User struct {
	ID          string      `json:"_id"`
	Username    string      `json:"username,omitempty"`
	Email       string      `json:"email,omitempty"`
	AccountType AccountType `json:"accountType,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
}

// UnmarshalJSON accepts a full user object, an object keyed by "id"
// instead of "_id", or a bare id string (an unpopulated reference).
func (u *User) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*u = User{ID: id}
		return nil
	}
	type plain User
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

// Session is the authenticated identity of the device. There is at most one
// per profile.
type Session struct {
	AuthToken string `json:"token"`
	User      User   `json:"user"`
}

// Valid reports whether the session carries a token.
func (s *Session) Valid() bool {
	return s != nil && s.AuthToken != ""
}
