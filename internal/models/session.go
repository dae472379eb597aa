package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleExpert  Role = "expert"
	RoleAdmin   Role = "admin"
)

// ParseRole returns the role and whether it is one of the known roles.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleExpert:
		return RoleExpert, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return RoleStudent, false
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// UnmarshalJSON decodes unknown or empty roles as student.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode role: %w", err)
	}
	*r, _ = ParseRole(s)
	return nil
}

// Score is a decimal value that the API may send either as a JSON number
// or as a decimal string.
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return fmt.Errorf("failed to decode score: %w", err)
		}
		raw = []byte(strings.TrimSpace(str))
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("failed to parse score %q: %w", string(raw), err)
	}
	*s = Score(f)
	return nil
}

func (s Score) Float64() float64 {
	return float64(s)
}

type UserProfile struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Role          Role   `json:"role"`
	Gender        string `json:"gender,omitempty"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	GATScore      *Score `json:"gat_score,omitempty"`
	SAATHScore    *Score `json:"saath_score,omitempty"`
	HighSchoolGPA *Score `json:"high_school_gpa,omitempty"`
	IsVerified    bool   `json:"is_verified"`
}

func (u UserProfile) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Session is the persisted authentication state. When IsAuthenticated is
// true, User is set and Role equals User.Role.
type Session struct {
	IsAuthenticated     bool         `json:"is_authenticated"`
	User                *UserProfile `json:"user"`
	Role                Role         `json:"role"`
	Loading             bool         `json:"loading"`
	Error               string       `json:"error,omitempty"`
	VerificationMessage string       `json:"verification_message,omitempty"`
	DevVerificationCode string       `json:"dev_verification_code,omitempty"`
}

func DefaultSession() Session {
	return Session{Role: RoleStudent}
}

func (s Session) Consistent() bool {
	if !s.IsAuthenticated {
		return true
	}
	return s.User != nil && s.Role == s.User.Role
}

// Clone copies the session so callers cannot mutate store-owned profiles.
func (s Session) Clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

type SessionState string

const (
	SessionUnknown        SessionState = "unknown"
	SessionAuthenticating SessionState = "authenticating"
	SessionAuthenticated  SessionState = "authenticated"
	SessionAnonymous      SessionState = "anonymous"
	SessionError          SessionState = "error"
)
