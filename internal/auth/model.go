package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User is persisted with its password hash; handlers must return
// Redacted copies, never the stored record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	Status       string    `json:"status"`
	LastLogin    time.Time `json:"last_login"`
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) RecordID() string          { return u.ID }
func (u *User) SetRecordID(id string)     { u.ID = id }
func (u *User) IsArchived() bool          { return u.Archived }
func (u *User) SetArchived(archived bool) { u.Archived = archived }

func (u *User) Validate() error {
	var fields []string
	if u.Username == "" {
		fields = append(fields, "username")
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		fields = append(fields, "email")
	}
	if u.PasswordHash == "" {
		fields = append(fields, "password")
	}
	if len(fields) > 0 {
		return &dualstore.ValidationError{Fields: fields}
	}
	return nil
}

// Redacted returns a copy safe to serialize in API responses.
func (u *User) Redacted() *User {
	c := *u
	c.PasswordHash = ""
	return &c
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var csvHeader = []string{
	"id", "username", "email", "password_hash", "roles", "status",
	"last_login", "archived", "created_at", "updated_at",
}

func Codec() dualstore.Codec[*User] {
	return dualstore.Codec[*User]{
		Header: csvHeader,
		Encode: func(u *User) []string {
			return []string{
				u.ID,
				u.Username,
				u.Email,
				u.PasswordHash,
				strings.Join(u.Roles, ";"),
				u.Status,
				u.LastLogin.Format(time.RFC3339),
				strconv.FormatBool(u.Archived),
				u.CreatedAt.Format(time.RFC3339),
				u.UpdatedAt.Format(time.RFC3339),
			}
		},
		Decode: func(row []string) (*User, error) {
			if len(row) != len(csvHeader) {
				return nil, fmt.Errorf("user row has %d columns, want %d", len(row), len(csvHeader))
			}
			var roles []string
			if row[4] != "" {
				roles = strings.Split(row[4], ";")
			}
			lastLogin, err := time.Parse(time.RFC3339, row[6])
			if err != nil {
				return nil, fmt.Errorf("user %s: bad last_login: %w", row[0], err)
			}
			archived, err := strconv.ParseBool(row[7])
			if err != nil {
				return nil, fmt.Errorf("user %s: bad archived flag: %w", row[0], err)
			}
			created, err := time.Parse(time.RFC3339, row[8])
			if err != nil {
				return nil, fmt.Errorf("user %s: bad created_at: %w", row[0], err)
			}
			updated, err := time.Parse(time.RFC3339, row[9])
			if err != nil {
				return nil, fmt.Errorf("user %s: bad updated_at: %w", row[0], err)
			}
			return &User{
				ID:           row[0],
				Username:     row[1],
				Email:        row[2],
				PasswordHash: row[3],
				Roles:        roles,
				Status:       row[5],
				LastLogin:    lastLogin,
				Archived:     archived,
				CreatedAt:    created,
				UpdatedAt:    updated,
			}, nil
		},
	}
}
