package domain

import (
	"fmt"
	"strings"
)

// SubjectKind distinguishes whose quota is being tracked.
type SubjectKind string

const (
	SubjectGuest         SubjectKind = "guest"
	SubjectAuthenticated SubjectKind = "user"
)

// Subject identifies the owner of a quota. It is immutable for the lifetime of a
// session; signing in produces a new Subject with its own counters.
type Subject struct {
	kind SubjectKind
	id   string
}

// Authenticated returns the subject of a signed-in user.
func Authenticated(userID string) Subject {
	return Subject{kind: SubjectAuthenticated, id: strings.TrimSpace(userID)}
}

// Guest returns a guest subject scoped to a device install. An empty install id
// is valid for single-device local stores.
func Guest(installID string) Subject {
	return Subject{kind: SubjectGuest, id: strings.TrimSpace(installID)}
}

func (s Subject) Kind() SubjectKind { return s.kind }

// ID returns the user id for authenticated subjects and the install id for guests.
func (s Subject) ID() string { return s.id }

func (s Subject) IsGuest() bool { return s.kind == SubjectGuest }

func (s Subject) IsAuthenticated() bool { return s.kind == SubjectAuthenticated }

// Key returns the storage key used to namespace counters, e.g. "user:42".
func (s Subject) Key() string {
	return string(s.kind) + ":" + s.id
}

// Validate rejects zero-value subjects and authenticated subjects without an id.
func (s Subject) Validate() error {
	switch s.kind {
	case SubjectGuest:
		return nil
	case SubjectAuthenticated:
		if s.id == "" {
			return fmt.Errorf("%w: authenticated subject without user id", ErrInvalidSubject)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown subject kind %q", ErrInvalidSubject, s.kind)
	}
}

func (s Subject) String() string { return s.Key() }
