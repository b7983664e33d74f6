package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"plantscan/internal/infra"
	"plantscan/internal/sqlinline"
)

// ProviderPlantID names the identification provider's row.
const ProviderPlantID = "plant.id"

// ErrEmptyKey is returned when an operator tries to store a blank key.
var ErrEmptyKey = errors.New("credentials: api key is required")

// Credential is a stored provider API key.
type Credential struct {
	APIKey      string
	Fingerprint string
	SetBy       string
	RotatedAt   time.Time
}

// Store keeps provider API keys in provider_credentials.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Fingerprint is a short, non-reversible label for key. It is safe to log.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:4])
}

// Get returns the provider's credential. ok is false when none was stored.
func (s *Store) Get(ctx context.Context, provider string) (cred Credential, ok bool, err error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderCredential, provider)
	if err := row.Scan(&cred.APIKey, &cred.Fingerprint, &cred.SetBy, &cred.RotatedAt); err != nil {
		if infra.IsNoRows(err) {
			return Credential{}, false, nil
		}
		return Credential{}, false, err
	}
	cred.APIKey = strings.TrimSpace(cred.APIKey)
	return cred, cred.APIKey != "", nil
}

// Rotate replaces the provider's key. The previous fingerprint is kept so an
// operator can tell which key a past log line refers to.
func (s *Store) Rotate(ctx context.Context, provider, key, setBy string) (Credential, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Credential{}, ErrEmptyKey
	}
	cred := Credential{
		APIKey:      key,
		Fingerprint: Fingerprint(key),
		SetBy:       strings.TrimSpace(setBy),
	}
	row := s.sql.QueryRow(ctx, sqlinline.QUpsertProviderCredential, provider, cred.APIKey, cred.Fingerprint, cred.SetBy)
	if err := row.Scan(&cred.RotatedAt); err != nil {
		return Credential{}, err
	}
	return cred, nil
}
