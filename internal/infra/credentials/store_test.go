package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantscan/internal/sqlinline"
)

type stubExecutor struct {
	row   stubRow
	query string
	args  []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.query = query
	s.args = args
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("scan arity mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

func TestGet(t *testing.T) {
	rotated := time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)
	exec := &stubExecutor{row: stubRow{values: []any{" abc123 ", "6ca13d52", "ops", rotated}}}

	cred, ok, err := NewStore(exec).Get(context.Background(), ProviderPlantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Credential{APIKey: "abc123", Fingerprint: "6ca13d52", SetBy: "ops", RotatedAt: rotated}, cred)
	assert.Equal(t, sqlinline.QSelectProviderCredential, exec.query)
	assert.Equal(t, []any{ProviderPlantID}, exec.args)
}

func TestGetMissing(t *testing.T) {
	_, ok, err := NewStore(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}}).Get(context.Background(), ProviderPlantID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetError(t *testing.T) {
	_, _, err := NewStore(&stubExecutor{row: stubRow{err: errors.New("conn reset")}}).Get(context.Background(), ProviderPlantID)
	assert.Error(t, err)
}

func TestRotate(t *testing.T) {
	rotated := time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)
	exec := &stubExecutor{row: stubRow{values: []any{rotated}}}

	cred, err := NewStore(exec).Rotate(context.Background(), ProviderPlantID, " secret ", " ops@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "secret", cred.APIKey)
	assert.Equal(t, Fingerprint("secret"), cred.Fingerprint)
	assert.Equal(t, rotated, cred.RotatedAt)
	assert.Equal(t, sqlinline.QUpsertProviderCredential, exec.query)
	assert.Equal(t, []any{ProviderPlantID, "secret", Fingerprint("secret"), "ops@example.com"}, exec.args)
}

func TestRotateEmptyKey(t *testing.T) {
	exec := &stubExecutor{}
	_, err := NewStore(exec).Rotate(context.Background(), ProviderPlantID, "  ", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.Empty(t, exec.query)
}

func TestFingerprint(t *testing.T) {
	assert.Len(t, Fingerprint("secret"), 8)
	assert.Equal(t, Fingerprint("secret"), Fingerprint(" secret\n"))
	assert.NotEqual(t, Fingerprint("secret"), Fingerprint("other"))
}
