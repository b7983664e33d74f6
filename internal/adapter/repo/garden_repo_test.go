package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantscan/internal/domain"
)

const itemID = "6a1e0f0e-2b7c-4a8e-9d61-3b1f2c4d5e6f"

func TestGardenRepositoryCountAndList(t *testing.T) {
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sql := &stubSQL{
		rows: []valuesRow{{values: []any{2}}},
		list: &valuesRows{rows: []valuesRow{
			{values: []any{"a", "42", "Ficus lyrata", "Fiddle", created}},
			{values: []any{"b", "42", "Monstera deliciosa", "", created}},
		}},
	}
	repo := NewGardenRepository(sql)

	n, err := repo.Count(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := repo.List(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Fiddle", items[0].Nickname)
}

func TestGardenRepositoryAdd(t *testing.T) {
	stored := valuesRow{values: []any{itemID, "42", "Ficus lyrata", "", time.Now()}}
	tests := []struct {
		name    string
		rows    []valuesRow
		wantErr error
		markers []string
	}{
		{
			name:    "inserted",
			rows:    []valuesRow{stored},
			markers: []string{"4d0b7e52-96a3-4c1f-b8e2-5f7a9c31d6e8"},
		},
		{
			name:    "full",
			rows:    []valuesRow{{}, {values: []any{3}}},
			wantErr: domain.ErrGardenFull,
			markers: []string{"4d0b7e52-96a3-4c1f-b8e2-5f7a9c31d6e8", "0c64d393-bf37-4c9c-a7d0-3b351fb98b2b"},
		},
		{
			name:    "slot taken concurrently then retried",
			rows:    []valuesRow{{}, {values: []any{2}}, stored},
			markers: []string{"4d0b7e52-96a3-4c1f-b8e2-5f7a9c31d6e8", "0c64d393-bf37-4c9c-a7d0-3b351fb98b2b", "4d0b7e52-96a3-4c1f-b8e2-5f7a9c31d6e8"},
		},
		{
			name:    "retry also loses",
			rows:    []valuesRow{{}, {values: []any{2}}, {}},
			wantErr: domain.ErrGardenFull,
			markers: []string{"4d0b7e52-96a3-4c1f-b8e2-5f7a9c31d6e8", "0c64d393-bf37-4c9c-a7d0-3b351fb98b2b", "4d0b7e52-96a3-4c1f-b8e2-5f7a9c31d6e8"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := &stubSQL{rows: tt.rows}
			item, err := NewGardenRepository(sql).Add(context.Background(), domain.GardenItem{UserID: "42", SpeciesName: "Ficus lyrata"}, 3)
			assert.Equal(t, tt.markers, sql.markers())
			assert.Equal(t, []any{"42", "Ficus lyrata", "", 3}, sql.calls[0].args)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, item)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, itemID, item.ID)
		})
	}
}

func TestGardenRepositoryDelete(t *testing.T) {
	sql := &stubSQL{tag: pgconn.NewCommandTag("DELETE 1")}
	require.NoError(t, NewGardenRepository(sql).Delete(context.Background(), "42", itemID))

	sql = &stubSQL{tag: pgconn.NewCommandTag("DELETE 0")}
	require.ErrorIs(t, NewGardenRepository(sql).Delete(context.Background(), "42", itemID), domain.ErrNotFound)

	sql = &stubSQL{}
	require.ErrorIs(t, NewGardenRepository(sql).Delete(context.Background(), "42", "not-a-uuid"), domain.ErrNotFound)
	assert.Empty(t, sql.calls)
}

func TestUsageRepositoryRecordUsage(t *testing.T) {
	sql := &stubSQL{}
	err := NewUsageRepository(sql).RecordUsage(context.Background(), domain.UsageEvent{
		SubjectKey: "guest:abc",
		RequestID:  "req-1",
		EventType:  "identified",
		Success:    true,
		LatencyMS:  420,
		Properties: map[string]any{"top": "Rosa canina"},
	})
	require.NoError(t, err)
	require.Len(t, sql.calls, 1)
	args := sql.calls[0].args
	assert.Equal(t, "guest:abc", args[0])
	assert.Equal(t, 420, args[4])
	var props map[string]any
	require.NoError(t, json.Unmarshal(args[5].([]byte), &props))
	assert.Equal(t, "Rosa canina", props["top"])
}
