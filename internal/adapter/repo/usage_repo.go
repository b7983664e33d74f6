package repo

import (
	"context"
	"encoding/json"

	"plantscan/internal/domain"
	"plantscan/internal/infra"
	"plantscan/internal/sqlinline"
)

// UsageRepositoryPG writes identification audit events.
type UsageRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUsageRepository constructs the repository.
func NewUsageRepository(sql infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{sql: sql}
}

func (r *UsageRepositoryPG) RecordUsage(ctx context.Context, event domain.UsageEvent) error {
	props := event.Properties
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertUsageEvent,
		event.SubjectKey,
		event.RequestID,
		event.EventType,
		event.Success,
		event.LatencyMS,
		raw,
	)
	return err
}

var _ domain.UsageRecorder = (*UsageRepositoryPG)(nil)
