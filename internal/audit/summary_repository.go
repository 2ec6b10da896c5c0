package audit

import (
	"context"
	"fmt"
	"time"
)

type countRow struct {
	Key   string `db:"key"`
	Count int64  `db:"count"`
}

func (r *postgresRepository) CountByEventName(ctx context.Context, since time.Time) (map[string]int64, error) {
	return r.countBy(ctx, "event_name", since)
}

func (r *postgresRepository) CountByInstanceType(ctx context.Context, since time.Time) (map[string]int64, error) {
	return r.countBy(ctx, "instance_type", since)
}

func (r *postgresRepository) countBy(ctx context.Context, column string, since time.Time) (map[string]int64, error) {
	query := fmt.Sprintf(`
		SELECT %s AS key, COUNT(*) AS count
		FROM workflows_workflowauditlog
		WHERE timestamp >= $1
		GROUP BY %s`, column, column)

	var rows []countRow
	if err := r.sx.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("failed to count audit rows by %s: %w", column, err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}
