package insights

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const adjustmentInsightType = "adjustment"

// PostgresStore persists adjustments in the market_insights table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed insight store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save upserts the adjustment for a processor.
func (p *PostgresStore) Save(ctx context.Context, processorID string, adj Adjustment, fetchedAt, expiresAt time.Time) error {
	content, err := json.Marshal(adj)
	if err != nil {
		return fmt.Errorf("encode adjustment: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO market_insights (processor_id, insight_type, content, impact_score, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (processor_id, insight_type) DO UPDATE
		SET content = EXCLUDED.content,
		    impact_score = EXCLUDED.impact_score,
		    fetched_at = EXCLUDED.fetched_at,
		    expires_at = EXCLUDED.expires_at
	`, processorID, adjustmentInsightType, content, adj.Score(), fetchedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save insight: %w", err)
	}
	return nil
}

// LoadActive returns adjustments whose persistence window has not expired.
func (p *PostgresStore) LoadActive(ctx context.Context, now time.Time) (map[string]Adjustment, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT processor_id, content
		FROM market_insights
		WHERE insight_type = $1 AND expires_at > $2
	`, adjustmentInsightType, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Adjustment)
	for rows.Next() {
		var id string
		var content []byte
		if err := rows.Scan(&id, &content); err != nil {
			return nil, err
		}
		var adj Adjustment
		if err := json.Unmarshal(content, &adj); err != nil {
			return nil, fmt.Errorf("decode adjustment for %s: %w", id, err)
		}
		out[id] = adj
	}
	return out, rows.Err()
}
