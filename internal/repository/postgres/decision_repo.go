package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/condgate/internal/domain"
)

// WriteBatch реализует journal.Storage: одна пакетная вставка на весь батч.
func (s *Store) WriteBatch(ctx context.Context, records []domain.DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Количество колонок в таблице gate_decisions
	const numFields = 9
	var placeholders strings.Builder
	vals := make([]any, 0, len(records)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, r := range records {
		p := i * numFields
		if i > 0 {
			placeholders.WriteByte(',')
		}
		fmt.Fprintf(&placeholders, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9)

		vals = append(vals,
			r.ID, r.TraceID, r.Rule, r.Attribute, r.Value, r.Allowed, r.Reason, r.Source, r.Timestamp,
		)
	}

	query := "INSERT INTO gate_decisions (id, trace_id, rule, attribute, value, allowed, reason, source, timestamp) VALUES " +
		placeholders.String()

	if _, err := s.pool.Exec(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: failed to write decisions: %w", err)
	}
	return nil
}

// RecentDecisions возвращает последние записи журнала, опционально по одному правилу.
func (s *Store) RecentDecisions(ctx context.Context, rule string, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := `
		SELECT id, trace_id, rule, attribute, value, allowed, reason, source, timestamp
		FROM gate_decisions
		WHERE ($1 = '' OR rule = $1)
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, rule, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var r domain.DecisionRecord
		if err := rows.Scan(&r.ID, &r.TraceID, &r.Rule, &r.Attribute, &r.Value, &r.Allowed, &r.Reason, &r.Source, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
