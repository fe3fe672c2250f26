package postgres

/*
Файл rule_repo.go отвечает за хранение правил гейтов.
Шлюз читает их только целиком (холодная загрузка в Registry), консоль — правит по имени.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xela07ax/condgate/internal/domain"
)

const uniqueViolation = "23505"

const ruleColumns = `id, name, attribute, included, excluded, created_at, updated_at`

func scanRule(row pgx.Row) (domain.Rule, error) {
	var r domain.Rule
	err := row.Scan(&r.ID, &r.Name, &r.Attribute, &r.Included, &r.Excluded, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// GetAllRules выполняет "холодную загрузку" всех правил.
func (s *Store) GetAllRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ruleColumns+` FROM gate_rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list rules: %w", err)
	}
	defer rows.Close()

	var results []domain.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan rule: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) GetRule(ctx context.Context, name string) (*domain.Rule, error) {
	r, err := scanRule(s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM gate_rules WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get rule: %w", err)
	}
	return &r, nil
}

// CreateRule создает правило и заполняет ID и таймстемпы.
func (s *Store) CreateRule(ctx context.Context, r *domain.Rule) error {
	query := `
		INSERT INTO gate_rules (name, attribute, included, excluded)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query, r.Name, r.Attribute, nonNil(r.Included), nonNil(r.Excluded)).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrRuleExists
		}
		return fmt.Errorf("postgres: failed to create rule: %w", err)
	}
	return nil
}

// UpdateRule меняет атрибут и фильтры правила по имени.
func (s *Store) UpdateRule(ctx context.Context, r *domain.Rule) error {
	query := `
		UPDATE gate_rules
		SET attribute = $1, included = $2, excluded = $3, updated_at = NOW()
		WHERE name = $4`

	ct, err := s.pool.Exec(ctx, query, r.Attribute, nonNil(r.Included), nonNil(r.Excluded), r.Name)
	if err != nil {
		return fmt.Errorf("postgres: failed to update rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, name string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM gate_rules WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

// nonNil — text[] NOT NULL, а nil-слайс pgx пишет как NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
