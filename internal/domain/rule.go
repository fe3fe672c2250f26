package domain

import (
	"errors"
	"time"

	"github.com/xela07ax/condgate/internal/gate"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrInvalidRule  = errors.New("invalid rule")
	ErrRuleExists   = errors.New("rule already exists")
)

// Rule — именованное правило гейта, которое хранится в БД и правится через консоль.
// Included/Excluded хранятся токенами как есть; канонизация делается гейтом на каждом вызове.
type Rule struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`      // Уникальное имя, по нему транспорт ищет гейт
	Attribute string   `json:"attribute"` // Какой атрибут получателя проверяем, e.g. "language"
	Included  []string `json:"included"`  // Пусто — без ограничений
	Excluded  []string `json:"excluded"`

	// Фильтры из конфига в исходном виде ("Python, C"). Если заданы, гейт строится
	// из них, а Included/Excluded служат только для отображения.
	IncludeFilter gate.Filter `json:"-"`
	ExcludeFilter gate.Filter `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет правило перед записью. Сам гейт имя атрибута не валидирует,
// но хранить правило без атрибута бессмысленно.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return errors.Join(ErrInvalidRule, errors.New("name is required"))
	}
	if r.Attribute == "" {
		return errors.Join(ErrInvalidRule, errors.New("attribute is required"))
	}
	return nil
}

// Gate компилирует правило в гейт.
func (r Rule) Gate(opts ...gate.Option) *gate.Gate {
	included, excluded := r.IncludeFilter, r.ExcludeFilter
	if included.IsZero() {
		included = gate.Explicit(r.Included...)
	}
	if excluded.IsZero() {
		excluded = gate.Explicit(r.Excluded...)
	}
	base := []gate.Option{
		gate.WithName(r.Name),
		gate.Include(included),
		gate.Exclude(excluded),
	}
	return gate.New(r.Attribute, append(base, opts...)...)
}
