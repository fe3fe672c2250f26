// Package gate реализует условный вызов методов: перед вызовом читаем атрибут получателя,
// канонизируем его и сверяем со списками included/excluded. Если проверка не пройдена,
// обернутая функция не выполняется, а вызывающий получает пустой результат.
package gate

import (
	"go.uber.org/zap"
)

// Reason — почему гейт пропустил или подавил вызов.
type Reason string

const (
	ReasonAllowed     Reason = "allowed"
	ReasonNotIncluded Reason = "not_included" // included задан, значения в нем нет
	ReasonExcluded    Reason = "excluded"     // значение в списке excluded
)

// Decision — результат проверки одного вызова.
type Decision struct {
	Gate      string `json:"gate,omitempty"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"` // Каноническое значение атрибута
	Allowed   bool   `json:"allowed"`
	Reason    Reason `json:"reason"`
}

// Observer получает каждое решение гейта (метрики, аудит).
type Observer interface {
	ObserveDecision(d Decision)
	ObserveError(gate string, err error)
}

// Gate — конфигурация, захваченная при «декорировании» метода.
// После создания не меняется, поэтому безопасна для конкурентного использования.
type Gate struct {
	name      string
	attribute string
	included  Filter
	excluded  Filter

	logger   *zap.Logger
	observer Observer
}

type Option func(*Gate)

// Include задает список разрешенных значений. Пустой список — «без ограничений».
func Include(f Filter) Option {
	return func(g *Gate) { g.included = f }
}

// Exclude задает список запрещенных значений.
func Exclude(f Filter) Option {
	return func(g *Gate) { g.excluded = f }
}

func WithName(name string) Option {
	return func(g *Gate) { g.name = name }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// New создает гейт по атрибуту attribute. Валидации здесь нет:
// пустое имя атрибута проявится только при вызове как ErrAttributeMissing.
func New(attribute string, opts ...Option) *Gate {
	g := &Gate{
		attribute: attribute,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.name == "" {
		g.name = attribute
	}
	g.logger = g.logger.With(zap.String("gate", g.name))
	return g
}

func (g *Gate) Name() string      { return g.name }
func (g *Gate) Attribute() string { return g.attribute }
func (g *Gate) Included() Filter  { return g.included }
func (g *Gate) Excluded() Filter  { return g.excluded }

// Decide читает атрибут получателя и применяет правило:
//  1. included не пуст и значения в нем нет — подавить;
//  2. иначе excluded не пуст и значение в нем есть — подавить;
//  3. иначе — вызывать.
//
// Фильтры нормализуются на каждом вызове, ничего не кэшируется.
func (g *Gate) Decide(recv any) (Decision, error) {
	raw, err := Lookup(recv, g.attribute)
	if err != nil {
		if g.observer != nil {
			g.observer.ObserveError(g.name, err)
		}
		return Decision{}, err
	}

	d := g.decide(Canonical(raw))
	if g.observer != nil {
		g.observer.ObserveDecision(d)
	}
	if !d.Allowed {
		g.logger.Debug("call suppressed",
			zap.String("attribute", d.Attribute),
			zap.String("value", d.Value),
			zap.String("reason", string(d.Reason)),
		)
	}
	return d, nil
}

func (g *Gate) decide(value string) Decision {
	d := Decision{
		Gate:      g.name,
		Attribute: g.attribute,
		Value:     value,
		Allowed:   true,
		Reason:    ReasonAllowed,
	}

	if included := g.included.Set(); len(included) > 0 {
		if _, ok := included[value]; !ok {
			d.Allowed, d.Reason = false, ReasonNotIncluded
			return d
		}
	}
	if excluded := g.excluded.Set(); len(excluded) > 0 {
		if _, ok := excluded[value]; ok {
			d.Allowed, d.Reason = false, ReasonExcluded
		}
	}
	return d
}

// Call выполняет fn, только если гейт пропускает получателя. Возвращает, был ли вызов.
func (g *Gate) Call(recv any, fn func()) (bool, error) {
	d, err := g.Decide(recv)
	if err != nil {
		return false, err
	}
	if !d.Allowed {
		return false, nil
	}
	fn()
	return true, nil
}
