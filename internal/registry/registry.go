package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/gate"
	"github.com/xela07ax/condgate/internal/infra"
)

type RuleStore interface {
	GetAllRules(ctx context.Context) ([]domain.Rule, error)
}

// Registry — in-memory кэш скомпилированных гейтов. В рантайме транспорты обращаются
// только к памяти; БД читается целиком при старте и по сигналу из Redis.
type Registry struct {
	mu sync.RWMutex
	// Кэш: имя правила -> гейт
	gates map[string]*gate.Gate
	rules map[string]domain.Rule

	seed     []domain.Rule // Правила из конфига, БД их перекрывает
	store    RuleStore     // Может быть nil: тогда работаем только на seed
	rdb      *redis.Client
	logger   *zap.Logger
	gateOpts []gate.Option
}

func New(store RuleStore, rdb *redis.Client, logger *zap.Logger, gateOpts ...gate.Option) *Registry {
	return &Registry{
		gates:    make(map[string]*gate.Gate),
		rules:    make(map[string]domain.Rule),
		store:    store,
		rdb:      rdb,
		logger:   logger.Named("registry"),
		gateOpts: gateOpts,
	}
}

// Seed запоминает правила из конфига и сразу публикует их.
func (r *Registry) Seed(rules []domain.Rule) {
	r.mu.Lock()
	r.seed = slices.Clone(rules)
	r.mu.Unlock()
	r.Load(nil)
}

// Load компилирует seed + rules и атомарно подменяет кэш. При совпадении имен побеждает rules.
func (r *Registry) Load(rules []domain.Rule) {
	r.mu.RLock()
	seed := r.seed
	r.mu.RUnlock()

	newRules := make(map[string]domain.Rule, len(seed)+len(rules))
	for _, rule := range seed {
		newRules[rule.Name] = rule
	}
	for _, rule := range rules {
		newRules[rule.Name] = rule
	}

	newGates := make(map[string]*gate.Gate, len(newRules))
	for name, rule := range newRules {
		newGates[name] = rule.Gate(r.gateOpts...)
	}

	r.mu.Lock()
	r.rules = newRules
	r.gates = newGates
	r.mu.Unlock()
}

// Refresh выполняет «холодную загрузку» всех правил из хранилища.
func (r *Registry) Refresh(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	rules, err := r.store.GetAllRules(ctx)
	if err != nil {
		return fmt.Errorf("registry: refresh: %w", err)
	}
	r.Load(rules)
	r.logger.Info("rule cache refreshed", zap.Int("count", len(rules)))
	return nil
}

// Gate — Hot Path: только RAM.
func (r *Registry) Gate(name string) (*gate.Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gates[name]
	return g, ok
}

// Rule возвращает исходное правило, из которого собран гейт.
func (r *Registry) Rule(name string) (domain.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	return rule, ok
}

// Rules возвращает все активные правила, отсортированные по имени.
func (r *Registry) Rules() []domain.Rule {
	r.mu.RLock()
	out := make([]domain.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Rule) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// StartListener подписывается на сигналы обновления правил. Блокирует до отмены ctx.
func (r *Registry) StartListener(ctx context.Context) {
	if r.rdb == nil {
		r.logger.Warn("redis client is not configured, rule hot reload disabled")
		return
	}
	ListenResilient(ctx, r.rdb, r.logger, infra.RedisChanRulesRefresh,
		func() error { return r.Refresh(ctx) }, // Переподключение: могли пропустить сигналы
		func(payload string) { r.handleSignal(ctx, payload) },
	)
}

func (r *Registry) handleSignal(ctx context.Context, payload string) {
	if payload != infra.RedisMsgRefresh {
		r.logger.Warn("unknown signal", zap.String("payload", payload))
		return
	}
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("refresh on signal failed", zap.Error(err))
	}
}
