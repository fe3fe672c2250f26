package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/infra"
)

// ReliableStore оборачивает хранилище правил: лимит частоты загрузок, предохранитель, ретраи.
// Сигналы refresh могут прийти пачкой, а БД может лежать — шлюз при этом живет на старом кэше.
type ReliableStore struct {
	next     RuleStore
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
}

func NewReliableStore(next RuleStore, cfg infra.RegistryConfig) *ReliableStore {
	timeout := cfg.CBTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 3
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "condgate-rule-store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &ReliableStore{
		next:     next,
		cb:       cb,
		limiter:  rate.NewLimiter(limit, 1),
		attempts: attempts,
	}
}

func (s *ReliableStore) GetAllRules(ctx context.Context) ([]domain.Rule, error) {
	// 1. Rate Limiter
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rule store rate limit: %w", err)
	}

	// 2. Circuit Breaker поверх ретраев
	result, err := s.cb.Execute(func() (interface{}, error) {
		var rules []domain.Rule
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(s.attempts),
			retry.DelayType(retry.BackOffDelay),
		)
		retryErr := r.Do(func() error {
			var callErr error
			rules, callErr = s.next.GetAllRules(ctx)
			return callErr
		})
		return rules, retryErr
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Rule), nil
}

// State отдает состояние предохранителя для логов и health-check.
func (s *ReliableStore) State() string {
	return s.cb.State().String()
}
