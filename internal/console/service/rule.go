package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/gate"
	"github.com/xela07ax/condgate/internal/infra"
	"github.com/xela07ax/condgate/internal/journal"
)

// RuleRepository описывает требования сервиса к хранилищу правил
type RuleRepository interface {
	GetRule(ctx context.Context, name string) (*domain.Rule, error)
	GetAllRules(ctx context.Context) ([]domain.Rule, error)
	CreateRule(ctx context.Context, r *domain.Rule) error
	UpdateRule(ctx context.Context, r *domain.Rule) error
	DeleteRule(ctx context.Context, name string) error
}

// Publisher — часть redis.Client, которой хватает для уведомления шлюзов.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RuleService struct {
	repo    RuleRepository
	pub     Publisher
	journal journal.Logger
}

func NewRuleService(repo RuleRepository, pub Publisher, j journal.Logger) *RuleService {
	if j == nil {
		j = journal.Nop{}
	}
	return &RuleService{repo: repo, pub: pub, journal: j}
}

func (s *RuleService) Get(ctx context.Context, name string) (*domain.Rule, error) {
	return s.repo.GetRule(ctx, name)
}

// GetAll возвращает все правила из БД
func (s *RuleService) GetAll(ctx context.Context) ([]domain.Rule, error) {
	return s.repo.GetAllRules(ctx)
}

// Create сохраняет правило и уведомляет шлюзы об обновлении
func (s *RuleService) Create(ctx context.Context, r *domain.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateRule(ctx, r); err != nil {
		return err
	}
	return s.notifyUpdate(ctx)
}

// Update обновляет правило и инициирует инвалидацию кэша
func (s *RuleService) Update(ctx context.Context, r *domain.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateRule(ctx, r); err != nil {
		return err
	}
	return s.notifyUpdate(ctx)
}

func (s *RuleService) Delete(ctx context.Context, name string) error {
	if err := s.repo.DeleteRule(ctx, name); err != nil {
		return err
	}
	return s.notifyUpdate(ctx)
}

// Evaluate — dry-run: прогоняет набор атрибутов через правило из БД, ничего не вызывая.
func (s *RuleService) Evaluate(ctx context.Context, name string, attrs map[string]any, traceID string) (gate.Decision, error) {
	r, err := s.repo.GetRule(ctx, name)
	if err != nil {
		return gate.Decision{}, err
	}
	d, err := r.Gate().Decide(gate.Fields(attrs))
	if err != nil {
		return gate.Decision{}, err
	}
	s.journal.Log(domain.NewDecisionRecord(d, traceID, domain.SourceConsole))
	return d, nil
}

// notifyUpdate отправляет широковещательный сигнал в Redis.
// Все инстансы condgated, подписанные на канал, перечитают таблицу правил.
func (s *RuleService) notifyUpdate(ctx context.Context) error {
	if s.pub == nil {
		return nil
	}
	if err := s.pub.Publish(ctx, infra.RedisChanRulesRefresh, infra.RedisMsgRefresh).Err(); err != nil {
		return fmt.Errorf("rule_service: failed to notify gateways: %w", err)
	}
	return nil
}
