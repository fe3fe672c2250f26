package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/condgate/internal/domain"
)

// DecisionReader описывает контракт для чтения журнала решений.
type DecisionReader interface {
	RecentDecisions(ctx context.Context, rule string, limit int) ([]domain.DecisionRecord, error)
}

type DecisionService struct {
	repo DecisionReader
}

func NewDecisionService(repo DecisionReader) *DecisionService {
	return &DecisionService{repo: repo}
}

func (s *DecisionService) Recent(ctx context.Context, rule string, limit int) ([]domain.DecisionRecord, error) {
	recs, err := s.repo.RecentDecisions(ctx, rule, limit)
	if err != nil {
		return nil, fmt.Errorf("decision_service: failed to fetch decisions: %w", err)
	}
	return recs, nil
}
