package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/xela07ax/condgate/internal/gate"
)

// Источник решения
const (
	SourceHTTP    = "http"
	SourceGRPC    = "grpc"
	SourceConsole = "console"
)

// DecisionRecord — запись журнала решений гейтов.
type DecisionRecord struct {
	ID        string    `json:"id"`       // UUID записи
	TraceID   string    `json:"trace_id"` // Сквозной ID запроса
	Rule      string    `json:"rule"`
	Attribute string    `json:"attribute"`
	Value     string    `json:"value"` // Каноническое значение атрибута
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"` // http, grpc, console
	Timestamp time.Time `json:"timestamp"`
}

func NewDecisionRecord(d gate.Decision, traceID, source string) DecisionRecord {
	return DecisionRecord{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		Rule:      d.Gate,
		Attribute: d.Attribute,
		Value:     d.Value,
		Allowed:   d.Allowed,
		Reason:    string(d.Reason),
		Source:    source,
		Timestamp: time.Now(),
	}
}
