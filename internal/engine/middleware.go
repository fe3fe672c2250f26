package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/gate"
	"github.com/xela07ax/condgate/internal/journal"
)

// GateSource — откуда транспорт берет гейт по имени правила. Реализуется registry.Registry.
type GateSource interface {
	Gate(name string) (*gate.Gate, bool)
}

// HeaderSuppressed — в ответе на подавленный вызов лежит причина.
const HeaderSuppressed = "X-Condgate-Suppressed"

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const traceIDKey ctxKey = "trace_id"

// TracingMiddleware инициализирует Trace-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Пытаемся достать ID из заголовка (если пришел от клиента/прокси)
		traceID := r.Header.Get("X-Trace-ID")

		// 2. Если его нет — генерируем новый
		if traceID == "" {
			traceID = uuid.New().String()
		}

		// 3. Кладем в контекст и в ответ
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext помогает безопасно достать ID в любом месте кода
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return "00000000-0000-0000-0000-000000000000" // Fallback
}

// GateMiddleware пропускает запрос к next, только если гейт правила rule пропускает запрос-получатель.
//   - подавлен: 204 No Content и X-Condgate-Suppressed: <reason>, next не вызывается;
//   - нет атрибута: 400;
//   - нет правила: 500.
func GateMiddleware(src GateSource, rule string, j journal.Logger, m *Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.With(zap.String("mod", "http-gate"), zap.String("rule", rule))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			outcome := OutcomeError
			defer func() { m.observe(domain.SourceHTTP, rule, outcome, start) }()

			g, ok := src.Gate(rule)
			if !ok {
				logger.Error("gate rule is not registered")
				writeJSONError(w, http.StatusInternalServerError, "unknown_rule", rule)
				return
			}

			d, err := g.Decide(NewRequestReceiver(r))
			if err != nil {
				if errors.Is(err, gate.ErrAttributeMissing) {
					writeJSONError(w, http.StatusBadRequest, "attribute_missing", g.Attribute())
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "gate_error", err.Error())
				return
			}

			j.Log(domain.NewDecisionRecord(d, TraceIDFromContext(r.Context()), domain.SourceHTTP))

			if !d.Allowed {
				outcome = OutcomeSuppressed
				w.Header().Set(HeaderSuppressed, string(d.Reason))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			outcome = OutcomeCalled
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "detail": detail})
}
