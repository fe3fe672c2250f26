package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/gate"
	"github.com/xela07ax/condgate/internal/infra/auth"
	"github.com/xela07ax/condgate/internal/journal"
)

// Binding привязывает gRPC-метод к правилу.
// Empty строит пустой ответ для подавленного вызова; по умолчанию emptypb.Empty.
type Binding struct {
	Rule  string
	Empty func() any
}

func (b Binding) empty() any {
	if b.Empty != nil {
		return b.Empty()
	}
	return &emptypb.Empty{}
}

// UnaryGateInterceptor гейтирует привязанные методы; остальные проходят без проверок.
// Токен (если валидатор задан) берется из metadata "authorization".
func UnaryGateInterceptor(
	src GateSource,
	bindings map[string]Binding,
	v auth.TokenValidator,
	j journal.Logger,
	m *Metrics,
	logger *zap.Logger,
) grpc.UnaryServerInterceptor {
	logger = logger.With(zap.String("mod", "grpc-gate"))

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		b, ok := bindings[info.FullMethod]
		if !ok {
			return handler(ctx, req)
		}

		start := time.Now()
		outcome := OutcomeError
		defer func() { m.observe(domain.SourceGRPC, b.Rule, outcome, start) }()

		// 1. Метаданные (в gRPC заголовки в нижнем регистре)
		md, _ := metadata.FromIncomingContext(ctx)

		// 2. Токен с атрибутами, если есть
		var claims *domain.CustomClaims
		if tokens := md.Get("authorization"); len(tokens) > 0 && v != nil {
			c, err := v.VerifyToken(tokens[0])
			if err != nil {
				return nil, status.Errorf(codes.Unauthenticated, "invalid token")
			}
			claims = c
			ctx = auth.WithClaims(ctx, c)
		}

		traceID := uuid.New().String()
		if ids := md.Get("x-trace-id"); len(ids) > 0 && ids[0] != "" {
			traceID = ids[0]
		}
		ctx = WithTraceID(ctx, traceID)

		g, ok := src.Gate(b.Rule)
		if !ok {
			logger.Error("gate rule is not registered", zap.String("rule", b.Rule), zap.String("method", info.FullMethod))
			return nil, status.Errorf(codes.Internal, "unknown gate rule %q", b.Rule)
		}

		// 3. Решение
		d, err := g.Decide(NewMetadataReceiver(md, claims, req))
		if err != nil {
			if errors.Is(err, gate.ErrAttributeMissing) {
				return nil, status.Errorf(codes.InvalidArgument, "attribute %q is required", g.Attribute())
			}
			return nil, status.Error(codes.Internal, err.Error())
		}
		j.Log(domain.NewDecisionRecord(d, traceID, domain.SourceGRPC))

		if !d.Allowed {
			outcome = OutcomeSuppressed
			// Без серверного стрима (прямой вызов в тестах) SetHeader вернет ошибку — это не важно
			_ = grpc.SetHeader(ctx, metadata.Pairs("x-condgate-suppressed", string(d.Reason)))
			return b.empty(), nil
		}

		outcome = OutcomeCalled
		return handler(ctx, req)
	}
}
