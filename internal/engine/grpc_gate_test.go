package engine_test

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/condgate/internal/engine"
)

func callInterceptor(t *testing.T, ic grpc.UnaryServerInterceptor, ctx context.Context, method string, req any) (any, bool, error) {
	t.Helper()
	called := false
	resp, err := ic(ctx, req, &grpc.UnaryServerInfo{FullMethod: method}, func(ctx context.Context, req any) (any, error) {
		called = true
		return "real", nil
	})
	return resp, called, err
}

func TestUnaryGateInterceptor(t *testing.T) {
	j := &memJournal{}
	bindings := map[string]engine.Binding{"/svc/Do": {Rule: "kudos"}}
	ic := engine.UnaryGateInterceptor(kudosSource(), bindings, nil, j, nil, zap.NewNop())

	t.Run("allowed by metadata", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("language", "Python"))
		resp, called, err := callInterceptor(t, ic, ctx, "/svc/Do", nil)
		if err != nil || !called || resp != "real" {
			t.Fatalf("got (%v, %v, %v)", resp, called, err)
		}
	})

	t.Run("suppressed returns empty", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("language", "java"))
		resp, called, err := callInterceptor(t, ic, ctx, "/svc/Do", nil)
		if err != nil || called {
			t.Fatalf("got (%v, %v, %v), want suppressed", resp, called, err)
		}
		if _, ok := resp.(*emptypb.Empty); !ok {
			t.Errorf("resp = %T, want *emptypb.Empty", resp)
		}
	})

	t.Run("attribute from request struct", func(t *testing.T) {
		req, _ := structpb.NewStruct(map[string]any{"language": "c"})
		_, called, err := callInterceptor(t, ic, context.Background(), "/svc/Do", req)
		if err != nil || !called {
			t.Fatalf("got (%v, %v)", called, err)
		}
	})

	t.Run("attribute missing", func(t *testing.T) {
		_, called, err := callInterceptor(t, ic, context.Background(), "/svc/Do", nil)
		if status.Code(err) != codes.InvalidArgument || called {
			t.Fatalf("got (%v, %v), want InvalidArgument", called, err)
		}
	})

	t.Run("unbound method passes through", func(t *testing.T) {
		_, called, err := callInterceptor(t, ic, context.Background(), "/svc/Other", nil)
		if err != nil || !called {
			t.Fatalf("got (%v, %v)", called, err)
		}
	})

	if len(j.records) != 3 {
		t.Errorf("journal has %d records, want 3", len(j.records))
	}
}

func TestUnaryGateInterceptorUnknownRule(t *testing.T) {
	ic := engine.UnaryGateInterceptor(staticSource{}, map[string]engine.Binding{"/svc/Do": {Rule: "nope"}}, nil, &memJournal{}, nil, zap.NewNop())
	_, _, err := callInterceptor(t, ic, context.Background(), "/svc/Do", nil)
	if status.Code(err) != codes.Internal {
		t.Fatalf("err = %v, want Internal", err)
	}
}

func TestKudosOverGRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	board := engine.NewKudosBoard()
	bindings := map[string]engine.Binding{
		engine.KudosAwardMethod: {Rule: "kudos", Empty: func() any { return &structpb.Struct{} }},
	}
	srv := grpc.NewServer(grpc.UnaryInterceptor(
		engine.UnaryGateInterceptor(kudosSource(), bindings, nil, &memJournal{}, engine.NewMetrics(nil), zap.NewNop()),
	))
	srv.RegisterService(&engine.KudosServiceDesc, engine.NewKudosServer(board))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	award := func(lang string) (*structpb.Struct, metadata.MD, error) {
		req, _ := structpb.NewStruct(map[string]any{"language": lang, "value": "100"})
		resp := new(structpb.Struct)
		var header metadata.MD
		err := conn.Invoke(context.Background(), engine.KudosAwardMethod, req, resp, grpc.Header(&header))
		return resp, header, err
	}

	resp, _, err := award("python")
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.GetFields()["data"].GetStringValue(); got != "Kudos acquired: 100" {
		t.Errorf("python data = %q", got)
	}

	resp, header, err := award("java")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.GetFields()) != 0 {
		t.Errorf("suppressed response = %v, want empty", resp)
	}
	if got := header.Get("x-condgate-suppressed"); len(got) != 1 || got[0] != "not_included" {
		t.Errorf("suppressed header = %v", got)
	}
	if board.Get("java") != "No kudos yet" {
		t.Error("suppressed call reached the board")
	}
}
