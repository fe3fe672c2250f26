package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const noKudos = "No kudos yet"

// KudosBoard — демонстрационный сервис за гейтом: начисляет kudos языкам.
// Сам сервис ничего не проверяет, всё решает гейт правила "kudos" перед вызовом.
type KudosBoard struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewKudosBoard() *KudosBoard {
	return &KudosBoard{data: make(map[string]string)}
}

func (b *KudosBoard) Award(language, value string) string {
	msg := fmt.Sprintf("Kudos acquired: %s", value)
	b.mu.Lock()
	b.data[language] = msg
	b.mu.Unlock()
	return msg
}

func (b *KudosBoard) Get(language string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if msg, ok := b.data[language]; ok {
		return msg
	}
	return noKudos
}

// Routes: POST /{language}?value=100 (за гейтом), GET /{language}.
func (b *KudosBoard) Routes(gated func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{language}", b.handleGet)
	r.With(gated).Post("/{language}", b.handleAward)
	return r
}

func (b *KudosBoard) handleGet(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "language")
	writeJSON(w, http.StatusOK, map[string]string{"language": lang, "data": b.Get(lang)})
}

func (b *KudosBoard) handleAward(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "language")
	value := r.URL.Query().Get("value")
	if value == "" {
		value = "1"
	}
	writeJSON(w, http.StatusOK, map[string]string{"language": lang, "data": b.Award(lang, value)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// KudosAwardMethod — полное имя gRPC-метода для привязки к правилу.
const KudosAwardMethod = "/condgate.v1.Kudos/Award"

// KudosServer — gRPC-фасад над KudosBoard. Запрос и ответ — structpb.Struct,
// поэтому сервис описан вручную без сгенерированного кода.
type KudosServer interface {
	Award(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type kudosGRPC struct {
	board *KudosBoard
}

func NewKudosServer(board *KudosBoard) KudosServer {
	return &kudosGRPC{board: board}
}

// Award ждет поля "language" и "value".
func (s *kudosGRPC) Award(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	lang := fields["language"].GetStringValue()
	value := fields["value"].GetStringValue()
	if value == "" {
		value = "1"
	}
	return structpb.NewStruct(map[string]any{
		"language": lang,
		"data":     s.board.Award(lang, value),
	})
}

func kudosAwardHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KudosServer).Award(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: KudosAwardMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KudosServer).Award(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// KudosServiceDesc регистрируется через grpc.Server.RegisterService.
var KudosServiceDesc = grpc.ServiceDesc{
	ServiceName: "condgate.v1.Kudos",
	HandlerType: (*KudosServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Award", Handler: kudosAwardHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "condgate/v1/kudos.proto",
}
