package engine

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/infra/auth"
)

// AttrHeaderPrefix — атрибуты в HTTP-заголовках: X-Attr-Language: go
const AttrHeaderPrefix = "X-Attr-"

// RequestReceiver — получатель поверх HTTP-запроса.
// Порядок поиска: атрибуты JWT, заголовок X-Attr-<name>, query, URL-параметр chi.
type RequestReceiver struct {
	r      *http.Request
	claims *domain.CustomClaims
}

func NewRequestReceiver(r *http.Request) *RequestReceiver {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return &RequestReceiver{r: r, claims: claims}
}

func (rr *RequestReceiver) GateAttr(name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	if rr.claims != nil {
		if v, ok := rr.claims.Attributes[name]; ok {
			return v, true
		}
	}
	if vals, ok := rr.r.Header[http.CanonicalHeaderKey(AttrHeaderPrefix+name)]; ok && len(vals) > 0 {
		return vals[0], true
	}
	if q := rr.r.URL.Query(); q.Has(name) {
		return q.Get(name), true
	}
	if rctx := chi.RouteContext(rr.r.Context()); rctx != nil {
		for i, k := range rctx.URLParams.Keys {
			if k == name && i < len(rctx.URLParams.Values) {
				return rctx.URLParams.Values[i], true
			}
		}
	}
	return nil, false
}

// MetadataReceiver — получатель поверх gRPC-вызова.
// Порядок поиска: атрибуты JWT, metadata (ключ в нижнем регистре), поля запроса *structpb.Struct.
type MetadataReceiver struct {
	md     metadata.MD
	claims *domain.CustomClaims
	req    any
}

func NewMetadataReceiver(md metadata.MD, claims *domain.CustomClaims, req any) *MetadataReceiver {
	return &MetadataReceiver{md: md, claims: claims, req: req}
}

func (mr *MetadataReceiver) GateAttr(name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	if mr.claims != nil {
		if v, ok := mr.claims.Attributes[name]; ok {
			return v, true
		}
	}
	if vals := mr.md.Get(strings.ToLower(name)); len(vals) > 0 {
		return vals[0], true
	}
	if s, ok := mr.req.(*structpb.Struct); ok && s != nil {
		if v, ok := s.GetFields()[name]; ok {
			return v.AsInterface(), true
		}
	}
	return nil, false
}
