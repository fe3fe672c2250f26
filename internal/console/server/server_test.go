package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/condgate/internal/console/handler"
	"github.com/xela07ax/condgate/internal/console/server"
	"github.com/xela07ax/condgate/internal/console/service"
	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/gate"
	"github.com/xela07ax/condgate/internal/infra/auth"
)

const adminKey = "s3cret"

type memStore struct {
	rules     map[string]domain.Rule
	decisions []domain.DecisionRecord
}

func (m *memStore) GetRule(_ context.Context, name string) (*domain.Rule, error) {
	r, ok := m.rules[name]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	return &r, nil
}

func (m *memStore) GetAllRules(context.Context) ([]domain.Rule, error) {
	var out []domain.Rule
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) CreateRule(_ context.Context, r *domain.Rule) error {
	if _, ok := m.rules[r.Name]; ok {
		return domain.ErrRuleExists
	}
	m.rules[r.Name] = *r
	return nil
}

func (m *memStore) UpdateRule(_ context.Context, r *domain.Rule) error {
	if _, ok := m.rules[r.Name]; !ok {
		return domain.ErrRuleNotFound
	}
	m.rules[r.Name] = *r
	return nil
}

func (m *memStore) DeleteRule(_ context.Context, name string) error {
	if _, ok := m.rules[name]; !ok {
		return domain.ErrRuleNotFound
	}
	delete(m.rules, name)
	return nil
}

func (m *memStore) Log(rec domain.DecisionRecord) { m.decisions = append(m.decisions, rec) }

func (m *memStore) RecentDecisions(_ context.Context, rule string, _ int) ([]domain.DecisionRecord, error) {
	var out []domain.DecisionRecord
	for _, d := range m.decisions {
		if rule == "" || d.Rule == rule {
			out = append(out, d)
		}
	}
	return out, nil
}

func newConsole(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	hash, err := auth.HashAdminKey(adminKey)
	if err != nil {
		t.Fatal(err)
	}
	st := &memStore{rules: map[string]domain.Rule{}}
	srv := server.NewConsoleServer(
		zaptest.NewLogger(t),
		hash,
		handler.NewRuleHandler(service.NewRuleService(st, nil, st)),
		handler.NewDecisionHandler(service.NewDecisionService(st)),
	)
	return srv, st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Admin-Key", adminKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h, _ := newConsole(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d, want 200", rec.Code)
	}
}

func TestRulesRequireAdminKey(t *testing.T) {
	h, _ := newConsole(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/rules", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRuleCRUD(t *testing.T) {
	h, st := newConsole(t)

	body := `{"name":"kudos","attribute":"language","included":["Python","C"],"excluded":["Java"]}`
	if rec := do(t, h, http.MethodPost, "/v1/rules", body); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodPost, "/v1/rules", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/rules", `{"name":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid create = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/rules", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("broken json = %d, want 400", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/v1/rules/kudos", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	var got domain.Rule
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Python", "C"}, got.Included); diff != "" {
		t.Errorf("included mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, h, http.MethodPut, "/v1/rules/kudos", `{"attribute":"language","excluded":["Java"]}`); rec.Code != http.StatusNoContent {
		t.Errorf("update = %d, want 204", rec.Code)
	}
	if len(st.rules["kudos"].Included) != 0 {
		t.Errorf("included after update = %v, want empty", st.rules["kudos"].Included)
	}
	if rec := do(t, h, http.MethodPut, "/v1/rules/missing", `{"attribute":"a"}`); rec.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/v1/rules", "")
	var list []domain.Rule
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list) != 1 {
		t.Errorf("list = %v (%v), want one rule", list, err)
	}

	if rec := do(t, h, http.MethodDelete, "/v1/rules/kudos", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/rules/kudos", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestEmptyListIsArray(t *testing.T) {
	h, _ := newConsole(t)
	rec := do(t, h, http.MethodGet, "/v1/rules", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestEvaluateAndDecisions(t *testing.T) {
	h, st := newConsole(t)
	st.rules["kudos"] = domain.Rule{Name: "kudos", Attribute: "language", Included: []string{"Python", "C"}, Excluded: []string{"Java"}}

	rec := do(t, h, http.MethodPost, "/v1/rules/kudos/evaluate", `{"language":" python "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate = %d %s", rec.Code, rec.Body)
	}
	var d gate.Decision
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	want := gate.Decision{Gate: "kudos", Attribute: "language", Value: "PYTHON", Allowed: true, Reason: gate.ReasonAllowed}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, h, http.MethodPost, "/v1/rules/kudos/evaluate", `{"lang":"go"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing attribute = %d, want 422", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/rules/nope/evaluate", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown rule = %d, want 404", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/v1/decisions?rule=kudos&limit=10", "")
	var recs []domain.DecisionRecord
	if err := json.NewDecoder(rec.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Source != domain.SourceConsole || recs[0].Value != "PYTHON" {
		t.Errorf("decisions = %+v, want one console record for PYTHON", recs)
	}
}
