package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xela07ax/condgate/internal/console/service"
	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/gate"
)

type RuleHandler struct {
	service *service.RuleService
}

func NewRuleHandler(s *service.RuleService) *RuleHandler {
	return &RuleHandler{service: s}
}

// Get возвращает правило по имени.
// GET /v1/rules/{name}
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// List возвращает все правила для админки
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if rules == nil {
		rules = []domain.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// Create создает новое правило
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.Create(r.Context(), &rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// Update меняет атрибут и фильтры правила. Имя берется из пути.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rule.Name = chi.URLParam(r, "name")

	if err := h.service.Update(r.Context(), &rule); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete удаляет правило и инициирует инвалидацию кэша
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Evaluate — dry-run решения для набора атрибутов.
// POST /v1/rules/{name}/evaluate {"language": "python"}
func (h *RuleHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.service.Evaluate(r.Context(), chi.URLParam(r, "name"), attrs, middleware.GetReqID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменные ошибки в HTTP-коды.
// tip: детали внутренних ошибок наружу не отдаем
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, domain.ErrRuleNotFound):
		status, code = http.StatusNotFound, "rule_not_found"
	case errors.Is(err, domain.ErrRuleExists):
		status, code = http.StatusConflict, "rule_exists"
	case errors.Is(err, domain.ErrInvalidRule):
		status, code = http.StatusBadRequest, err.Error()
	case errors.Is(err, gate.ErrAttributeMissing):
		status, code = http.StatusUnprocessableEntity, err.Error()
	}
	writeJSON(w, status, map[string]string{"error": code})
}
