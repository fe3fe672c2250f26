package handler

import (
	"net/http"
	"strconv"

	"github.com/xela07ax/condgate/internal/console/service"
	"github.com/xela07ax/condgate/internal/domain"
)

type DecisionHandler struct {
	service *service.DecisionService
}

func NewDecisionHandler(s *service.DecisionService) *DecisionHandler {
	return &DecisionHandler{service: s}
}

// List возвращает последние решения гейтов
// GET /v1/decisions?rule=kudos&limit=50
func (h *DecisionHandler) List(w http.ResponseWriter, r *http.Request) {
	rule := r.URL.Query().Get("rule")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.service.Recent(r.Context(), rule, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
