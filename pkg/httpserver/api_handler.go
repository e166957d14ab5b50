package httpserver

import (
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	defaultOpportunityLimit = 50
	maxOpportunityLimit     = 500
)

type apiHandler struct {
	opportunities OpportunityLister
	portfolio     PortfolioSource
	logger        *zap.Logger
}

func newAPIHandler(opportunities OpportunityLister, portfolio PortfolioSource, logger *zap.Logger) *apiHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiHandler{
		opportunities: opportunities,
		portfolio:     portfolio,
		logger:        logger,
	}
}

// handleOpportunities serves the newest detected opportunities. The limit
// query parameter is clamped to [1, 500].
func (h *apiHandler) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := defaultOpportunityLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxOpportunityLimit {
		limit = maxOpportunityLimit
	}

	opps, err := h.opportunities.ListRecentOpportunities(r.Context(), limit)
	if err != nil {
		h.logger.Error("list-opportunities-failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	h.writeJSON(w, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
		"as_of":         time.Now().UTC().Format(time.RFC3339),
	})
}

// handlePortfolio serves the guard's current view of the portfolio.
func (h *apiHandler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.portfolio.Summary())
}

func (h *apiHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response-encode-failed", zap.Error(err))
	}
}

func (h *apiHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
