package providers

import (
	"encoding/json"
	"net/http"

	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// Handler serves the provider directory.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListResponse is the response for listing providers.
type ListResponse struct {
	Providers []Provider `json:"providers"`
	Count     int        `json:"count"`
}

// List handles GET /providers requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	provs, err := h.repo.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list providers", "error", err)
		http.Error(w, "failed to load providers", http.StatusInternalServerError)
		return
	}
	if provs == nil {
		provs = []Provider{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ListResponse{Providers: provs, Count: len(provs)})
}
