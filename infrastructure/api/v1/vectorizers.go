// Package v1 provides the v1 API routes.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/embedq/embedq"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/api/middleware"
)

// VectorizersRouter handles vectorizer API endpoints.
type VectorizersRouter struct {
	client *embedq.Client
	logger *slog.Logger
}

// NewVectorizersRouter creates a new VectorizersRouter.
func NewVectorizersRouter(client *embedq.Client) *VectorizersRouter {
	return &VectorizersRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for vectorizer endpoints.
func (r *VectorizersRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Get("/{name}", r.Get)
	router.Delete("/{name}", r.Delete)
	router.Get("/{name}/status", r.Status)
	router.Get("/{name}/queue-depth", r.QueueDepth)
	router.Get("/{name}/failed", r.Failed)
	router.Post("/{name}/run", r.Run)
	router.Post("/{name}/enable", r.Enable)
	router.Post("/{name}/disable", r.Disable)

	return router
}

// List handles GET /api/v1/vectorizers.
func (r *VectorizersRouter) List(w http.ResponseWriter, req *http.Request) {
	vectorizers, err := r.client.Vectorizers().List(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	items := make([]VectorizerResponse, 0, len(vectorizers))
	for _, v := range vectorizers {
		items = append(items, vectorizerToDTO(v))
	}
	middleware.WriteJSON(w, http.StatusOK, VectorizerListResponse{Data: items})
}

// Create handles POST /api/v1/vectorizers.
func (r *VectorizersRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body CreateVectorizerRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	var cfg vectorizer.Config
	if len(body.Config) > 0 {
		if err := json.Unmarshal(body.Config, &cfg); err != nil {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid config: " + err.Error()})
			return
		}
	}

	v, err := r.client.Vectorizers().Create(req.Context(), body.Name, body.SourceTable, cfg)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, vectorizerToDTO(v))
}

// Get handles GET /api/v1/vectorizers/{name}.
func (r *VectorizersRouter) Get(w http.ResponseWriter, req *http.Request) {
	v, err := r.client.Vectorizers().Get(req.Context(), chi.URLParam(req, "name"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, vectorizerToDTO(v))
}

// Delete handles DELETE /api/v1/vectorizers/{name}.
func (r *VectorizersRouter) Delete(w http.ResponseWriter, req *http.Request) {
	dropDestination := req.URL.Query().Get("drop_destination") == "true"

	err := r.client.Vectorizers().Remove(req.Context(), chi.URLParam(req, "name"), dropDestination)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/v1/vectorizers/{name}/status.
func (r *VectorizersRouter) Status(w http.ResponseWriter, req *http.Request) {
	status, err := r.client.Vectorizers().Status(req.Context(), chi.URLParam(req, "name"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, statusToDTO(status))
}

// QueueDepth handles GET /api/v1/vectorizers/{name}/queue-depth.
func (r *VectorizersRouter) QueueDepth(w http.ResponseWriter, req *http.Request) {
	exact := req.URL.Query().Get("exact") == "true"

	depth, err := r.client.Vectorizers().QueueDepth(req.Context(), chi.URLParam(req, "name"), exact)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, QueueDepthResponse{Depth: depth, Exact: exact})
}

// Failed handles GET /api/v1/vectorizers/{name}/failed.
func (r *VectorizersRouter) Failed(w http.ResponseWriter, req *http.Request) {
	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := r.client.Vectorizers().FailedItems(req.Context(), chi.URLParam(req, "name"), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	data := make([]FailedItemResponse, 0, len(items))
	for _, item := range items {
		data = append(data, FailedItemResponse{
			Key:       item.Key().Values(),
			Stage:     item.Stage(),
			CreatedAt: item.CreatedAt(),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, FailedListResponse{Data: data})
}

// Run handles POST /api/v1/vectorizers/{name}/run: one immediate tick.
func (r *VectorizersRouter) Run(w http.ResponseWriter, req *http.Request) {
	processed, err := r.client.RunNow(req.Context(), chi.URLParam(req, "name"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, RunResponse{Processed: processed})
}

// Enable handles POST /api/v1/vectorizers/{name}/enable.
func (r *VectorizersRouter) Enable(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Vectorizers().Enable(req.Context(), chi.URLParam(req, "name")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Disable handles POST /api/v1/vectorizers/{name}/disable.
func (r *VectorizersRouter) Disable(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Vectorizers().Disable(req.Context(), chi.URLParam(req, "name")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
