package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/formatter"
	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/services"
	"github.com/desertthunder/ytmp3/internal/shared"
)

// maxBodyBytes bounds request bodies accepted by the API.
const maxBodyBytes = 64 << 10

// Queue is the subset of the downloader the API drives.
type Queue interface {
	Enqueue(resourceID, fileName string) string
	Cancel(taskID string) bool
	Depth() (running, waiting int)
}

// History is the read side of the download repository.
type History interface {
	Get(id string) (*models.Download, error)
	GetByTaskID(taskID string) (*models.Download, error)
	List(criteria map[string]any) ([]*models.Download, error)
}

// API serves the JSON endpoints under /api.
type API struct {
	queue   Queue
	history History
	logger  *log.Logger
	parseID func(string) (string, error)
}

// NewAPI creates the API. history may be nil, in which case history routes answer 503.
func NewAPI(queue Queue, history History, logger *log.Logger) *API {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &API{queue: queue, history: history, logger: logger, parseID: services.ParseResourceID}
}

// Register mounts every API route on r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodPost, "/api/downloads", http.HandlerFunc(a.enqueue))
	r.Handle(http.MethodGet, "/api/downloads", http.HandlerFunc(a.list))
	r.Handle(http.MethodGet, "/api/downloads/{id}", http.HandlerFunc(a.get))
	r.Handle(http.MethodDelete, "/api/downloads/{id}", http.HandlerFunc(a.cancel))
	r.Handle(http.MethodGet, "/api/queue", http.HandlerFunc(a.depth))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.health))
}

func (a *API) enqueue(w http.ResponseWriter, r *http.Request) {
	var req models.EnqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ResourceID == "" {
		writeError(w, http.StatusBadRequest, shared.ErrMissingArgument.Error()+": resourceId")
		return
	}

	resourceID, err := a.parseID(req.ResourceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	taskID := a.queue.Enqueue(resourceID, req.FileName)
	a.logger.Info("enqueued", "task", taskID, "resource", resourceID)
	writeJSON(w, http.StatusAccepted, models.EnqueueResponse{TaskID: taskID, ResourceID: resourceID})
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if !a.queue.Cancel(taskID) {
		writeError(w, http.StatusConflict, "task is not waiting: "+taskID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) list(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	q := r.URL.Query()
	criteria := map[string]any{
		"status":      q.Get("status"),
		"resource_id": q.Get("resource"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, shared.ErrInvalidArgument.Error()+": limit")
			return
		}
		criteria["limit"] = limit
	}

	downloads, err := a.history.List(criteria)
	if err != nil {
		a.logger.Error("failed to list downloads", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list downloads")
		return
	}
	writeJSON(w, http.StatusOK, formatter.Records(downloads))
}

// get accepts either a download id or the task id it was recorded for.
func (a *API) get(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	id := r.PathValue("id")
	d, err := a.history.Get(id)
	if errors.Is(err, shared.ErrDownloadNotFound) {
		d, err = a.history.GetByTaskID(id)
	}
	switch {
	case errors.Is(err, shared.ErrDownloadNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		a.logger.Error("failed to get download", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get download")
	default:
		writeJSON(w, http.StatusOK, formatter.NewRecord(d))
	}
}

func (a *API) depth(w http.ResponseWriter, r *http.Request) {
	running, waiting := a.queue.Depth()
	writeJSON(w, http.StatusOK, models.QueueDepth{Running: running, Waiting: waiting, Total: running + waiting})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
