package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"ferry/internal/backend"
	"ferry/internal/engine"
	"ferry/internal/logging"
	"ferry/internal/media"
	"ferry/internal/metrics"
	"ferry/internal/resolver"
	"ferry/internal/router"
	"ferry/internal/sharelink"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	engine *engine.Engine

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, eng *engine.Engine, gatherer prometheus.Gatherer, logger *slog.Logger) *apiServer {
	bind = strings.TrimSpace(bind)
	if bind == "" || eng == nil {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  token,
		logger: logger,
		engine: eng,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", authMiddleware(token, srv.handleSearch))
	mux.HandleFunc("/api/select", authMiddleware(token, srv.handleSelect))
	mux.HandleFunc("/api/transfer", authMiddleware(token, srv.handleTransfer))
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/offline", authMiddleware(token, srv.handleOffline))
	mux.HandleFunc("/api/health", srv.handleHealth)
	if gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(gatherer))
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound listen address once the server has started.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type searchRequest struct {
	Owner string `json:"owner"`
	Query string `json:"query"`
}

type searchItemView struct {
	Ordinal      int      `json:"ordinal"`
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Kind         string   `json:"kind"`
	Year         string   `json:"year,omitempty"`
	Availability []string `json:"availability"`
}

type resourceView struct {
	Ordinal   int    `json:"ordinal"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	SizeLabel string `json:"size,omitempty"`
	Locator   string `json:"locator"`
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	items, err := s.engine.Search(r.Context(), ownerOrDefault(req.Owner), req.Query)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	views := make([]searchItemView, 0, len(items))
	for i, item := range items {
		views = append(views, searchItemView{
			Ordinal:      i + 1,
			ID:           item.ID,
			Title:        item.Title,
			Kind:         item.Kind.String(),
			Year:         item.Year,
			Availability: availabilityLabels(item.Availability),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

type selectRequest struct {
	Owner   string `json:"owner"`
	Ordinal int    `json:"ordinal"`
	Type    string `json:"type,omitempty"`
}

func (s *apiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner := ownerOrDefault(req.Owner)

	var (
		title        string
		resourceType media.ResourceType
		resources    []media.Resource
	)
	if req.Type != "" {
		t, err := media.ParseResourceType(req.Type)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list, err := s.engine.Resources(r.Context(), owner, req.Ordinal, t)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		resourceType, resources = t, list
	} else {
		sel, err := s.engine.Select(r.Context(), owner, req.Ordinal)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		title, resourceType, resources = sel.Item.Title, sel.Type, sel.Resources
	}

	views := make([]resourceView, 0, len(resources))
	for i, res := range resources {
		views = append(views, resourceView{
			Ordinal:   i + 1,
			Type:      res.Type.String(),
			Title:     res.Title,
			SizeLabel: res.SizeLabel,
			Locator:   res.Locator,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"title":     title,
		"type":      resourceType.String(),
		"resources": views,
	})
}

type transferRequest struct {
	Owner   string `json:"owner"`
	Ordinal int    `json:"ordinal"`
}

type transferResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Backend     string `json:"backend"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`
	Title       string `json:"title,omitempty"`
	SizeLabel   string `json:"size,omitempty"`
	Destination string `json:"destination,omitempty"`
	Degraded    bool   `json:"degraded,omitempty"`
}

func (s *apiServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := s.engine.Transfer(r.Context(), ownerOrDefault(req.Owner), req.Ordinal)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, transferView(out))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"searches":            status.History.Searches,
		"transfers":           status.History.Transfers,
		"transfers_succeeded": status.History.TransfersSucceeded,
		"transfers_failed":    status.History.TransfersFailed,
		"clouddrive":          status.CloudDriveConfigured,
		"drive115":            status.Drive115Configured,
	})
}

func (s *apiServer) handleOffline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	refresh := r.URL.Query().Get("refresh") == "1"
	tasks, err := s.engine.OfflineStatus(r.Context(), refresh)
	if err != nil {
		if errors.Is(err, backend.ErrFeatureUnavailable) {
			s.writeError(w, http.StatusNotImplemented, err.Error())
			return
		}
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	type taskView struct {
		Name     string  `json:"name"`
		Size     int64   `json:"size"`
		Percent  float64 `json:"percent"`
		Finished bool    `json:"finished"`
	}
	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView{
			Name:     task.Name,
			Size:     task.Size,
			Percent:  task.Percent,
			Finished: task.Finished,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": views})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, err := s.engine.Health(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready": false,
			"error": err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ready":   info.Ready,
		"user":    info.User,
		"version": info.Version,
	})
}

// writeEngineError maps engine and backend errors onto HTTP statuses. User
// input problems are 4xx; backend trouble is 502.
func (s *apiServer) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionExpired):
		s.writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, engine.ErrOrdinalOutOfRange),
		errors.Is(err, sharelink.ErrNotShareLink):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, resolver.ErrExhausted):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backend.ErrFeatureUnavailable):
		s.writeError(w, http.StatusNotImplemented, err.Error())
	default:
		s.writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

func transferView(out router.Outcome) transferResponse {
	return transferResponse{
		ID:          out.ID,
		Status:      string(out.Status),
		Backend:     out.Backend,
		Reason:      out.Reason,
		Message:     out.Message,
		Title:       out.Title,
		SizeLabel:   out.SizeLabel,
		Destination: out.Destination,
		Degraded:    out.Degraded,
	}
}

func availabilityLabels(a media.Availability) []string {
	labels := make([]string, 0, 4)
	for _, t := range media.ResourceTypes() {
		if a.Has(t) {
			labels = append(labels, t.String())
		}
	}
	return labels
}

// ownerOrDefault lets single-user deployments omit the owner field.
func ownerOrDefault(owner string) string {
	if strings.TrimSpace(owner) == "" {
		return "default"
	}
	return owner
}
