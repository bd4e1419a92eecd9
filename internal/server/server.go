// Package server exposes the resolver and search over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"hoplink/internal/keycodec"
	"hoplink/internal/media"
)

type resolverService interface {
	Resolve(ctx context.Context, req media.Request) media.Result
}

type searchService interface {
	Search(ctx context.Context, query string) []media.SearchItem
	Home(ctx context.Context) []media.Section
}

// Handler serves the API routes.
type Handler struct {
	Resolver resolverService
	Search   searchService
	Log      *logrus.Entry
}

func NewHandler(r resolverService, s searchService, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{Resolver: r, Search: s, Log: log}
}

// Router registers every route on a new mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestID)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/resolve", h.Resolve).Methods(http.MethodGet)
	api.HandleFunc("/search", h.SearchItems).Methods(http.MethodGet)
	api.HandleFunc("/home", h.Home).Methods(http.MethodGet)
	api.HandleFunc("/keys", h.EncodeKey).Methods(http.MethodPost)
	return r
}

type ctxKey struct{}

// requestID tags each request with an X-Request-ID, reusing the caller's.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))

		h.Log.WithFields(logrus.Fields{
			"request_id":  id,
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("request")
	})
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Resolve handles GET /api/resolve?key=...&all=true. Resolution failures are
// part of the result and answered with 200.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeJSONError(w, "key is required", http.StatusBadRequest)
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	res := h.Resolver.Resolve(r.Context(), media.Request{Input: key, AllServers: all})
	writeJSON(w, http.StatusOK, res)
}

// SearchItems handles GET /api/search?q=...
func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSONError(w, "q is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": h.Search.Search(r.Context(), q)})
}

// Home handles GET /api/home.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sections": h.Search.Home(r.Context())})
}

// EncodeKey handles POST /api/keys with a JSON payload body.
func (h *Handler) EncodeKey(w http.ResponseWriter, r *http.Request) {
	var p keycodec.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&p); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if p.URL == "" {
		writeJSONError(w, "url is required", http.StatusBadRequest)
		return
	}
	key, err := keycodec.Encode(p)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ListenAndServe runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *logrus.Entry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
