package vfdapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"vfdswmr/logger"
)

// Server is the admin/introspection HTTP server: a gorilla/mux router
// registered one route at a time, the way the teacher's own API
// package registers its handlers.
type Server struct {
	reg *Registry
	srv *http.Server
}

// NewServer builds a Server bound to addr, backed by reg. The server
// is not started until Start is called.
func NewServer(addr string, reg *Registry) *Server {
	router := mux.NewRouter()
	s := &Server{reg: reg}

	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/files/{path:.*}/header", s.handleFileHeader).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:     addr,
		Handler:  router,
		ErrorLog: logger.SetHTTPServerErrorLog(),
	}
	return s
}

// Start begins serving in a background goroutine. Listen errors other
// than a clean shutdown are logged, not returned, matching the
// best-effort policy for ancillary (non-core) subsystems.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("vfdapi: server exited: %v", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.reg.Status()); err != nil {
		logger.Warn("vfdapi: failed to encode /status response: %v", err)
	}
}

func (s *Server) handleFileHeader(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	reg, ok := s.reg.Lookup("/" + path)
	if !ok {
		reg, ok = s.reg.Lookup(path)
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	hdr, err := reg.Handle.ReadHeader()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hdr); err != nil {
		logger.Warn("vfdapi: failed to encode header response for %s: %v", path, err)
	}
}
