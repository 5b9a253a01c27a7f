package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"draw-relay/internal/export"
	"draw-relay/internal/models"
	"draw-relay/internal/session"
	"draw-relay/internal/storage"
	"draw-relay/internal/store"
	"draw-relay/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Server wires the store, broadcast hub, and router behind the HTTP
// surface.
type Server struct {
	store  *store.Store
	hub    *ws.Hub
	router *session.Router
	audit  *storage.AuditLog
	thumbs *ThumbnailCache
}

// New creates the server and starts the hub's broadcast loop.
func New(st *store.Store, audit *storage.AuditLog) *Server {
	hub := ws.NewHub()
	go hub.Run()

	s := &Server{
		store:  st,
		hub:    hub,
		router: session.New(hub, st, audit),
		audit:  audit,
		thumbs: NewThumbnailCache(),
	}
	s.router.OnDeleteAll = s.thumbs.Reset
	return s
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rendered-submissions.zip", s.handleArchive)
	mux.HandleFunc("/thumbnail/", s.handleThumbnail)
	mux.HandleFunc("/api/moderation-log", s.handleModerationLog)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "Socket server running.")
}

// handleWebSocket upgrades the connection and hands it to the router. The
// role query parameter is self-declared and unverified; anything
// unrecognized joins as a silent observer.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	role := models.ParseRole(r.URL.Query().Get("role"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.router.HandleConnection(conn, role)
}

// handleArchive streams the rendered-submission zip straight into the
// response. Once bytes are on the wire a failure can only truncate the
// archive; that is the fail-closed signal the client gets.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="rendered-submissions.zip"`)

	if err := export.WriteArchive(w, s.store.Snapshot()); err != nil {
		log.Printf("Archive export aborted: %v", err)
	}
}

func (s *Server) handleModerationLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit log unavailable", http.StatusServiceUnavailable)
		return
	}

	entries, err := s.audit.Entries()
	if err != nil {
		log.Printf("Failed to read audit log: %v", err)
		http.Error(w, "failed to read audit log", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
