// Package server wires the HTTP surface: websocket upgrade, room REST
// endpoints, and the media routes.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Premkumarr7/WatchMovie/internal/media"
	"github.com/Premkumarr7/WatchMovie/internal/room"
)

// Configure the websocket upgrader. 64 KB buffers match the read limit on
// the connection; WebRTC SDP payloads are the largest messages relayed.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The browser client is served from arbitrary origins in development.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server bundles the dependencies the handlers need.
type Server struct {
	registry *room.Registry
	store    *media.Store
	media    *media.Handler
}

// New returns a Server using the given registry and media store.
func New(registry *room.Registry, store *media.Store) *Server {
	return &Server{
		registry: registry,
		store:    store,
		media:    media.NewHandler(store),
	}
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(allowCORS)

	r.Get("/health", handleHealth)
	r.Get("/ws", s.handleWebsocket)

	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", s.handleCreateRoom)
		r.Get("/{roomId}", s.handleRoomInfo)
		r.Post("/{roomId}/upload", s.handleUpload)
	})

	r.Get("/media/{roomId}/{fileName}", s.media.Stream)

	return r
}

// allowCORS mirrors the permissive cross-origin policy of the upgrader for
// the REST and media routes.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health check endpoint.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Watch party server is healthy."))
}

// handleWebsocket upgrades the connection and joins it to its room. The
// room id comes from the query string; a blank one is rejected before the
// upgrade, so the connection is never registered.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(r.URL.Query().Get("roomId"))
	name := r.URL.Query().Get("name")
	if roomID == "" {
		http.Error(w, "roomId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	client := room.Join(s.registry, conn, roomID, name)

	// One goroutine each for reads and writes; their lifetimes bound the
	// connection's membership in the room.
	go client.WritePump()
	go client.ReadPump()
}

// handleCreateRoom mints a short opaque room id, prepares its storage
// directory, and registers the room so a websocket join finds it live.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()[:8]
	if err := s.store.EnsureRoomDir(id); err != nil {
		log.WithError(err).Error("failed to create room directory")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "could not create room"})
		return
	}
	s.registry.GetOrCreate(id)

	writeJSON(w, http.StatusOK, map[string]any{
		"roomId":  id,
		"joinUrl": "/room.html?roomId=" + id,
	})
}

// handleRoomInfo reports the room's current playback source. Referencing an
// unknown id creates the room, matching the lazy-creation contract of the
// registry.
func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	rm := s.registry.GetOrCreate(chi.URLParam(r, "roomId"))

	resp := map[string]any{
		"roomId":          rm.ID,
		"currentVideoUrl": nil,
		"fileName":        nil,
	}
	if url, fileName, ok := rm.Source(); ok {
		resp["currentVideoUrl"] = url
		resp["fileName"] = fileName
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpload accepts a multipart media file for a room and points the
// room's source at it. This is the same Room mutation the websocket
// setSource path performs, so both stay consistent.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	file, header, err := r.FormFile("file")
	if err != nil || header.Size == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Empty file"})
		return
	}
	defer file.Close()

	name, err := s.store.Save(roomID, header.Filename, file)
	if err != nil {
		if errors.Is(err, media.ErrDisallowedType) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Only mp4/webm/ogg allowed"})
			return
		}
		log.WithFields(log.Fields{"roomId": roomID}).WithError(err).Error("upload failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "upload failed"})
		return
	}

	url := "/media/" + roomID + "/" + name
	rm := s.registry.GetOrCreate(roomID)
	rm.SetSource(url, name)

	log.WithFields(log.Fields{"roomId": roomID, "fileName": name}).Info("media uploaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"url":      url,
		"fileName": name,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
