package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"talkbridge/internal/service"
	"talkbridge/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server отдаёт команды и события записи фронтенду:
// команды и запросы по HTTP, события по websocket
type Server struct {
	Port      string
	Recording *service.RecordingService

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

// NewServer создаёт сервер и подписывается на события записи
func NewServer(port string, recording *service.RecordingService) *Server {
	s := &Server{
		Port:      port,
		Recording: recording,
		clients:   make(map[*websocket.Conn]bool),
	}
	s.setupCallbacks()
	return s
}

// Start блокирующий запуск HTTP сервера
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/session/start", s.handleStart)
	mux.HandleFunc("/api/session/stop", s.handleStop)
	mux.HandleFunc("/api/session/stats", s.handleStats)
	mux.HandleFunc("/api/session/segments", s.handleSegments)

	log.Printf("Backend listening on :%s", s.Port)
	return http.ListenAndServe(":"+s.Port, mux)
}

func (s *Server) setupCallbacks() {
	// Segment Ready -> Notify + live stats
	s.Recording.OnSegmentReady = func(segmentNumber int, seg *session.Segment) {
		stats := s.Recording.Stats()
		s.broadcast(Message{
			Type:      MsgSegmentReady,
			SessionID: seg.SessionID,
			Segment:   seg,
		})
		s.broadcast(Message{Type: MsgStats, SessionID: stats.SessionID, Stats: &stats})
	}

	// Session Complete -> Notify
	s.Recording.OnSessionComplete = func(snapshot session.Snapshot) {
		s.broadcast(Message{
			Type:      MsgSessionComplete,
			SessionID: snapshot.SessionID,
			Snapshot:  &snapshot,
		})
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	// Читаем до разрыва чтобы заметить отключение клиента
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, err := s.Recording.StartSession()
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcast(Message{Type: MsgSessionStarted, SessionID: sessionID})
	writeJSON(w, map[string]string{"sessionId": sessionID})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.Recording.StopSession(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "stopping"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.Recording.Stats()
	writeJSON(w, map[string]any{
		"stats":                stats,
		"isRecording":          s.Recording.IsRecording(),
		"currentSegmentNumber": s.Recording.CurrentSegmentNumber(),
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Recording.Segments())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionAlreadyActive), errors.Is(err, session.ErrSessionNotActive):
		status = http.StatusConflict
	case errors.Is(err, session.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
