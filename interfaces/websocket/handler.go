// Package websocket streams a user's full record set to connected clients
// on every change to their document.
package websocket

import (
	"net/http"
	"time"

	"recall-backend/application/ports"
	appsync "recall-backend/application/sync"
	"recall-backend/domain/memory"
	"recall-backend/interfaces/http/rest/handlers"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is the frame sent to clients. Type is "memories" for subscription
// pushes and "filtered" for responses to filter commands.
type Message struct {
	Type      string                    `json:"type"`
	Memories  []handlers.MemoryResponse `json:"memories"`
	Count     int                       `json:"count"`
	Timestamp int64                     `json:"timestamp"`
}

// Command is a frame received from clients to adjust the session's derived
// view.
type Command struct {
	Type          string `json:"type"`
	Query         string `json:"q,omitempty"`
	Priority      string `json:"priority,omitempty"`
	CompletedOnly bool   `json:"completed_only,omitempty"`
}

// Handler upgrades HTTP requests and owns one sync session per connection.
type Handler struct {
	repo     ports.MemoryRepository
	sessions ports.SessionProvider
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handler.
func NewHandler(repo ports.MemoryRepository, sessions ports.SessionProvider, logger *zap.Logger) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Token auth happens before the upgrade; cross-origin browser
			// clients are expected.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /memories/ws. The route sits behind the auth middleware,
// so the session provider can always resolve the owner here.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessions.CurrentUserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("websocket connected", zap.String("userID", userID))

	session := appsync.NewSession(h.repo, h.sessions, h.logger)
	defer session.Close()

	// Pushes are handed to the writer goroutine; the buffer absorbs bursts
	// and the non-blocking send keeps the subscription producer unblocked.
	pushes := make(chan Message, 8)
	session.SetOnUpdate(func(memories []memory.Memory) {
		select {
		case pushes <- newMessage("memories", memories):
		default:
			h.logger.Debug("dropping push for slow websocket client",
				zap.String("userID", userID),
			)
		}
	})

	if err := session.Start(r.Context()); err != nil {
		h.logger.Warn("failed to start sync session", zap.Error(err))
		return
	}

	done := make(chan struct{})
	go h.writeLoop(conn, pushes, done)
	h.readLoop(conn, session, pushes)
	close(done)

	h.logger.Info("websocket disconnected", zap.String("userID", userID))
}

func newMessage(msgType string, memories []memory.Memory) Message {
	return Message{
		Type:      msgType,
		Memories:  handlers.NewMemoryListResponse(memories),
		Count:     len(memories),
		Timestamp: time.Now().Unix(),
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, pushes <-chan Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-pushes:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes filter commands until the client disconnects.
func (h *Handler) readLoop(conn *websocket.Conn, session *appsync.Session, pushes chan<- Message) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		switch cmd.Type {
		case "set_filters":
			session.SetSearchText(cmd.Query)
			if p, ok := memory.ParsePriority(cmd.Priority); ok {
				session.SetPriorityFilter(&p)
			} else {
				session.SetPriorityFilter(nil)
			}
			session.SetCompletedOnly(cmd.CompletedOnly)
			select {
			case pushes <- newMessage("filtered", session.FilteredMemories()):
			default:
			}
		case "clear_filters":
			session.ClearFilters()
			select {
			case pushes <- newMessage("filtered", session.FilteredMemories()):
			default:
			}
		}
	}
}
