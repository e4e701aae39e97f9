package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/auxillium/backend/internal/middleware"
	"github.com/auxillium/backend/internal/realtime"
	"github.com/auxillium/backend/internal/service/lifecycle"
	"github.com/auxillium/backend/internal/service/queue"
	"github.com/auxillium/backend/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer; tokens gate the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	writeWait         = 10 * time.Second
	pingPeriod        = 30 * time.Second
	heartbeatInterval = 15 * time.Second
)

// Handler bridges broker subscriptions onto WebSocket and SSE
// transports. Consumers keep their own snapshot and apply the ordered
// events they receive; when a stream drops they re-fetch and resubscribe.
type Handler struct {
	broker     *realtime.Broker
	controller *lifecycle.Controller
	queueSvc   *queue.Service
}

// New creates the stream handler.
func New(broker *realtime.Broker, controller *lifecycle.Controller, queueSvc *queue.Service) *Handler {
	return &Handler{broker: broker, controller: controller, queueSvc: queueSvc}
}

// RegisterRoutes mounts the realtime routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chats/{chatID}/ws", h.handleChatSocket)
	r.Get("/queue/stream", h.handleQueueStream)
}

// handleChatSocket streams one chat's events over a WebSocket.
func (h *Handler) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	chatID := chi.URLParam(r, "chatID")
	if _, err := h.controller.GetChat(r.Context(), sess, chatID); err != nil {
		utils.RespondError(w, http.StatusForbidden, "chat not accessible")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] websocket upgrade failed for chat=%s: %v", chatID, err)
		return
	}

	sub := h.broker.Subscribe(realtime.TopicChat(chatID))
	defer sub.Close()
	defer conn.Close()

	// Reader only drains control frames; clients never send data here.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-sub.Events():
			if !open {
				// Dropped as a slow consumer; the client re-fetches and
				// reconnects.
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleQueueStream pushes the caller's recomputed queue over SSE on
// every chat-level change, mirroring how the queue is a pure projection.
func (h *Handler) handleQueueStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	sub := h.broker.Subscribe(realtime.TopicChats)
	defer sub.Close()

	ctx := r.Context()
	push := func() {
		chats, err := h.queueSvc.Open(ctx, sess)
		if err != nil {
			log.Printf("[stream] queue recompute failed: %v", err)
			return
		}
		utils.SendSSEEvent(w, flusher, "queue", chats)
	}

	push()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case _, open := <-sub.Events():
			if !open {
				return
			}
			push()
		case t := <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			})
		case <-ctx.Done():
			return
		}
	}
}
