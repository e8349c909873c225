package websocket

import (
	"log"
	"net/http"
	"time"

	"marketmaker-backend/internal/domain"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Handler streams the trade log to connected clients: recent history on
// connect, then periodic refreshes. Read-only observability, no bot
// control surface.
type Handler struct {
	logs domain.TradeLogRepository
}

func NewHandler(logs domain.TradeLogRepository) *Handler {
	return &Handler{
		logs: logs,
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	log.Println("New trade feed client connected")

	if err := conn.WriteJSON(h.logs.Recent(50)); err != nil {
		log.Println("Write error:", err)
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(h.logs.Recent(50)); err != nil {
			log.Println("Write error:", err)
			return
		}
	}
}
