package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"marketmaker-backend/internal/domain"
	"marketmaker-backend/internal/repository"
)

func TestHandleSendsRecentTradesOnConnect(t *testing.T) {
	logs := repository.NewInMemoryTradeLogRepository()
	for _, id := range []string{"a", "b", "c"} {
		err := logs.Append(&domain.TradeLogEntry{
			ID:           id,
			Owner:        "alice",
			TokenAddress: "0xtoken",
			Action:       domain.ActionBuy,
			Success:      true,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	h := NewHandler(logs)
	srv := httptest.NewServer(http.HandlerFunc(h.Handle))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var entries []domain.TradeLogEntry
	if err := conn.ReadJSON(&entries); err != nil {
		t.Fatalf("reading initial payload: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries got=%d want=3", len(entries))
	}
	// Newest first.
	if entries[0].ID != "c" {
		t.Fatalf("head entry got=%s want=c", entries[0].ID)
	}
}
