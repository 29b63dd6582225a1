package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestTelegramSenderAlert(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
		chat string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"momentum","username":"momentum_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			sent = append(sent, r.Form.Get("text"))
			chat = r.Form.Get("chat_id")
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"group"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := NewTelegramSenderWithEndpoint("token", -100, srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := s.Alert(context.Background(), "New application"); err != nil {
		t.Fatalf("alert: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 || sent[0] != "New application" {
		t.Fatalf("unexpected messages: %v", sent)
	}
	if chat != "-100" {
		t.Fatalf("chat id: %q", chat)
	}
}

func TestTelegramSenderBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	if _, err := NewTelegramSenderWithEndpoint("bad", 1, srv.URL+"/bot%s/%s", srv.Client()); err == nil {
		t.Fatalf("expected error for rejected token")
	}
}
