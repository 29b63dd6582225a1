package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMailgunSender(t *testing.T) {
	var got struct {
		path, user, pass, to, subject, html, from string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.user, got.pass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got.to = r.PostForm.Get("to")
		got.subject = r.PostForm.Get("subject")
		got.html = r.PostForm.Get("html")
		got.from = r.PostForm.Get("from")
		w.Write([]byte(`{"id":"<1@mg>","message":"Queued. Thank you."}`))
	}))
	defer srv.Close()

	s := NewMailgunSender("mg.example.com", "key-123", "", srv.URL)
	err := s.SendEmail(context.Background(), Message{To: "dana@example.com", Subject: "Hi", HTML: "<p>hi</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.path != "/v3/mg.example.com/messages" {
		t.Errorf("path: %q", got.path)
	}
	if got.user != "api" || got.pass != "key-123" {
		t.Errorf("basic auth: %q %q", got.user, got.pass)
	}
	if got.to != "dana@example.com" || got.subject != "Hi" || got.html != "<p>hi</p>" {
		t.Errorf("form: %+v", got)
	}
	if got.from != "Momentum <hq@mg.example.com>" {
		t.Errorf("from: %q", got.from)
	}
}

func TestMailgunSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewMailgunSender("mg.example.com", "bad", "hq@example.com", srv.URL).
		SendEmail(context.Background(), Message{To: "x@example.com"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}
