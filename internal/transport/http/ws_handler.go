package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewWSHandler builds the handler. checkOrigin may be nil to accept any origin.
func NewWSHandler(service *app.QuizService, checkOrigin func(*http.Request) bool, logger *slog.Logger) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Field  string          `json:"field"`
	Values json.RawMessage `json:"values"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message       string   `json:"message"`
	InvalidFields []string `json:"invalid_fields,omitempty"`
}

func newErrorMessage(err error) outboundMessage[any] {
	p := errorPayload{Message: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		p.InvalidFields = verr.Fields
	}
	return outboundMessage[any]{Type: "error", Payload: p}
}

// ServeWS upgrades HTTP requests to websockets and drives one session's commands.
// Every state change is pushed back as a "view" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	if _, err := h.service.Session(sessionID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(newErrorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "session", sessionID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "view", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Submissions outlive the connection.
	submitCtx := context.WithoutCancel(r.Context())

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(submitCtx, sessionID, inbound); err != nil {
			select {
			case send <- newErrorMessage(err):
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errUnsupportedMessage = errors.New("unsupported message type")

func (h *WSHandler) dispatch(ctx context.Context, sessionID string, in inboundMessage) error {
	var err error
	switch in.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return errors.New("invalid answer payload")
		}
		values, derr := decodeValues(payload.Values)
		if derr != nil {
			return derr
		}
		_, err = h.service.SetAnswer(sessionID, payload.Field, values)
	case "advance":
		_, err = h.service.Advance(sessionID)
	case "retreat":
		_, err = h.service.Retreat(sessionID)
	case "submit":
		_, err = h.service.Submit(ctx, sessionID)
	case "retry":
		_, err = h.service.Retry(ctx, sessionID)
	case "edit":
		_, err = h.service.Edit(sessionID)
	default:
		return errUnsupportedMessage
	}
	return err
}
