package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/domain"
)

// ClientIDHeader identifies the browser a session or flag belongs to.
const ClientIDHeader = "X-Client-ID"

// LanguageMatcher picks a supported language from an Accept-Language header.
type LanguageMatcher interface {
	Match(acceptLanguage string) string
}

// APIHandler serves the JSON REST API.
type APIHandler struct {
	service *app.QuizService
	langs   LanguageMatcher
	log     *slog.Logger
}

func NewAPIHandler(service *app.QuizService, langs LanguageMatcher, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{service: service, langs: langs, log: logger}
}

// Routes mounts the API under the given router.
func (h *APIHandler) Routes(r chi.Router) {
	r.Route("/quizzes/{quizID}", func(r chi.Router) {
		r.Get("/", h.getQuiz)
		r.Post("/score", h.score)
		r.Post("/credit-estimate", h.creditEstimate)
		r.Post("/sessions", h.startSession)
	})
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.closeSession)
		r.Put("/answers/{field}", h.setAnswer)
		r.Post("/advance", h.advance)
		r.Post("/retreat", h.retreat)
		r.Post("/submit", h.submit)
		r.Post("/retry", h.retry)
		r.Post("/edit", h.edit)
	})
	r.Get("/flags/{key}", h.getFlag)
	r.Put("/flags/{key}", h.putFlag)
}

func (h *APIHandler) lang(r *http.Request) string {
	if h.langs == nil {
		return ""
	}
	return h.langs.Match(r.Header.Get("Accept-Language"))
}

// publicQuiz is a definition without its scoring weights.
type publicQuiz struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	TotalSteps int           `json:"total_steps"`
	Steps      []domain.Step `json:"steps"`
}

func (h *APIHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.Quiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, publicQuiz{
		ID:         quiz.ID,
		Title:      quiz.Title,
		TotalSteps: len(quiz.Steps),
		Steps:      quiz.Steps,
	})
}

type answersRequest struct {
	Answers answersInput `json:"answers"`
}

func decodeAnswers(r *http.Request) (domain.Answers, error) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	return req.Answers.toAnswers()
}

func (h *APIHandler) score(w http.ResponseWriter, r *http.Request) {
	answers, err := decodeAnswers(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	result, err := h.service.Score(r.Context(), chi.URLParam(r, "quizID"), answers)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) creditEstimate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Quiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
		writeError(w, err, nil)
		return
	}
	answers, err := decodeAnswers(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	est := h.service.EstimateCredits(answers)
	est.Note = h.service.Text(h.lang(r), est.NoteID)
	writeJSON(w, http.StatusOK, est)
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.StartSession(r.Context(), chi.URLParam(r, "quizID"), r.Header.Get(ClientIDHeader), h.lang(r))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, session.View())
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) closeSession(w http.ResponseWriter, r *http.Request) {
	h.service.Close(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Value  json.RawMessage `json:"value"`
	Values json.RawMessage `json:"values"`
}

func (h *APIHandler) setAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	raw := req.Values
	if len(raw) == 0 {
		raw = req.Value
	}
	values, err := decodeValues(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.respond(w, http.StatusOK)(h.service.SetAnswer(chi.URLParam(r, "sessionID"), chi.URLParam(r, "field"), values))
}

func (h *APIHandler) advance(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)(h.service.Advance(chi.URLParam(r, "sessionID")))
}

func (h *APIHandler) retreat(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)(h.service.Retreat(chi.URLParam(r, "sessionID")))
}

// submit and retry keep going if the client disconnects; the outcome lands on the session.
func (h *APIHandler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	h.respond(w, http.StatusOK)(h.service.Submit(ctx, chi.URLParam(r, "sessionID")))
}

func (h *APIHandler) retry(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	h.respond(w, http.StatusOK)(h.service.Retry(ctx, chi.URLParam(r, "sessionID")))
}

func (h *APIHandler) edit(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)(h.service.Edit(chi.URLParam(r, "sessionID")))
}

func (h *APIHandler) respond(w http.ResponseWriter, status int) func(app.View, error) {
	return func(view app.View, err error) {
		if err != nil {
			if view.SessionID == "" {
				writeError(w, err, nil)
				return
			}
			writeError(w, err, &view)
			return
		}
		writeJSON(w, status, view)
	}
}

type flagResponse struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

func (h *APIHandler) getFlag(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(ClientIDHeader)
	if clientID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing " + ClientIDHeader})
		return
	}
	key := chi.URLParam(r, "key")
	v, err := h.service.Flag(r.Context(), clientID, key)
	if err != nil {
		h.log.Warn("read flag", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not read flag"})
		return
	}
	writeJSON(w, http.StatusOK, flagResponse{Key: key, Value: v})
}

func (h *APIHandler) putFlag(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(ClientIDHeader)
	if clientID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing " + ClientIDHeader})
		return
	}
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	value, err := parseFlagValue(req.Value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.service.SetFlag(r.Context(), clientID, key, value); err != nil {
		h.log.Warn("write flag", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not write flag"})
		return
	}
	writeJSON(w, http.StatusOK, flagResponse{Key: key, Value: value})
}

// parseFlagValue accepts a JSON bool or the "1"/"0" strings the landing site stores.
func parseFlagValue(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, errors.New("value must be a boolean")
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("value must be a boolean")
	}
	return v, nil
}
