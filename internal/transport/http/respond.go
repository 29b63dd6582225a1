package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/domain"
)

type errorResponse struct {
	Error         string    `json:"error"`
	InvalidFields []string  `json:"invalid_fields,omitempty"`
	View          *app.View `json:"view,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain errors onto status codes. view, when set, rides along so clients can redraw.
func writeError(w http.ResponseWriter, err error, view *app.View) {
	resp := errorResponse{Error: err.Error(), View: view}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.InvalidFields = verr.Fields
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	var (
		verr *domain.ValidationError
		serr *domain.SubmissionError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &serr):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrFieldNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFieldNotOnStep),
		errors.Is(err, domain.ErrNotActive),
		errors.Is(err, domain.ErrNotAtLastStep),
		errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrNothingToRetry):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownOption),
		errors.Is(err, domain.ErrTooManyValues),
		errors.Is(err, domain.ErrInvalidDefinition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// answersInput accepts either a string or a list of strings per field.
type answersInput map[string]json.RawMessage

func (in answersInput) toAnswers() (domain.Answers, error) {
	out := make(domain.Answers, len(in))
	for field, raw := range in {
		values, err := decodeValues(raw)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			out[field] = values
		}
	}
	return out, nil
}

var errBadValues = errors.New("values must be a string or a list of strings")

func decodeValues(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errBadValues
	}
	return many, nil
}
