package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// FieldKind describes how a field collects values.
type FieldKind string

const (
	FieldSingleChoice FieldKind = "single_choice"
	FieldMultiChoice  FieldKind = "multi_choice"
	FieldText         FieldKind = "text"
)

// Field is one input of a step.
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Label    string    `json:"label,omitempty" yaml:"label"`
	Required bool      `json:"required" yaml:"required"`
	Options  []string  `json:"options,omitempty" yaml:"options"`
}

// HasOption reports whether value is one of the field's options.
func (f Field) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Step is an ordered unit of input collection. Index is fixed once the quiz is built.
type Step struct {
	Index  int     `json:"index" yaml:"-"`
	Title  string  `json:"title" yaml:"title"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field looks up a field of the step by name.
func (s Step) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Tier maps a score threshold to a qualification tier name.
type Tier struct {
	Threshold int    `json:"threshold" yaml:"threshold"`
	Name      string `json:"name" yaml:"name"`
}

// ScoringConfig holds weight tables, per-field caps and tier thresholds.
type ScoringConfig struct {
	Choices map[string]map[string]int `json:"choices,omitempty" yaml:"choices"`
	Caps    map[string]int            `json:"caps,omitempty" yaml:"caps"`
	Tiers   []Tier                    `json:"tiers" yaml:"tiers"`
}

// Messages names the localized copy shown after a successful submission.
type Messages struct {
	Success        map[string]string `json:"success,omitempty" yaml:"success"`
	SuccessDefault string            `json:"success_default,omitempty" yaml:"success_default"`
}

// ContactFields names the answers holding the applicant's contact details.
type ContactFields struct {
	Email string `json:"email,omitempty" yaml:"email"`
	Name  string `json:"name,omitempty" yaml:"name"`
	Phone string `json:"phone,omitempty" yaml:"phone"`
}

// NotifyConfig controls which notifications fire after a successful submission.
type NotifyConfig struct {
	Template   string   `json:"template,omitempty" yaml:"template"`
	StaffTiers []string `json:"staff_tiers,omitempty" yaml:"staff_tiers"`
}

// Definition is the static description of a quiz. It is data, so quizzes differ only by configuration.
type Definition struct {
	ID             string        `json:"id" yaml:"id"`
	Title          string        `json:"title" yaml:"title"`
	Table          string        `json:"table" yaml:"table"`
	Source         string        `json:"source,omitempty" yaml:"source"`
	Steps          []Step        `json:"steps" yaml:"steps"`
	Scoring        ScoringConfig `json:"scoring" yaml:"scoring"`
	Messages       Messages      `json:"messages" yaml:"messages"`
	Contact        ContactFields `json:"contact" yaml:"contact"`
	Notify         NotifyConfig  `json:"notify" yaml:"notify"`
	CreditEstimate bool          `json:"credit_estimate,omitempty" yaml:"credit_estimate"`
}

// Field looks up a field anywhere in the quiz and returns the index of its step.
func (d Definition) Field(name string) (Field, int, bool) {
	for i, step := range d.Steps {
		if f, ok := step.Field(name); ok {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// Answers is the Answer Set: field name to collected values.
// Text and single-choice fields hold at most one value.
type Answers map[string][]string

// Value returns the first value of a field, or "".
func (a Answers) Value(field string) string {
	if vals := a[field]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ScoreResult is derived from the final Answer Set and never stored on its own.
type ScoreResult struct {
	Score int    `json:"score"`
	Tier  string `json:"tier"`
}

// SubmissionState is the lifecycle of one quiz session.
type SubmissionState string

const (
	StateNotStarted SubmissionState = "not_started"
	StateActive     SubmissionState = "active"
	StateSubmitting SubmissionState = "submitting"
	StateSucceeded  SubmissionState = "succeeded"
	StateFailed     SubmissionState = "failed"
)

// ReservedPayloadKeys cannot be used as field names because the payload adds them.
var ReservedPayloadKeys = []string{"submission_id", "quiz_id", "source", "score", "qualification_tier", "created_at"}

// Payload is the Submission Payload handed to the record store. It is assembled once and never mutated.
type Payload struct {
	ID        string
	QuizID    string
	Source    string
	Fields    map[string]any
	Score     int
	Tier      string
	CreatedAt time.Time
}

// MarshalJSON flattens answers next to the derived columns.
func (p *Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+6)
	for k, v := range p.Fields {
		out[k] = v
	}
	out["submission_id"] = p.ID
	out["quiz_id"] = p.QuizID
	out["source"] = p.Source
	out["score"] = p.Score
	out["qualification_tier"] = p.Tier
	out["created_at"] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// Text returns a field as a trimmed string, joining multi-values with ", ".
func (p *Payload) Text(field string) string {
	switch v := p.Fields[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.Join(v, ", ")
	default:
		return ""
	}
}

// Record is a stored submission as read back by the admin listing.
type Record struct {
	ID        string          `json:"id"`
	QuizID    string          `json:"quiz_id"`
	Score     int             `json:"score"`
	Tier      string          `json:"tier"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Contact is where a notification is delivered.
type Contact struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// NotificationKind selects the audience of a notification.
type NotificationKind string

const (
	NotifyApplicant NotificationKind = "applicant"
	NotifyStaff     NotificationKind = "staff"
)

// Notification is a templated message produced after a successful submission.
type Notification struct {
	Kind         NotificationKind  `json:"kind"`
	Template     string            `json:"template"`
	Recipient    Contact           `json:"recipient"`
	QuizID       string            `json:"quiz_id"`
	QuizTitle    string            `json:"quiz_title"`
	SubmissionID string            `json:"submission_id"`
	Score        int               `json:"score"`
	Tier         string            `json:"tier"`
	Fields       map[string]string `json:"fields,omitempty"`
}
