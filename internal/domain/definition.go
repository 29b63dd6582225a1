package domain

import (
	"fmt"
	"regexp"
	"sort"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Normalize assigns step indexes and orders tiers high-to-low.
// It returns a copy; the receiver is left untouched.
func (d Definition) Normalize() Definition {
	steps := make([]Step, len(d.Steps))
	for i, s := range d.Steps {
		s.Index = i
		s.Fields = append([]Field(nil), s.Fields...)
		steps[i] = s
	}
	d.Steps = steps

	tiers := append([]Tier(nil), d.Scoring.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Threshold > tiers[j].Threshold })
	d.Scoring.Tiers = tiers
	return d
}

// Validate checks the structural rules every quiz must satisfy.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDefinition)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: quiz %s has no steps", ErrInvalidDefinition, d.ID)
	}
	if !tableNameRe.MatchString(d.Table) {
		return fmt.Errorf("%w: quiz %s has invalid table %q", ErrInvalidDefinition, d.ID, d.Table)
	}

	reserved := make(map[string]struct{}, len(ReservedPayloadKeys))
	for _, k := range ReservedPayloadKeys {
		reserved[k] = struct{}{}
	}
	seen := make(map[string]FieldKind)
	for i, step := range d.Steps {
		for _, f := range step.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: step %d has a field without a name", ErrInvalidDefinition, i)
			}
			if _, ok := reserved[f.Name]; ok {
				return fmt.Errorf("%w: field name %q is reserved", ErrInvalidDefinition, f.Name)
			}
			if _, dup := seen[f.Name]; dup {
				return fmt.Errorf("%w: duplicate field %q", ErrInvalidDefinition, f.Name)
			}
			seen[f.Name] = f.Kind
			switch f.Kind {
			case FieldSingleChoice, FieldMultiChoice, FieldText:
			default:
				return fmt.Errorf("%w: field %q has unknown kind %q", ErrInvalidDefinition, f.Name, f.Kind)
			}
		}
	}

	for field := range d.Scoring.Choices {
		if seen[field] != FieldSingleChoice {
			return fmt.Errorf("%w: choice weights for %q need a single-choice field", ErrInvalidDefinition, field)
		}
	}
	for field, limit := range d.Scoring.Caps {
		if seen[field] != FieldMultiChoice {
			return fmt.Errorf("%w: cap for %q needs a multi-choice field", ErrInvalidDefinition, field)
		}
		if limit < 0 {
			return fmt.Errorf("%w: negative cap for %q", ErrInvalidDefinition, field)
		}
	}
	if len(d.Scoring.Tiers) == 0 {
		return fmt.Errorf("%w: quiz %s has no tiers", ErrInvalidDefinition, d.ID)
	}
	return nil
}
