// Package i18n turns message IDs into localized panel copy.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"momentum-quiz-service/internal/app"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog holds the translation bundle. It implements app.CopyProvider.
type Catalog struct {
	bundle   *i18n.Bundle
	tags     []language.Tag
	matcher  language.Matcher
	fallback string
	log      *slog.Logger
}

// New loads every embedded locale. fallback is used for unknown languages.
func New(fallback string, logger *slog.Logger) (*Catalog, error) {
	tag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", fallback, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		logger.Debug("loaded locale file", "file", e.Name())
	}

	// The fallback goes first so the matcher prefers it on ties.
	tags := []language.Tag{tag}
	for _, t := range bundle.LanguageTags() {
		if t != tag {
			tags = append(tags, t)
		}
	}

	return &Catalog{
		bundle:   bundle,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		fallback: tag.String(),
		log:      logger,
	}, nil
}

// Match picks the best supported language for an Accept-Language header.
func (c *Catalog) Match(acceptLanguage string) string {
	if acceptLanguage == "" {
		return c.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No || idx >= len(c.tags) {
		return c.fallback
	}
	return c.tags[idx].String()
}

// Languages lists the supported languages, fallback first.
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.tags))
	for i, t := range c.tags {
		out[i] = t.String()
	}
	return out
}

// For returns the copy for lang, falling back to the catalog's default language.
func (c *Catalog) For(lang string) app.Copy {
	if lang == "" {
		lang = c.fallback
	}
	return &Copy{loc: i18n.NewLocalizer(c.bundle, lang, c.fallback), log: c.log}
}

// Copy is localized submission copy for one language.
type Copy struct {
	loc *i18n.Localizer
	log *slog.Logger
}

func (c *Copy) Submitting() app.Panel {
	return app.Panel{Title: c.Text("SubmittingTitle"), Message: c.Text("SubmittingMessage")}
}

func (c *Copy) Succeeded(messageID string) app.Panel {
	return app.Panel{Title: c.Text("SuccessTitle"), Message: c.Text(messageID)}
}

// Failed shows the store's reason when there is one, else the generic retry message.
func (c *Copy) Failed(reason string) app.Panel {
	msg := c.Text("FailureGeneric")
	if reason != "" {
		msg = c.textWith("FailureWithReason", map[string]any{"Reason": reason})
	}
	return app.Panel{Title: c.Text("FailureTitle"), Message: msg}
}

// Text translates a message by ID. Unknown IDs come back unchanged.
func (c *Copy) Text(messageID string) string {
	return c.textWith(messageID, nil)
}

func (c *Copy) textWith(messageID string, data map[string]any) string {
	s, err := c.loc.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		c.log.Warn("missing translation", "id", messageID, "error", err)
		return messageID
	}
	return s
}
