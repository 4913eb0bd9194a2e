// Package render produces localized notification copy from a notification
// kind and its payload using golang.org/x/text/message catalogs.
package render

import (
	"strings"

	"github.com/forgo/craftlink/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultGenericTitle = "Notification"
	defaultGenericBody  = "You have a new notification."
)

// Payload keys read by the renderer
const (
	PayloadEngagementID = "engagement_id"
	PayloadDescription  = "description"
	PayloadOverall      = "overall"
)

// Output is localized copy for one notification
type Output struct {
	Title string
	Body  string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Printer returns a message printer for the locale, falling back to English
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// Render returns localized copy for a notification kind
func Render(loc Localizer, kind model.NotificationKind, payload map[string]string) Output {
	key := "notification." + string(kind)
	title := localize(loc, key+".title")
	if title == key+".title" {
		return genericOutput(loc)
	}

	var body string
	switch kind {
	case model.NotificationEngagementRated:
		body = localize(loc, key+".body", payload[PayloadOverall])
	default:
		body = localize(loc, key+".body", summary(payload))
	}
	if body == key+".body" {
		return genericOutput(loc)
	}
	return Output{Title: title, Body: body}
}

func summary(payload map[string]string) string {
	if d := strings.TrimSpace(payload[PayloadDescription]); d != "" {
		if len(d) > 60 {
			d = d[:57] + "..."
		}
		return d
	}
	return payload[PayloadEngagementID]
}

func genericOutput(loc Localizer) Output {
	return Output{
		Title: localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle),
		Body:  localizeWithFallback(loc, "notification.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key string, args ...any) string {
	if loc == nil {
		return key
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
