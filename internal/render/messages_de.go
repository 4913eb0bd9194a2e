package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.German

	message.SetString(lang, "notification.generic.title", "Benachrichtigung")
	message.SetString(lang, "notification.generic.body", "Sie haben eine neue Benachrichtigung.")
	message.SetString(lang, "notification.engagement.requested.title", "Neue Anfrage")
	message.SetString(lang, "notification.engagement.requested.body", "Ein Kunde bittet um Ihre Hilfe: %s")
	message.SetString(lang, "notification.engagement.accepted.title", "Anfrage angenommen")
	message.SetString(lang, "notification.engagement.accepted.body", "Ihre Anfrage wurde angenommen: %s")
	message.SetString(lang, "notification.engagement.rejected.title", "Anfrage abgelehnt")
	message.SetString(lang, "notification.engagement.rejected.body", "Ihre Anfrage wurde abgelehnt: %s")
	message.SetString(lang, "notification.engagement.completed.title", "Auftrag abgeschlossen")
	message.SetString(lang, "notification.engagement.completed.body", "Ihr Auftrag wurde abgeschlossen. Sie können ihn jetzt bewerten: %s")
	message.SetString(lang, "notification.engagement.cancelled.title", "Anfrage storniert")
	message.SetString(lang, "notification.engagement.cancelled.body", "Der Kunde hat die Anfrage storniert: %s")
	message.SetString(lang, "notification.engagement.rated.title", "Neue Bewertung")
	message.SetString(lang, "notification.engagement.rated.body", "Ein Kunde hat Ihre Arbeit mit %s von 5 bewertet.")
}
