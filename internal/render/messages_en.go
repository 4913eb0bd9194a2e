package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.body", defaultGenericBody)
	message.SetString(lang, "notification.engagement.requested.title", "New service request")
	message.SetString(lang, "notification.engagement.requested.body", "A client is asking for your help: %s")
	message.SetString(lang, "notification.engagement.accepted.title", "Request accepted")
	message.SetString(lang, "notification.engagement.accepted.body", "Your request was accepted: %s")
	message.SetString(lang, "notification.engagement.rejected.title", "Request declined")
	message.SetString(lang, "notification.engagement.rejected.body", "Your request was declined: %s")
	message.SetString(lang, "notification.engagement.completed.title", "Job completed")
	message.SetString(lang, "notification.engagement.completed.body", "Your job was marked completed. You can now rate it: %s")
	message.SetString(lang, "notification.engagement.cancelled.title", "Request cancelled")
	message.SetString(lang, "notification.engagement.cancelled.body", "The client cancelled the request: %s")
	message.SetString(lang, "notification.engagement.rated.title", "New rating")
	message.SetString(lang, "notification.engagement.rated.body", "A client rated your work %s out of 5.")
}
