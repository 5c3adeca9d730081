package render

import (
	"golang.org/x/text/language"
)

// Messages holds the user-visible strings the renderer emits.
type Messages struct {
	NoContent          string
	ProcessingFailed   string
	FrameTitle         string
	RemoteImageBlocked string
}

var supportedLocales = []language.Tag{
	language.English,
	language.Turkish,
}

// catalog is indexed like supportedLocales.
var catalog = []Messages{
	{
		NoContent:          "No content available",
		ProcessingFailed:   "This email's content could not be displayed",
		FrameTitle:         "Email content",
		RemoteImageBlocked: "Remote image blocked",
	},
	{
		NoContent:          "İçerik bulunamadı",
		ProcessingFailed:   "Bu e-postanın içeriği görüntülenemedi",
		FrameTitle:         "E-posta İçeriği",
		RemoteImageBlocked: "Uzak görsel engellendi",
	},
}

var localeMatcher = language.NewMatcher(supportedLocales)

// MessagesFor returns the message set closest to locale. Unknown or malformed
// locales fall back to English.
func MessagesFor(locale string) Messages {
	tag, err := language.Parse(locale)
	if err != nil {
		return catalog[0]
	}
	_, index, _ := localeMatcher.Match(tag)
	return catalog[index]
}

// LocaleTag returns the matched BCP 47 tag for locale, used as the document language.
func LocaleTag(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return supportedLocales[0].String()
	}
	_, index, _ := localeMatcher.Match(tag)
	return supportedLocales[index].String()
}
