package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessagesFor(t *testing.T) {
	tests := []struct {
		locale      string
		noContent   string
		frameTitle  string
		expectedTag string
	}{
		{"en", "No content available", "Email content", "en"},
		{"en-GB", "No content available", "Email content", "en"},
		{"tr", "İçerik bulunamadı", "E-posta İçeriği", "tr"},
		{"tr-TR", "İçerik bulunamadı", "E-posta İçeriği", "tr"},
		{"de", "No content available", "Email content", "en"},
		{"not a locale!", "No content available", "Email content", "en"},
		{"", "No content available", "Email content", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			m := MessagesFor(tt.locale)
			assert.Equal(t, tt.noContent, m.NoContent)
			assert.Equal(t, tt.frameTitle, m.FrameTitle)
			assert.Equal(t, tt.expectedTag, LocaleTag(tt.locale))
		})
	}
}
