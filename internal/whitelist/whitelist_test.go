package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestChecker_IsTrusted(t *testing.T) {
	c := NewChecker([]string{" Example.com ", "@news.example.org", ""}, zap.NewNop())

	tests := []struct {
		from string
		want bool
	}{
		{"alice@example.com", true},
		{"ALICE@EXAMPLE.COM", true},
		{"Alice <alice@mail.example.com>", true},
		{`"Ayşe Yılmaz" <ayse@example.com>`, true},
		{"digest@news.example.org", true},
		{"digest@example.org", false},
		{"mallory@notexample.com", false},
		{"mallory@example.com.evil.io", false},
		{"not-an-address", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.IsTrusted(tt.from), "from: %s", tt.from)
	}
	assert.Equal(t, []string{"example.com", "news.example.org"}, c.Domains())
}

func TestChecker_EmptyListTrustsNobody(t *testing.T) {
	c := NewChecker(nil, nil)
	assert.False(t, c.IsTrusted("anyone@example.com"))
}
