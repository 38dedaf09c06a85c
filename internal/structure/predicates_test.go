package structure

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"123", true},
		{"7", true},
		{"١٢", true},
		{"", false},
		{"12a", false},
		{"1.5", false},
		{"IV", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, isNumeric(tc.in), "isNumeric(%q)", tc.in)
	}
}

func TestIsImageEmbed(t *testing.T) {
	assert.True(t, isImageEmbed("![figure](fig1.png)"))
	assert.False(t, isImageEmbed("! [not an image]"))
	assert.False(t, isImageEmbed("plain"))
}

func TestRoundSize(t *testing.T) {
	assert.Equal(t, 12.0, roundSize(11.96))
	assert.Equal(t, 10.0, roundSize(10.04))
	assert.Equal(t, 10.5, roundSize(10.5))
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, "Real title here", fallbackTitle("\n![img](x.png)\nab\n   Real title here  \nnext", 1))
	assert.Equal(t, "Page 4", fallbackTitle("ab\n\n![only](image.png)", 4))

	long := strings.Repeat("가", 120)
	got := fallbackTitle(long, 1)
	assert.Equal(t, 80, utf8.RuneCountInString(got))
}

func TestHeadingLineStart(t *testing.T) {
	full := "intro\n## Scope\nbody #tag"
	scope := strings.Index(full, "Scope")
	assert.Equal(t, 6, headingLineStart(full, scope, -1))
	assert.Equal(t, scope, headingLineStart(full, scope, 6), "line start must be after floor")

	tag := strings.Index(full, "tag")
	assert.Equal(t, tag, headingLineStart(full, tag, -1), "text before the marker")

	assert.Equal(t, 0, headingLineStart(full, 0, -1))
}
