package prompt

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCodeRe = regexp.MustCompile(`^#sk-\d{5}$`)

func TestNewOrderCode(t *testing.T) {
	t.Run("Format", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			code := NewOrderCode()
			require.Regexp(t, orderCodeRe, code)
		}
	})
}

func TestInitPrompt(t *testing.T) {
	p := InitPrompt("Pizzaria Los Italianos", "#sk-00034")

	assert.Contains(t, p, "Pizzaria Los Italianos")
	assert.Contains(t, p, "#sk-00034")
	assert.Contains(t, p, ClosingTag("#sk-00034"),
		"prompt must teach the model the exact closing directive")
	assert.True(t, strings.HasPrefix(p, "Você é a atendente virtual"))
}

func TestClosingTag(t *testing.T) {
	tag := ClosingTag("#sk-00034")
	assert.Equal(t, "[pedido-fechado #sk-00034]", tag)
	// the tag embeds the code, but the code alone is not the tag
	assert.NotEqual(t, tag, "#sk-00034")
}
