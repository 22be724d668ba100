package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanner(t *testing.T) {
	t.Parallel()

	out := Banner("status\nopen -> closed", 12, AlignLeft, false)
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, "╒══════════╕", lines[0])
	assert.Equal(t, "│status    │", lines[1])
	assert.Equal(t, "│open -> c…│", lines[2])
	assert.Equal(t, "└──────────┘", lines[3])
}

func TestBannerAlignment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "│  ab  │", strings.Split(Banner("ab", 8, AlignCenter, false), "\n")[1])
	assert.Equal(t, "│    ab│", strings.Split(Banner("ab", 8, AlignRight, false), "\n")[1])
	assert.Equal(t, "ab", Banner("ab", 8, AlignRight, true))
}

func TestDivider(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "┠────┨", Divider(6))
	assert.Equal(t, DefaultWidth, countGraphic(Divider(0)))
}

func TestScripted(t *testing.T) {
	t.Parallel()

	s := NewScripted("submit", "publish", QuitItem, "never")

	got, err := s.Choose("action", []string{"submit", "archive"})
	require.NoError(t, err)
	assert.Equal(t, "submit", got)

	_, err = s.Choose("action", []string{"archive"})

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "publish", unavailable.Choice)
	assert.Contains(t, err.Error(), "available: [archive]")

	_, err = s.Choose("action", []string{"archive"})
	require.ErrorIs(t, err, ErrQuit)

	s = NewScripted()
	_, err = s.Choose("action", []string{"archive"})
	require.ErrorIs(t, err, ErrQuit)
}
