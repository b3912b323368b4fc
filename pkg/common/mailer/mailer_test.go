package mailer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDisabledWithoutHost(t *testing.T) {
	require.Nil(t, New(Config{}))
}

func TestMessageCarriesBothBodies(t *testing.T) {
	s := New(Config{Host: "smtp.example.test", From: "noreply@example.test"})
	require.NotNil(t, s)
	require.Equal(t, 587, s.cfg.Port)

	var buf bytes.Buffer
	_, err := s.message("ana@example.test", "Reset", "<a href=\"x\">x</a>", "x").WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	require.True(t, strings.Contains(raw, "To: ana@example.test"))
	require.True(t, strings.Contains(raw, "text/plain"))
	require.True(t, strings.Contains(raw, "text/html"))
}
