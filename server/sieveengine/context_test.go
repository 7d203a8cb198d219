package sieveengine_test

import (
	"strings"
	"testing"

	"github.com/emersion/go-message"
	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/server/sieveengine"
)

func TestNewContextFromEntity(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Subject: hi\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body text\r\n"

	e, err := message.Read(strings.NewReader(raw))
	require.NoError(t, err)

	ctx, err := sieveengine.NewContextFromEntity(e, "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", ctx.EnvelopeFrom)
	require.Equal(t, "bob@example.com", ctx.EnvelopeTo)
	require.Contains(t, ctx.Body, "body text")
	require.Equal(t, []string{"hi"}, ctx.Header["Subject"])
}
