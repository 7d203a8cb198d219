package helpers_test

import (
	"strings"
	"testing"

	"github.com/emersion/go-message"
	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/helpers"
)

func parseEntity(t *testing.T, raw string) *message.Entity {
	t.Helper()
	e, err := message.Read(strings.NewReader(raw))
	require.NoError(t, err)
	return e
}

func TestExtractPlaintextBodyPrefersPlaintext(t *testing.T) {
	raw := "Content-Type: multipart/alternative; boundary=b\r\n" +
		"\r\n" +
		"--b\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hello plain\r\n" +
		"--b\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>hello html</p>\r\n" +
		"--b--\r\n"

	body, err := helpers.ExtractPlaintextBody(parseEntity(t, raw))
	require.NoError(t, err)
	require.NotNil(t, body)
	require.Contains(t, *body, "hello plain")
}

func TestExtractPlaintextBodyFallsBackToHTML(t *testing.T) {
	raw := "Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>only html</p>\r\n"

	body, err := helpers.ExtractPlaintextBody(parseEntity(t, raw))
	require.NoError(t, err)
	require.NotNil(t, body)
	require.Contains(t, *body, "only html")
}

func TestDecodeToBinaryBase64(t *testing.T) {
	raw := "Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"aGVsbG8=\r\n"

	e := parseEntity(t, raw)
	r, err := helpers.DecodeToBinary(e)
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, _ := r.Read(buf)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestDecodeToBinaryUnsupportedEncoding(t *testing.T) {
	raw := "Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: x-unknown\r\n" +
		"\r\n" +
		"body\r\n"

	_, err := helpers.DecodeToBinary(parseEntity(t, raw))
	require.Error(t, err)
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"1024": 1024,
		"1kb":  1024,
		"5mb":  5 * 1024 * 1024,
		"1gb":  1024 * 1024 * 1024,
		"512b": 512,
		"2 mb": 2 * 1024 * 1024,
	}
	for input, want := range cases {
		got, err := helpers.ParseSize(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}

	_, err := helpers.ParseSize("")
	require.Error(t, err)
	_, err = helpers.ParseSize("nonsense")
	require.Error(t, err)
}

func TestParseDurationDays(t *testing.T) {
	d, err := helpers.ParseDuration("14d")
	require.NoError(t, err)
	require.Equal(t, 14*24, int(d.Hours()))

	d, err = helpers.ParseDuration("-7d")
	require.NoError(t, err)
	require.Equal(t, -7*24, int(d.Hours()))

	d, err = helpers.ParseDuration("30s")
	require.NoError(t, err)
	require.Equal(t, 30, int(d.Seconds()))
}

func TestSanitizeUTF8(t *testing.T) {
	require.Equal(t, "hello", helpers.SanitizeUTF8("hello"))
	require.Equal(t, "hello", helpers.SanitizeUTF8("hell\xffo"))
}
