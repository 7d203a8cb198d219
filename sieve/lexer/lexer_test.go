package lexer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/sieve/lexer"
)

func lex(t *testing.T, src string) []lexer.Token {
	t.Helper()
	toks, err := lexer.Lex(strings.NewReader(src), &lexer.Options{Filename: "test"})
	require.NoError(t, err)
	return toks
}

func TestLexBasicCommand(t *testing.T) {
	toks := lex(t, `require ["fileinto"]; if true { keep; }`)
	require.NotEmpty(t, toks)
	require.Equal(t, lexer.Identifier, toks[0].Kind)
	require.Equal(t, "require", toks[0].Text)
}

func TestLexTag(t *testing.T) {
	toks := lex(t, `header :is "subject" "hello"`)
	var found bool
	for _, tok := range toks {
		if tok.Kind == lexer.Tag {
			require.Equal(t, "is", tok.Text)
			found = true
		}
	}
	require.True(t, found)
}

func TestLexNumberScale(t *testing.T) {
	toks := lex(t, `set "x" 10K;`)
	var n lexer.Token
	for _, tok := range toks {
		if tok.Kind == lexer.Number {
			n = tok
		}
	}
	require.Equal(t, int64(10*1024), n.Value)
}

func TestLexMultilineString(t *testing.T) {
	toks := lex(t, "text:\nhello\n..world\n.\n")
	require.Len(t, toks, 2) // string + EOF
	require.Equal(t, lexer.String, toks[0].Kind)
	require.Equal(t, "hello\n.world", toks[0].Text)
}

func TestLexRejectsBareNewlineInQuotedString(t *testing.T) {
	_, err := lexer.Lex(strings.NewReader("\"abc\ndef\""), &lexer.Options{})
	require.Error(t, err)
}

func TestLexComments(t *testing.T) {
	toks := lex(t, "# comment\nkeep; /* block\ncomment */ stop;")
	var idents []string
	for _, tok := range toks {
		if tok.Kind == lexer.Identifier {
			idents = append(idents, tok.Text)
		}
	}
	require.Equal(t, []string{"keep", "stop"}, idents)
}
