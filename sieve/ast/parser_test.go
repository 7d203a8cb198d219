package ast_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/lexer"
)

func parse(t *testing.T, src string) *ast.Script {
	t.Helper()
	toks, err := lexer.Lex(strings.NewReader(src), &lexer.Options{Filename: "t"})
	require.NoError(t, err)
	script, err := ast.Parse(toks, &ast.Options{Filename: "t"})
	require.NoError(t, err)
	return script
}

func TestParseIfElse(t *testing.T) {
	script := parse(t, `require ["fileinto"];
if header :is "subject" "hello" {
	fileinto "Box";
} else {
	discard;
}`)
	require.Len(t, script.Commands, 2)
	ifCmd := script.Commands[1]
	require.Equal(t, "if", ifCmd.Name)
	require.Len(t, ifCmd.Args, 1)
	require.Equal(t, ast.ArgTest, ifCmd.Args[0].Kind)
	require.Equal(t, "header", ifCmd.Args[0].Test.Name)
	require.NotNil(t, ifCmd.Block)
	require.Len(t, ifCmd.Block.Commands, 1)
}

func TestParseAnyofTestList(t *testing.T) {
	script := parse(t, `if anyof (true, false) { keep; }`)
	ifCmd := script.Commands[0]
	anyof := ifCmd.Args[0].Test
	require.Equal(t, "anyof", anyof.Name)
	require.Len(t, anyof.Args, 1)
	require.Equal(t, ast.ArgTestList, anyof.Args[0].Kind)
	require.Len(t, anyof.Args[0].Tests, 2)
}

func TestParseStringList(t *testing.T) {
	script := parse(t, `require ["fileinto", "reject"];`)
	cmd := script.Commands[0]
	require.Equal(t, ast.ArgStringList, cmd.Args[0].Kind)
	require.Equal(t, []string{"fileinto", "reject"}, cmd.Args[0].StrList)
}

func TestParseMissingTerminatorIsError(t *testing.T) {
	toks, err := lexer.Lex(strings.NewReader(`keep`), &lexer.Options{})
	require.NoError(t, err)
	_, err = ast.Parse(toks, nil)
	require.Error(t, err)
}
