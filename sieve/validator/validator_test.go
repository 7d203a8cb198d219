package validator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/lexer"
	"github.com/sievegate/sievegate/sieve/validator"
)

func compile(t *testing.T, src string) (*ast.Script, error) {
	t.Helper()
	toks, err := lexer.Lex(strings.NewReader(src), &lexer.Options{Filename: "t"})
	require.NoError(t, err)
	return ast.Parse(toks, &ast.Options{Filename: "t"})
}

func TestValidateSimpleFileinto(t *testing.T) {
	script, err := compile(t, `require ["fileinto"];
if header :is "subject" "hello" {
    fileinto "Archive";
} else {
    keep;
}`)
	require.NoError(t, err)
	out, errs := validator.Validate(script, nil)
	require.Empty(t, errs)
	require.NotNil(t, out)
	require.Equal(t, []string{"fileinto"}, out.Requires)
	require.Len(t, out.Commands, 1)
	ifNode := out.Commands[0]
	require.Equal(t, "if", ifNode.Name)
	require.Len(t, ifNode.Block, 1)
	require.Equal(t, "fileinto", ifNode.Block[0].Name)
	require.NotNil(t, ifNode.Else)
	require.Equal(t, "keep", ifNode.Else[0].Name)
}

func TestValidateUnknownExtensionCommandFails(t *testing.T) {
	script, err := compile(t, `fileinto "Box";`)
	require.NoError(t, err)
	_, errs := validator.Validate(script, nil)
	require.NotEmpty(t, errs)
}

func TestValidateUnknownRequireFails(t *testing.T) {
	script, err := compile(t, `require "not-a-real-extension";`)
	require.NoError(t, err)
	_, errs := validator.Validate(script, nil)
	require.NotEmpty(t, errs)
}

func TestValidateAnyofAndNot(t *testing.T) {
	script, err := compile(t, `if anyof (not exists "x-spam", header :contains "subject" "viagra") {
    discard;
}`)
	require.NoError(t, err)
	out, errs := validator.Validate(script, nil)
	require.Empty(t, errs)
	ifNode := out.Commands[0]
	anyof := ifNode.Pos1[0].Test
	require.Equal(t, "anyof", anyof.Name)
	require.Len(t, anyof.Pos1[0].Tests, 2)
	require.Equal(t, "not", anyof.Pos1[0].Tests[0].Name)
}

func TestValidateNotify(t *testing.T) {
	script, err := compile(t, `require ["enotify"];
if header :contains "subject" "urgent" {
    notify :importance "1" :message "urgent mail arrived" "mailto:ops@example.com";
}`)
	require.NoError(t, err)
	out, errs := validator.Validate(script, nil)
	require.Empty(t, errs)
	notifyNode := out.Commands[0].Block[0]
	require.Equal(t, "notify", notifyNode.Name)
	require.Equal(t, "1", notifyNode.Tags["importance"].Str.Literal())
	require.Equal(t, "mailto:ops@example.com", notifyNode.Pos1[0].Str.Literal())
}

func TestValidateNotifyRejectsUnknownImportance(t *testing.T) {
	script, err := compile(t, `require ["enotify"];
notify :importance "urgent" "mailto:ops@example.com";`)
	require.NoError(t, err)
	_, errs := validator.Validate(script, nil)
	require.NotEmpty(t, errs)
}

func TestValidateNotifyRequiresExtension(t *testing.T) {
	script, err := compile(t, `notify "mailto:ops@example.com";`)
	require.NoError(t, err)
	_, errs := validator.Validate(script, nil)
	require.NotEmpty(t, errs)
}

func TestValidateAccumulatesMultipleErrors(t *testing.T) {
	script, err := compile(t, `fileinto "a"; redirect;`)
	require.NoError(t, err)
	_, errs := validator.Validate(script, nil)
	require.GreaterOrEqual(t, len(errs), 2)
}
