package sieve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/sieve"
	"github.com/sievegate/sievegate/sieve/action"
	"github.com/sievegate/sievegate/sieve/bytecode"
	"github.com/sievegate/sievegate/sieve/limits"
)

// fakeMessage is the narrow interp.Message view a delivery agent
// would build from an already-parsed mail, trimmed to what these
// tests need.
type fakeMessage struct {
	headers  map[string][]string
	envelope map[string][]string
	size     int64
}

func (m *fakeMessage) HeaderValues(name string) []string  { return m.headers[name] }
func (m *fakeMessage) EnvelopeValues(part string) []string { return m.envelope[part] }
func (m *fakeMessage) Size() int64                          { return m.size }

func TestEndToEndFileintoOnSubjectMatch(t *testing.T) {
	src := `require ["fileinto"];
if header :contains "subject" "invoice" {
    fileinto "Finance";
} else {
    keep;
}`
	img, err := sieve.Compile(src, "t.sieve", nil)
	require.NoError(t, err)

	msg := &fakeMessage{headers: map[string][]string{"subject": {"Your March invoice"}}}
	rd, status := sieve.Run(img, msg, nil, nil, limits.Default())
	require.Equal(t, bytecode.OK, status)
	actions := rd.Result.Finalize()
	require.Len(t, actions, 1)
	require.Equal(t, action.Fileinto, actions[0].Kind)
	require.Equal(t, "Finance", actions[0].Mailbox)
}

func TestEndToEndImplicitKeepWhenNoMatch(t *testing.T) {
	src := `require ["fileinto"];
if header :contains "subject" "invoice" {
    fileinto "Finance";
}`
	img, err := sieve.Compile(src, "t.sieve", nil)
	require.NoError(t, err)

	msg := &fakeMessage{headers: map[string][]string{"subject": {"hello"}}}
	rd, status := sieve.Run(img, msg, nil, nil, limits.Default())
	require.Equal(t, bytecode.OK, status)
	actions := rd.Result.Finalize()
	require.Len(t, actions, 1)
	require.Equal(t, action.Keep, actions[0].Kind)
}

// TestEndToEndNotifyRoundTrip drives the full compile -> codegen ->
// bytecode encode/decode -> interp path for the enotify "notify"
// command, confirming NotifyParams survives the round trip intact.
func TestEndToEndNotifyRoundTrip(t *testing.T) {
	src := `require ["enotify"];
if header :contains "subject" "urgent" {
    notify :from "sieve@example.com" :importance "1" :options ["retry"] :message "urgent mail arrived" "mailto:ops@example.com";
}`
	img, err := sieve.Compile(src, "t.sieve", nil)
	require.NoError(t, err)

	// Round-trip through the on-disk binary container too, the way a
	// ManageSieve PUTSCRIPT followed by a later execution would.
	saved := sieve.Save(img)
	loaded, err := sieve.Load(saved)
	require.NoError(t, err)

	msg := &fakeMessage{headers: map[string][]string{"subject": {"urgent: server down"}}}
	rd, status := sieve.Run(loaded, msg, nil, nil, limits.Default())
	require.Equal(t, bytecode.OK, status)

	actions := rd.Result.Finalize()
	require.Len(t, actions, 2) // notify + implicit keep
	require.Equal(t, action.Notify, actions[0].Kind)
	np := actions[0].Notify
	require.NotNil(t, np)
	require.Equal(t, "sieve@example.com", np.From)
	require.Equal(t, "1", np.Importance)
	require.Equal(t, []string{"retry"}, np.Options)
	require.Equal(t, "urgent mail arrived", np.Message)
	require.Equal(t, "mailto:ops@example.com", np.Method)
	require.Equal(t, action.Keep, actions[1].Kind)
}

func TestEndToEndRejectCancelsFileinto(t *testing.T) {
	src := `require ["fileinto", "reject"];
fileinto "Archive";
reject "not interested";`
	img, err := sieve.Compile(src, "t.sieve", nil)
	require.NoError(t, err)

	msg := &fakeMessage{headers: map[string][]string{}}
	rd, status := sieve.Run(img, msg, nil, nil, limits.Default())
	require.Equal(t, bytecode.OK, status)

	actions := rd.Result.Finalize()
	require.Len(t, actions, 1)
	require.Equal(t, action.Reject, actions[0].Kind)
	require.Equal(t, "not interested", actions[0].Reason)
}

func TestEndToEndCompileErrorReportsAllDiagnostics(t *testing.T) {
	_, err := sieve.Compile(`fileinto "a"; redirect;`, "t.sieve", nil)
	require.Error(t, err)
	ce, ok := err.(*sieve.CompileError)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(ce.Errs), 2)
}
