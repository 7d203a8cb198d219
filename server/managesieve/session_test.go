package managesieve

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/sievegate/sievegate/consts"
	"github.com/sievegate/sievegate/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestSession wires a ManageSieveSession to one end of an in-memory
// pipe and returns a line-buffered reader over the other end, so tests
// read whole CRLF-terminated responses instead of racing on raw Read.
func newTestSession(t *testing.T, mockDB *MockDatabase) (*ManageSieveSession, net.Conn, *bufio.Reader) {
	t.Helper()
	clientConn, serverConn := NewPipeConn()

	mockServer := &ManageSieveServer{
		hostname: "test.example.com",
		db:       mockDB,
		appCtx:   context.Background(),
	}

	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	var conn net.Conn = serverConn
	session := &ManageSieveSession{
		server: mockServer,
		conn:   &conn,
		reader: bufio.NewReader(serverConn),
		writer: bufio.NewWriter(serverConn),
		ctx:    sessionCtx,
		cancel: sessionCancel,
	}
	session.RemoteIP = serverConn.RemoteAddr().String()
	session.Protocol = "ManageSieve"
	session.Id = "test-session-id"
	session.HostName = mockServer.hostname

	go session.handleConnection()

	return session, clientConn, bufio.NewReader(clientConn)
}

// readUntilOK drains lines up to and including one that is exactly
// "OK" or starts with "OK ", mirroring how a real client would consume
// the CAPABILITY/LISTSCRIPTS-style untagged response blocks.
func readUntilOK(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		assert.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		lines = append(lines, line)
		if line == "OK" || strings.HasPrefix(line, "OK ") || strings.HasPrefix(line, "OK(") {
			return lines
		}
	}
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	assert.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func login(t *testing.T, conn net.Conn, r *bufio.Reader, username, password string) {
	t.Helper()
	readUntilOK(t, r) // greeting capability block
	_, err := conn.Write([]byte("LOGIN " + username + " " + password + "\r\n"))
	assert.NoError(t, err)
	resp := readLine(t, r)
	assert.Equal(t, `OK "Authenticated"`, resp)
}

func TestManageSieveSessionLoginAndLogout(t *testing.T) {
	mockDB := new(MockDatabase)
	mockDB.On("Authenticate", mock.Anything, "user@example.com", "password123").Return(int64(123), nil).Once()

	session, conn, r := newTestSession(t, mockDB)
	login(t, conn, r, "user@example.com", "password123")

	assert.Equal(t, int64(123), session.UserID())
	assert.True(t, session.authenticated)

	_, err := conn.Write([]byte("LOGOUT\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, `OK "Logout complete"`, readLine(t, r))

	mockDB.AssertExpectations(t)
}

func TestManageSieveSessionListScripts(t *testing.T) {
	mockDB := new(MockDatabase)
	mockDB.On("Authenticate", mock.Anything, "user@example.com", "password123").Return(int64(123), nil).Once()
	scripts := []*db.SieveScript{
		{ID: 1, Name: "script1", Active: true},
		{ID: 2, Name: "script2", Active: false},
	}
	mockDB.On("GetUserScripts", mock.Anything, int64(123)).Return(scripts, nil).Once()

	_, conn, r := newTestSession(t, mockDB)
	login(t, conn, r, "user@example.com", "password123")

	_, err := conn.Write([]byte("LISTSCRIPTS\r\n"))
	assert.NoError(t, err)
	lines := readUntilOK(t, r)
	assert.Equal(t, []string{`"script1" ACTIVE`, `"script2"`, "OK"}, lines)

	mockDB.AssertExpectations(t)
}

func TestManageSieveSessionGetScript(t *testing.T) {
	mockDB := new(MockDatabase)
	mockDB.On("Authenticate", mock.Anything, "user@example.com", "password123").Return(int64(123), nil).Once()
	script := &db.SieveScript{
		ID:     1,
		Name:   "myscript",
		Script: "if header :contains \"Subject\" \"Important\" {\n  fileinto \"INBOX.important\";\n}\n",
		Active: true,
	}
	mockDB.On("GetScriptByName", mock.Anything, "myscript", int64(123)).Return(script, nil).Once()

	_, conn, r := newTestSession(t, mockDB)
	login(t, conn, r, "user@example.com", "password123")

	_, err := conn.Write([]byte("GETSCRIPT myscript\r\n"))
	assert.NoError(t, err)
	header := readLine(t, r)
	assert.Equal(t, literalHeaderLine(len(script.Script)), header)
	buf := make([]byte, len(script.Script))
	_, err = readFull(r, buf)
	assert.NoError(t, err)
	assert.Equal(t, script.Script, string(buf))
	assert.Equal(t, "", readLine(t, r)) // literal's own trailing CRLF
	assert.Equal(t, "OK", readLine(t, r))

	mockDB.AssertExpectations(t)
}

func TestManageSieveSessionGetScriptNonexistent(t *testing.T) {
	mockDB := new(MockDatabase)
	mockDB.On("Authenticate", mock.Anything, "user@example.com", "password123").Return(int64(123), nil).Once()
	mockDB.On("GetScriptByName", mock.Anything, "nope", int64(123)).Return(nil, assert.AnError).Once()

	_, conn, r := newTestSession(t, mockDB)
	login(t, conn, r, "user@example.com", "password123")

	_, err := conn.Write([]byte("GETSCRIPT nope\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, `NO (NONEXISTENT) "No such script"`, readLine(t, r))

	mockDB.AssertExpectations(t)
}

func TestManageSieveSessionPutScriptNew(t *testing.T) {
	validScript := "stop;\n"

	mockDB := new(MockDatabase)
	mockDB.On("Authenticate", mock.Anything, "user@example.com", "password123").Return(int64(123), nil).Once()
	mockDB.On("GetScriptByName", mock.Anything, "myscript", int64(123)).Return(nil, consts.ErrDBNotFound).Once()
	mockDB.On("CreateScript", mock.Anything, int64(123), "myscript", validScript).
		Return(&db.SieveScript{ID: 1, Name: "myscript", Script: validScript}, nil).Once()

	_, conn, r := newTestSession(t, mockDB)
	login(t, conn, r, "user@example.com", "password123")

	_, err := conn.Write([]byte("PUTSCRIPT myscript " + literalArg(validScript) + "\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, "+ OK", readLine(t, r)) // synchronizing literal continuation
	assert.Equal(t, `OK "Script stored"`, readLine(t, r))

	mockDB.AssertExpectations(t)
}

func TestManageSieveSessionHaveSpace(t *testing.T) {
	mockDB := new(MockDatabase)
	mockDB.On("Authenticate", mock.Anything, "user@example.com", "password123").Return(int64(123), nil).Once()

	_, conn, r := newTestSession(t, mockDB)
	login(t, conn, r, "user@example.com", "password123")

	_, err := conn.Write([]byte("HAVESPACE myscript 100\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, "OK", readLine(t, r))

	mockDB.AssertExpectations(t)
}

func TestManageSieveSessionRequiresAuth(t *testing.T) {
	mockDB := new(MockDatabase)
	_, conn, r := newTestSession(t, mockDB)
	readUntilOK(t, r) // greeting

	_, err := conn.Write([]byte("LISTSCRIPTS\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, `NO "Not authenticated"`, readLine(t, r))

	mockDB.AssertExpectations(t)
}

func literalHeaderLine(n int) string {
	return "{" + itoaTest(n) + "}"
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}

// literalArg renders s as a ManageSieve synchronizing literal; since
// client writes aren't racing a read, the test doesn't need to wait
// for the "+ OK" continuation before sending the bytes.
func literalArg(s string) string {
	return "{" + itoaTest(len(s)) + "}\r\n" + s
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

