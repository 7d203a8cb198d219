package managesieve

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-sasl"
	"github.com/sievegate/sievegate/consts"
	"github.com/sievegate/sievegate/server"
	"github.com/sievegate/sievegate/server/sieveengine"
	"github.com/sievegate/sievegate/sieve/metrics"
)

// sieveExtensions is advertised in the CAPABILITY "SIEVE" line: the
// extension names ext.Builtins makes available to every compiled
// script (spec §4.C's registry, restated for wire discovery).
const sieveExtensions = "fileinto reject envelope body copy imap4flags variables vacation subaddress relational regex include enotify mailbox date index"

const maxBadCommands = consts.ClientMaxBadCommands

// MaxScriptSize bounds PUTSCRIPT/HAVESPACE content size. It defaults
// to consts.DefaultMaxScriptSize but main.go overrides it from the
// resolved limits.max_script_size config value at startup.
var MaxScriptSize int64 = consts.DefaultMaxScriptSize

type ManageSieveSession struct {
	server.Session
	mutex         sync.Mutex
	server        *ManageSieveServer
	conn          *net.Conn
	*server.User
	authenticated bool
	errorsCount   int
	tlsActive     bool
	ctx           context.Context
	cancel        context.CancelFunc

	reader *bufio.Reader
	writer *bufio.Writer
	tok    *tokenizer

	lastCommand string
	closed      bool
}

func (s *ManageSieveSession) Context() context.Context {
	return s.ctx
}

func (s *ManageSieveSession) handleConnection() {
	defer s.Close()

	s.tok = newTokenizer(s.reader)
	s.sendCapabilities("")

	for {
		line, err := s.tok.readLine()
		if err != nil {
			if err == io.EOF {
				s.Log("client dropped connection")
			} else {
				s.Log("read error: %v", err)
			}
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		word, rest := splitWord(line)
		command := strings.ToUpper(word)

		args, code := s.tok.readArgsFromLine(rest, s.writer, true)
		if code == -2 {
			s.Log("connection error reading arguments")
			return
		}
		if code == -1 {
			s.badCommand("Syntax error in arguments")
			continue
		}

		if s.dispatch(command, args) {
			return
		}
	}
}

// dispatch runs one command, returning true when the session should
// close (LOGOUT). Too many bad commands close the connection inside
// badCommand instead.
func (s *ManageSieveSession) dispatch(command string, args []string) bool {
	s.lastCommand = command
	switch command {
	case "CAPABILITY":
		s.sendCapabilities("")

	case "STARTTLS":
		s.handleStartTLS()

	case "AUTHENTICATE":
		s.handleAuthenticate(args)

	case "LOGIN": // non-standard convenience alias some clients still send
		if len(args) < 2 {
			s.badCommand("Syntax: LOGIN username password")
			return false
		}
		s.login(args[0], args[1])

	case "NOOP":
		if len(args) > 0 {
			s.sendResponse(fmt.Sprintf("OK (TAG %s) \"done\"\r\n", quoteString(args[0])))
		} else {
			s.sendResponse("OK \"done\"\r\n")
		}

	case "LOGOUT":
		s.sendResponse("OK \"Logout complete\"\r\n")
		return true

	case "LISTSCRIPTS":
		if !s.requireAuth() {
			return false
		}
		s.handleListScripts()

	case "GETSCRIPT":
		if !s.requireAuth() || len(args) < 1 {
			s.badCommand("Syntax: GETSCRIPT name")
			return false
		}
		s.handleGetScript(args[0])

	case "PUTSCRIPT":
		if !s.requireAuth() || len(args) < 2 {
			s.badCommand("Syntax: PUTSCRIPT name script")
			return false
		}
		s.handlePutScript(args[0], args[1])

	case "CHECKSCRIPT":
		if !s.requireAuth() || len(args) < 1 {
			s.badCommand("Syntax: CHECKSCRIPT script")
			return false
		}
		s.handleCheckScript(args[0])

	case "SETACTIVE":
		if !s.requireAuth() || len(args) < 1 {
			s.badCommand("Syntax: SETACTIVE name")
			return false
		}
		s.handleSetActive(args[0])

	case "DELETESCRIPT":
		if !s.requireAuth() || len(args) < 1 {
			s.badCommand("Syntax: DELETESCRIPT name")
			return false
		}
		s.handleDeleteScript(args[0])

	case "RENAMESCRIPT":
		if !s.requireAuth() || len(args) < 2 {
			s.badCommand("Syntax: RENAMESCRIPT oldname newname")
			return false
		}
		s.handleRenameScript(args[0], args[1])

	case "HAVESPACE":
		if !s.requireAuth() || len(args) < 2 {
			s.badCommand("Syntax: HAVESPACE name size")
			return false
		}
		s.handleHaveSpace(args[0], args[1])

	default:
		s.badCommand(fmt.Sprintf("Unknown command %q", command))
	}
	return false
}

func (s *ManageSieveSession) requireAuth() bool {
	if !s.authenticated {
		s.sendResponse("NO \"Not authenticated\"\r\n")
		return false
	}
	return true
}

// badCommand sends a NO reply, and once maxBadCommands bad commands
// have accumulated over the session (the count is never reset) sends
// BYE and closes the connection, per spec §5's CLIENT_MAX_BAD_COMMANDS
// back-pressure.
func (s *ManageSieveSession) badCommand(msg string) {
	s.errorsCount++
	s.sendResponse(fmt.Sprintf("NO %s\r\n", quoteString(msg)))
	if s.errorsCount >= maxBadCommands {
		s.sendResponse("BYE (TRYLATER) \"Too many errors\"\r\n")
		s.Close()
	}
}

func splitWord(line string) (word, rest string) {
	line = strings.TrimLeft(line, " ")
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return line, ""
	}
	return line[:idx], line[idx+1:]
}

func (s *ManageSieveSession) sendResponse(response string) {
	s.writer.WriteString(response)
	s.writer.Flush()
	metrics.RecordCommand(s.lastCommand, replyTag(response))
}

// replyTag extracts the leading OK/NO/BYE reply tag a response begins
// with, for the ManageSieveCommands metric's "tag" label.
func replyTag(response string) string {
	for _, tag := range []string{"OK", "NO", "BYE"} {
		if strings.HasPrefix(response, tag) {
			return tag
		}
	}
	return "other"
}

func (s *ManageSieveSession) sendCapabilities(tag string) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("\"IMPLEMENTATION\" %s\r\n", quoteString("sievegate")))
	b.WriteString(fmt.Sprintf("\"SASL\" %s\r\n", quoteString("PLAIN LOGIN")))
	b.WriteString(fmt.Sprintf("\"SIEVE\" %s\r\n", quoteString(sieveExtensions)))
	if !s.tlsActive {
		b.WriteString("\"STARTTLS\"\r\n")
	}
	b.WriteString("OK\r\n")
	s.sendResponse(b.String())
}

func (s *ManageSieveSession) handleStartTLS() {
	if s.tlsActive {
		s.sendResponse("NO \"TLS already active\"\r\n")
		return
	}
	if s.server.tlsConfig == nil {
		s.sendResponse("NO \"TLS not configured\"\r\n")
		return
	}
	s.sendResponse("OK\r\n")

	tlsConn := tls.Server(*s.conn, s.server.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		s.Log("TLS handshake failed: %v", err)
		s.Close()
		return
	}
	var conn net.Conn = tlsConn
	s.conn = &conn
	s.reader = bufio.NewReader(conn)
	s.writer = bufio.NewWriter(conn)
	s.tok = newTokenizer(s.reader)
	s.tlsActive = true
	// RFC 5804 §2.2: capabilities must be reissued after STARTTLS since
	// the peer can no longer trust the pre-TLS advertisement.
	s.sendCapabilities("")
}

func (s *ManageSieveSession) handleAuthenticate(args []string) {
	if len(args) < 1 {
		s.badCommand("Syntax: AUTHENTICATE mechanism [initial-response]")
		return
	}
	mech := strings.ToUpper(args[0])

	var authErr error
	var server sasl.Server
	switch mech {
	case "PLAIN":
		server = sasl.NewPlainServer(func(identity, username, password string) error {
			addr, accountID, err := s.verifyCredentials(username, password)
			if err != nil {
				return err
			}
			s.completeAuth(addr, accountID)
			return nil
		})
	case "LOGIN":
		server = sasl.NewLoginServer(func(username, password string) error {
			addr, accountID, err := s.verifyCredentials(username, password)
			if err != nil {
				return err
			}
			s.completeAuth(addr, accountID)
			return nil
		})
	default:
		s.sendResponse(fmt.Sprintf("NO \"Unsupported SASL mechanism %s\"\r\n", mech))
		return
	}

	var response []byte
	if len(args) > 1 {
		decoded, err := base64.StdEncoding.DecodeString(args[1])
		if err != nil {
			s.badCommand("Invalid base64 initial response")
			return
		}
		response = decoded
	}

	for {
		challenge, done, err := server.Next(response)
		authErr = err
		if err != nil {
			break
		}
		if done {
			break
		}
		s.sendResponse(fmt.Sprintf("{%d}\r\n%s\r\n", len(challenge), challenge))
		line, rerr := s.tok.readLine()
		if rerr != nil {
			s.Close()
			return
		}
		response, authErr = base64.StdEncoding.DecodeString(line)
		if authErr != nil {
			break
		}
	}

	if authErr != nil || !s.authenticated {
		s.sendResponse("NO \"Authentication failed\"\r\n")
		return
	}
	s.sendResponse("OK \"Authentication successful\"\r\n")
}

func (s *ManageSieveSession) verifyCredentials(username, password string) (address string, accountID int64, err error) {
	addr, parseErr := server.NewAddress(username)
	if parseErr != nil {
		return "", 0, fmt.Errorf("invalid username")
	}
	accountID, authErr := s.server.db.Authenticate(s.Context(), addr.FullAddress(), password)
	if authErr != nil {
		if authErr == consts.ErrUserNotFound {
			return "", 0, consts.ErrUserNotFound
		}
		return "", 0, fmt.Errorf("authentication failed")
	}
	return addr.FullAddress(), accountID, nil
}

func (s *ManageSieveSession) completeAuth(address string, accountID int64) {
	addr, _ := server.NewAddress(address)
	s.authenticated = true
	s.User = server.NewUser(addr, accountID)
	s.Log("authenticated")
}

func (s *ManageSieveSession) login(username, password string) {
	addr, accountID, err := s.verifyCredentials(username, password)
	if err != nil {
		if err == consts.ErrUserNotFound {
			s.sendResponse("NO \"Unknown user\"\r\n")
			return
		}
		s.sendResponse("NO \"Authentication failed\"\r\n")
		return
	}
	s.completeAuth(addr, accountID)
	s.sendResponse("OK \"Authenticated\"\r\n")
}

func (s *ManageSieveSession) handleListScripts() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	scripts, err := s.server.db.GetUserScripts(s.Context(), s.UserID())
	if err != nil {
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}

	var b strings.Builder
	for _, script := range scripts {
		if script.Active {
			b.WriteString(fmt.Sprintf("%s ACTIVE\r\n", quoteString(script.Name)))
		} else {
			b.WriteString(fmt.Sprintf("%s\r\n", quoteString(script.Name)))
		}
	}
	b.WriteString("OK\r\n")
	s.sendResponse(b.String())
}

func (s *ManageSieveSession) handleGetScript(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	script, err := s.server.db.GetScriptByName(s.Context(), name, s.UserID())
	if err != nil {
		s.sendResponse("NO (NONEXISTENT) \"No such script\"\r\n")
		return
	}
	s.sendResponse(fmt.Sprintf("%s\r\nOK\r\n", quoteString(script.Script)))
}

func (s *ManageSieveSession) handlePutScript(name, content string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if int64(len(content)) > MaxScriptSize {
		s.sendResponse("NO (QUOTA/MAXSIZE) \"Script too large\"\r\n")
		return
	}

	if _, err := sieveengine.NewSieveExecutor(content); err != nil {
		s.sendResponse(fmt.Sprintf("NO %s\r\n", quoteString(fmt.Sprintf("Script validation failed: %v", err))))
		return
	}

	script, err := s.server.db.GetScriptByName(s.Context(), name, s.UserID())
	if err != nil && err != consts.ErrDBNotFound {
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}
	if script != nil {
		if _, err := s.server.db.UpdateScript(s.Context(), script.ID, s.UserID(), name, content); err != nil {
			s.sendResponse("NO \"Internal server error\"\r\n")
			return
		}
		s.sendResponse("OK \"Script updated\"\r\n")
		return
	}

	if _, err := s.server.db.CreateScript(s.Context(), s.UserID(), name, content); err != nil {
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}
	s.sendResponse("OK \"Script stored\"\r\n")
}

func (s *ManageSieveSession) handleCheckScript(content string) {
	if int64(len(content)) > MaxScriptSize {
		s.sendResponse("NO (QUOTA/MAXSIZE) \"Script too large\"\r\n")
		return
	}
	if _, err := sieveengine.NewSieveExecutor(content); err != nil {
		s.sendResponse(fmt.Sprintf("NO %s\r\n", quoteString(fmt.Sprintf("Script validation failed: %v", err))))
		return
	}
	s.sendResponse("OK (WARNINGS \"\") \"Script is valid\"\r\n")
}

func (s *ManageSieveSession) handleSetActive(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if name == "" {
		// SETACTIVE "" deactivates any currently active script.
		scripts, err := s.server.db.GetUserScripts(s.Context(), s.UserID())
		if err != nil {
			s.sendResponse("NO \"Internal server error\"\r\n")
			return
		}
		for _, sc := range scripts {
			if sc.Active {
				if err := s.server.db.SetScriptActive(s.Context(), sc.ID, s.UserID(), false); err != nil {
					s.sendResponse("NO \"Internal server error\"\r\n")
					return
				}
			}
		}
		s.sendResponse("OK \"No script is now active\"\r\n")
		return
	}

	script, err := s.server.db.GetScriptByName(s.Context(), name, s.UserID())
	if err != nil {
		if err == consts.ErrDBNotFound {
			s.sendResponse("NO (NONEXISTENT) \"No such script\"\r\n")
			return
		}
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}

	if _, err := sieveengine.NewSieveExecutor(script.Script); err != nil {
		s.sendResponse(fmt.Sprintf("NO %s\r\n", quoteString(fmt.Sprintf("Script validation failed: %v", err))))
		return
	}

	if err := s.server.db.SetScriptActive(s.Context(), script.ID, s.UserID(), true); err != nil {
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}
	s.sendResponse("OK \"Script activated\"\r\n")
}

func (s *ManageSieveSession) handleDeleteScript(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	script, err := s.server.db.GetScriptByName(s.Context(), name, s.UserID())
	if err != nil {
		if err == consts.ErrDBNotFound {
			s.sendResponse("NO (NONEXISTENT) \"No such script\"\r\n")
			return
		}
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}
	if script.Active {
		s.sendResponse("NO (ACTIVE) \"Cannot delete the active script\"\r\n")
		return
	}

	if err := s.server.db.DeleteScript(s.Context(), script.ID, s.UserID()); err != nil {
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}
	s.sendResponse("OK \"Script deleted\"\r\n")
}

func (s *ManageSieveSession) handleRenameScript(oldName, newName string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	script, err := s.server.db.GetScriptByName(s.Context(), oldName, s.UserID())
	if err != nil {
		if err == consts.ErrDBNotFound {
			s.sendResponse("NO (NONEXISTENT) \"No such script\"\r\n")
			return
		}
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}
	if existing, err := s.server.db.GetScriptByName(s.Context(), newName, s.UserID()); err == nil && existing != nil {
		s.sendResponse("NO (ALREADYEXISTS) \"A script with that name already exists\"\r\n")
		return
	}

	if _, err := s.server.db.UpdateScript(s.Context(), script.ID, s.UserID(), newName, script.Script); err != nil {
		s.sendResponse("NO \"Internal server error\"\r\n")
		return
	}
	s.sendResponse("OK \"Script renamed\"\r\n")
}

func (s *ManageSieveSession) handleHaveSpace(name, sizeStr string) {
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 0 {
		s.badCommand("Syntax: HAVESPACE name size")
		return
	}
	if int64(size) > MaxScriptSize {
		s.sendResponse("NO (QUOTA/MAXSIZE) \"Script would exceed the maximum size\"\r\n")
		return
	}
	s.sendResponse("OK\r\n")
}

func (s *ManageSieveSession) Close() error {
	(*s.conn).Close()
	if !s.closed {
		s.closed = true
		metrics.ManageSieveConnections.Dec()
	}
	if s.User != nil {
		s.Log("closed")
		s.User = nil
		s.Id = ""
		s.authenticated = false
		if s.cancel != nil {
			s.cancel()
		}
	}
	return nil
}
