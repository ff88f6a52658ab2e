// Package control implements the control channel (C9): a Unix datagram
// socket accepting short, whitespace-delimited commands and replying with
// a single datagram. Grounded on the teacher's system/network control
// socket server shape (accept loop over a listener, per-message arena,
// dispatch table keyed by command name), generalized from a TCP/HTTP
// listener to a connectionless Unix datagram socket per spec §4.8.
package control

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/enginelog"
	"github.com/ironbee-go/engine/internal/metrics"
	"github.com/ironbee-go/engine/internal/status"
)

// MaxMessageSize is the cap on a single control-channel datagram, per spec
// §4.8 ("8 KiB").
const MaxMessageSize = 8 * 1024

// CommandFunc handles one parsed command. args excludes the command name
// itself. The returned string is written back as the reply datagram.
type CommandFunc func(a *arena.Arena, args []string) (string, status.Status)

// Server is the control channel's Unix datagram listener.
type Server struct {
	mu       sync.RWMutex
	commands map[string]CommandFunc

	sockPath string
	conn     *net.UnixConn
	log      *enginelog.Logger
	limiter  *rate.Limiter
	auditor  *CommandAuditor

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// SetCommandAuditor wires a zap-backed audit trail of every processed
// command. Optional: a Server with no auditor set simply skips this
// extra logging.
func (s *Server) SetCommandAuditor(a *CommandAuditor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditor = a
}

// NewServer constructs a Server with no commands registered. Use Register
// to add commands before calling Start, or concurrently while running —
// registration is safe at any time.
func NewServer(log *enginelog.Logger) *Server {
	if log == nil {
		log = enginelog.Default()
	}
	return &Server{
		commands: make(map[string]CommandFunc),
		log:      log,
		// 50 requests/sec sustained, bursts of 10 — a control channel is
		// an operator/ops tool, not a hot path, so this is generous.
		limiter: rate.NewLimiter(rate.Limit(50), 10),
	}
}

// Register adds or replaces the handler for name.
func (s *Server) Register(name string, fn CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[strings.ToLower(name)] = fn
}

// Start binds the Unix datagram socket at sockPath (removing any stale
// socket file left over from an unclean shutdown) and begins serving
// requests on a background goroutine.
func (s *Server) Start(sockPath string) status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return status.Exists("control server already started")
	}

	if _, err := os.Stat(sockPath); err == nil {
		_ = os.Remove(sockPath)
	}

	addr, err := net.ResolveUnixAddr("unixgram", sockPath)
	if err != nil {
		return status.BadValue("invalid control socket path: " + err.Error())
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return status.Other("failed to bind control socket", err)
	}

	s.sockPath = sockPath
	s.conn = conn
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.serve()
	return status.Ok()
}

// Stop closes the listening socket, waits for the serve loop to exit, and
// removes the socket file from the filesystem.
func (s *Server) Stop() status.Status {
	s.mu.Lock()
	conn := s.conn
	sockPath := s.sockPath
	stopCh := s.stopCh
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return status.Declined("control server not running")
	}
	close(stopCh)
	conn.Close()
	s.wg.Wait()
	if sockPath != "" {
		_ = os.Remove(sockPath)
	}
	return status.Ok()
}

func (s *Server) serve() {
	defer s.wg.Done()
	// One byte larger than the accepted cap so an oversized datagram is
	// observably truncated (n > MaxMessageSize) rather than silently
	// accepted — spec §4.8 rejects anything over 8 KiB with InvalidArg.
	buf := make([]byte, MaxMessageSize+1)
	for {
		n, addr, err := s.conn.ReadFromUnix(buf)
		select {
		case <-s.stopCh:
			return
		default:
		}
		if err != nil {
			if isClosedErr(err) {
				return
			}
			continue
		}
		if n > MaxMessageSize {
			metrics.ControlCommandsTotal.WithLabelValues("unknown", "too_large").Inc()
			s.reply(addr, "EINVAL: message exceeds 8192 bytes")
			continue
		}
		msg := append([]byte(nil), buf[:n]...)
		go s.handle(msg, addr)
	}
}

func (s *Server) handle(msg []byte, addr *net.UnixAddr) {
	if !s.limiter.Allow() {
		metrics.ControlCommandsTotal.WithLabelValues("unknown", "rate_limited").Inc()
		s.reply(addr, "EAGAIN: rate limited")
		return
	}

	fields := strings.Fields(string(msg))
	if len(fields) == 0 {
		metrics.ControlCommandsTotal.WithLabelValues("unknown", "empty").Inc()
		s.reply(addr, "EINVAL: empty command")
		return
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	s.mu.RLock()
	fn, ok := s.commands[name]
	auditor := s.auditor
	s.mu.RUnlock()
	if !ok {
		metrics.ControlCommandsTotal.WithLabelValues(name, "unknown_command").Inc()
		if auditor != nil {
			auditor.LogCommand(name, args, "unknown_command")
		}
		s.reply(addr, "ENOENT: Command not found.")
		return
	}

	a := arena.New("control-request")
	defer a.Destroy()

	resp, st := fn(a, args)
	outcome := "ok"
	switch {
	case !st.OK() && !st.Declined():
		outcome = "err"
	case st.Declined():
		outcome = "declined"
	}
	metrics.ControlCommandsTotal.WithLabelValues(name, outcome).Inc()
	if auditor != nil {
		auditor.LogCommand(name, args, outcome)
	}

	if outcome == "err" {
		s.log.LogRuleError(name, "control", "command", st)
		s.reply(addr, string(st.Code)+": "+st.Message)
		return
	}
	// Declined ("do not apply", spec §7) and Ok both reply with the
	// handler's own response text, unframed, per spec §6.
	s.reply(addr, resp)
}

func (s *Server) reply(addr *net.UnixAddr, msg string) {
	if addr == nil {
		return
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return
	}
	_, _ = conn.WriteToUnix([]byte(msg), addr)
}

func isClosedErr(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}

// Send delivers message to the control socket at sockPath from a
// throwaway client socket bound under the system temp directory (so the
// server has an address to reply to), waits up to timeout for a reply,
// and returns the reply's raw body. The client socket file is removed on
// return.
func Send(sockPath, message string, timeout time.Duration) (string, status.Status) {
	clientPath := filepath.Join(os.TempDir(), fmt.Sprintf("enginectl.%d.%d.S", os.Getpid(), time.Now().UnixNano()))
	clientAddr := &net.UnixAddr{Net: "unixgram", Name: clientPath}
	serverAddr, err := net.ResolveUnixAddr("unixgram", sockPath)
	if err != nil {
		return "", status.BadValue("invalid control socket path: " + err.Error())
	}
	conn, err := net.DialUnix("unixgram", clientAddr, serverAddr)
	if err != nil {
		return "", status.Other("failed to dial control socket", err)
	}
	defer os.Remove(clientPath)
	defer conn.Close()

	if _, err := conn.Write([]byte(message)); err != nil {
		return "", status.Other("failed to send control message", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, MaxMessageSize)
	n, err := conn.Read(buf)
	if err != nil {
		return "", status.Timeout("no reply from control socket: " + err.Error())
	}
	return string(buf[:n]), status.Ok()
}
