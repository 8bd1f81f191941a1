// Package service implements the privilege service: the transaction gate,
// the per-connection wire pipeline, peer-credential authentication, and the
// operation catalog dispatching onto privilegedb and smack.
package service

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"git.ophivana.moe/security/privilegectl/message"
	"git.ophivana.moe/security/privilegectl/privilegedb"
	"git.ophivana.moe/security/privilegectl/smack"
	"git.ophivana.moe/security/privilegectl/wire"
)

// Config holds the daemon's filesystem layout.
type Config struct {
	// RunDir holds the service sockets.
	RunDir string
	// DBPath is the privilege SQL database file.
	DBPath string
	// RuleDir holds per-package persisted SMACK rule files.
	RuleDir string
	// TemplatePath is the app-rules template expanded at install time.
	TemplatePath string
}

const (
	modifySocketName  = "security-server-api-libprivilege-control-modify.socket"
	getSocketName     = "security-server-api-libprivilege-control-get.socket"
	socketPermissions = 0666
)

// pathEntry records one application path registered via APP_SETUP_PATH, so
// APP_GET_PATHS has something to answer with. There is no path table in the
// database, so this bookkeeping is kept in memory only; it does not survive
// a restart (documented simplification, see the grounding ledger).
type pathEntry struct {
	Path string
	Type PathType
}

// Server is the privilege service: one transaction gate and one database
// handle shared by every connection.
type Server struct {
	cfg     Config
	db      *privilegedb.Db
	labeler *smack.Labeler
	gate    *gate
	msg     message.Msg

	mu          sync.Mutex
	appPaths    map[string][]pathEntry
	appIdentity map[int32]string
}

// New constructs a Server around an already-open database handle.
func New(cfg Config, db *privilegedb.Db, msg message.Msg) *Server {
	if msg == nil {
		msg = message.Discard
	}
	return &Server{
		cfg:         cfg,
		db:          db,
		labeler:     smack.NewLabeler(),
		gate:        newGate(),
		msg:         msg,
		appPaths:    map[string][]pathEntry{},
		appIdentity: map[int32]string{},
	}
}

func (s *Server) newRuleSet() *smack.RuleSet { return smack.NewRuleSet() }

// ListenAndServe opens both the get and modify sockets under cfg.RunDir and
// serves connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.RunDir, 0755); err != nil {
		return err
	}

	modifyLn, err := s.listen(filepath.Join(s.cfg.RunDir, modifySocketName))
	if err != nil {
		return err
	}
	defer modifyLn.Close()

	getLn, err := s.listen(filepath.Join(s.cfg.RunDir, getSocketName))
	if err != nil {
		return err
	}
	defer getLn.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.acceptLoop(ctx, modifyLn, wire.InterfaceModify) }()
	go func() { defer wg.Done(); s.acceptLoop(ctx, getLn, wire.InterfaceGet) }()

	<-ctx.Done()
	modifyLn.Close()
	getLn.Close()
	wg.Wait()
	return ctx.Err()
}

func (s *Server) listen(path string) (*net.UnixListener, error) {
	os.Remove(path)
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	ln.SetUnlinkOnClose(true)
	if err := os.Chmod(path, socketPermissions); err != nil {
		s.msg.Verbosef("cannot set permissions on %s: %v", path, err)
	}
	return ln, nil
}

func (s *Server) acceptLoop(ctx context.Context, ln *net.UnixListener, iface wire.InterfaceID) {
	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.msg.Verbosef("accept on %v socket failed: %v", iface, err)
				return
			}
		}
		go s.handleConn(conn, iface)
	}
}

// handleConn authenticates the connection's peer once, then runs the
// buffered per-request pipeline: append incoming bytes, repeatedly split
// and dispatch complete frames, and write one reply frame per request, in
// order.
func (s *Server) handleConn(conn *net.UnixConn, iface wire.InterfaceID) {
	defer conn.Close()

	cred, err := peerCred(conn)
	if err != nil {
		s.msg.Verbosef("cannot read peer credentials: %v", err)
		return
	}

	var buf []byte
	tmp := make([]byte, 64*1024)
	for {
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		for {
			payload, consumed, ok, ferr := wire.SplitFrame(buf)
			if ferr != nil {
				return // protocol error: close with no reply
			}
			if !ok {
				break
			}
			buf = buf[consumed:]

			reply := s.dispatch(payload, iface, cred.Pid)
			if reply == nil {
				return // decoding failure inside dispatch: close with no reply
			}
			if _, werr := conn.Write(reply); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// peerCred fetches the kernel-supplied credentials of conn's peer, the sole
// authentication mechanism for the privilege service.
func peerCred(conn *net.UnixConn) (*syscall.Ucred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var cred *syscall.Ucred
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = syscall.GetsockoptUcred(int(fd), syscall.SOL_SOCKET, syscall.SO_PEERCRED)
	})
	if err := errors.Join(ctrlErr, sockErr); err != nil {
		return nil, err
	}
	return cred, nil
}
