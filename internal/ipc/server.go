package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// DaemonQuerier is the interface the IPC server uses to query daemon state.
// This avoids importing the daemon package (which would be circular).
type DaemonQuerier interface {
	Uptime() time.Duration
	Stop()
	RunID() string
	Branch() string
	Commit() string
	MainBranch() string
	Bootstrapped() bool
	TablesTracked() int
	TriggerSync()
}

// StoreQuerier provides data access methods needed by the IPC server.
type StoreQuerier interface {
	MigrationEventsCount() (int64, error)
	VCSEventsCount() (int64, error)
	DBSizeBytes() (int64, error)
}

// Server is a Unix domain socket server for CLI-to-daemon communication.
type Server struct {
	daemon DaemonQuerier
	store  StoreQuerier

	listener net.Listener
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopped  bool
}

// NewServer creates a new IPC server.
func NewServer(daemon DaemonQuerier, store StoreQuerier) *Server {
	return &Server{
		daemon: daemon,
		store:  store,
	}
}

// Listen starts accepting connections on the given Unix socket path.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Listen(socketPath string, ctx context.Context) error {
	// Remove stale socket file if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", socketPath, err)
	}

	// Set socket permissions to owner-only.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.stopped = false
	s.mu.Unlock()

	log.Printf("ipc: listening on %s", socketPath)

	// Close the listener when context is cancelled.
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return nil
			}
			// Context cancelled causes listener to close.
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop stops accepting connections and waits for in-flight connections to drain.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopped = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}

	// Wait for in-flight connections with a timeout.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("drain timeout: connections still open after 5s")
	}
}

// SetStore updates the store reference after daemon startup.
// Accepts interface{} to satisfy daemon.StoreAware without circular imports.
// The concrete value must implement StoreQuerier.
func (s *Server) SetStore(st interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sq, ok := st.(StoreQuerier); ok {
		s.store = sq
	}
}

// SetDaemon sets the daemon reference. This is called after daemon creation
// to break the circular construction dependency (daemon needs server, server needs daemon).
func (s *Server) SetDaemon(d DaemonQuerier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daemon = d
}

// handleConn reads a single JSON request, dispatches it, and writes the response.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	// Set a read/write deadline.
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		writeError(conn, "empty request")
		return
	}

	var req Request
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		writeError(conn, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	switch req.Command {
	case CmdPing:
		writeResponse(conn, Response{OK: true, Data: "pong"})

	case CmdStatus:
		s.handleStatus(conn)

	case CmdSync:
		s.mu.Lock()
		d := s.daemon
		s.mu.Unlock()
		if d == nil {
			writeError(conn, "daemon not ready")
			return
		}
		d.TriggerSync()
		writeResponse(conn, Response{OK: true, Data: "sync scheduled"})

	case CmdStop:
		writeResponse(conn, Response{OK: true, Data: "shutting down"})
		// Trigger daemon shutdown after sending response.
		s.mu.Lock()
		d := s.daemon
		s.mu.Unlock()
		if d != nil {
			d.Stop()
		}

	default:
		writeError(conn, fmt.Sprintf("unknown command: %q", req.Command))
	}
}

func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	d, st := s.daemon, s.store
	s.mu.Unlock()

	var data StatusData

	if d != nil {
		data.Uptime = d.Uptime().Truncate(time.Second).String()
		data.RunID = d.RunID()
		data.Branch = d.Branch()
		data.Commit = d.Commit()
		data.MainBranch = d.MainBranch()
		data.Bootstrapped = d.Bootstrapped()
		data.TablesTracked = d.TablesTracked()
	}

	if st != nil {
		if v, err := st.DBSizeBytes(); err == nil {
			data.DBSizeBytes = v
		}
		if v, err := st.MigrationEventsCount(); err == nil {
			data.MigrationsCount = v
		}
		if v, err := st.VCSEventsCount(); err == nil {
			data.VCSEventsCount = v
		}
	}

	writeResponse(conn, Response{OK: true, Data: data})
}

func writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func writeError(conn net.Conn, msg string) {
	writeResponse(conn, Response{OK: false, Error: msg})
}
