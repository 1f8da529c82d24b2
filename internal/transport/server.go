// Package transport implements the TCP accept loop and per-connection
// framing: each accepted connection is handed to a fixed-size worker
// pool and served cooperatively on that worker for its entire lifetime,
// rather than spawning a goroutine per connection.
package transport

import (
	"net"

	"github.com/kvcached/kvcached/internal/executor"
	"github.com/kvcached/kvcached/internal/kvlog"
	"github.com/kvcached/kvcached/internal/workerpool"
	"go.uber.org/zap"
)

type Server struct {
	addr     string
	exec     *executor.Executor
	pool     *workerpool.Pool
	listener net.Listener
}

// New constructs a Server bound to addr; it does not start listening
// until Run is called.
func New(addr string, exec *executor.Executor) *Server {
	return &Server{addr: addr, exec: exec}
}

// Run binds and listens on s.addr, then accepts connections and submits
// each to a worker pool sized per workerpool.Size, until the listener is
// closed by Close.
func (s *Server) Run() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.pool = workerpool.New(0, func(conn net.Conn) {
		handleConn(conn, s.exec)
	})

	kvlog.Info("tcp listener started", zap.String("addr", s.addr))
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		s.pool.Submit(conn)
	}
}

// Close stops the accept loop and waits for in-flight connections to
// finish their current operation.
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
