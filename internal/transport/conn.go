package transport

import (
	"bufio"
	"io"
	"net"

	"github.com/kvcached/kvcached/internal/executor"
	"github.com/kvcached/kvcached/internal/kvlog"
	"github.com/kvcached/kvcached/internal/protocol"
	"go.uber.org/zap"
)

// handleConn serves one persistent connection until the client
// disconnects. The first byte of each request selects framing: '*'
// triggers RESP array decoding (Redis-style), anything else is read as a
// newline-terminated text line.
func handleConn(conn net.Conn, exec *executor.Executor) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		first, err := r.Peek(1)
		if err != nil {
			if err != io.EOF {
				kvlog.Debug("connection read error", zap.Error(err))
			}
			return
		}

		var cmd protocol.Command
		if first[0] == '*' {
			if _, err := r.Discard(1); err != nil {
				return
			}
			args, err := protocol.DecodeArray(r)
			if err != nil {
				kvlog.Debug("malformed array frame", zap.Error(err))
				return
			}
			cmd = protocol.ParseArgs(args)
		} else {
			line, err := r.ReadString('\n')
			if err != nil && line == "" {
				return
			}
			cmd = protocol.ParseText(line)
		}

		resp := exec.Execute(cmd)
		var out []byte
		if cmd.RESP {
			out = protocol.EncodeRESP(resp)
		} else {
			out = protocol.EncodeText(resp)
		}

		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}
