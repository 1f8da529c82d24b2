// Package executor implements the command executor: a stateless façade
// that dispatches a parsed Command to the batcher, the store, or the
// metrics sink, and formats the response.
package executor

import (
	"github.com/kvcached/kvcached/internal/metrics"
	"github.com/kvcached/kvcached/internal/protocol"
)

type storeAPI interface {
	Get(key string) (string, bool)
	MGet(keys []string) []protocol.OptValue
}

type batcherAPI interface {
	Add(cmd protocol.Command)
	Drain()
}

type compactorAPI interface {
	Compact() error
}

// Executor is the stateless command façade. It holds references to its
// four collaborators but no state of its own — a fresh Executor can be
// built per connection cheaply, or one shared instance reused across all
// connections, interchangeably.
type Executor struct {
	store   storeAPI
	batcher batcherAPI
	compact compactorAPI
	sink    *metrics.Sink
}

func New(store storeAPI, batcher batcherAPI, compact compactorAPI, sink *metrics.Sink) *Executor {
	return &Executor{store: store, batcher: batcher, compact: compact, sink: sink}
}

// Execute dispatches cmd to its handler and returns the response to
// write back to the connection.
func (e *Executor) Execute(cmd protocol.Command) protocol.Response {
	switch cmd.Kind {
	case protocol.KindSet, protocol.KindDel:
		e.batcher.Add(cmd)
		return protocol.Response{Kind: protocol.RespOK}

	case protocol.KindGet:
		v, ok := e.store.Get(cmd.Key)
		if !ok {
			return protocol.Response{Kind: protocol.RespNil}
		}
		return protocol.Response{Kind: protocol.RespValue, Value: v}

	case protocol.KindMget:
		values := e.store.MGet(cmd.Keys)
		return protocol.Response{Kind: protocol.RespValues, Values: values}

	case protocol.KindCompact:
		// Compaction failures degrade durability but are not client-visible
		// errors: the journal package already logs them. COMPACT always
		// acknowledges once the attempt completes.
		_ = e.compact.Compact()
		return protocol.Response{Kind: protocol.RespOK}

	case protocol.KindStats:
		body, err := e.sink.SnapshotJSON()
		if err != nil {
			return protocol.Response{Kind: protocol.RespErr, ErrMsg: err.Error()}
		}
		return protocol.Response{Kind: protocol.RespJSON, JSON: body}

	case protocol.KindFlush:
		e.batcher.Drain()
		return protocol.Response{Kind: protocol.RespOK}

	default:
		return protocol.Response{Kind: protocol.RespErr, ErrMsg: "Unknown command"}
	}
}
