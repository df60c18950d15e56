// Package replica forwards local writes to peer stores. It plugs into the
// engine's write-observation hook: after a write commits locally, the same
// operation is re-issued to every configured replica over the wire
// protocol. Replication is fire-and-forget: a peer that cannot be reached
// or that rejects the command is logged and never fails the local write.
package replica

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xRadioAc7iv/go-caskdb/core"
	"github.com/0xRadioAc7iv/go-caskdb/internal/protocol"
)

// DefaultTimeout bounds the dial to one replica, and separately the round
// trip that follows it.
const DefaultTimeout = 2 * time.Second

type Replicator struct {
	nodes   []string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// New builds a replicator targeting the given "host:port" peers. A
// non-positive timeout falls back to DefaultTimeout.
func New(nodes []string, timeout time.Duration, log *zap.SugaredLogger) *Replicator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Replicator{nodes: nodes, timeout: timeout, log: log}
}

var _ core.WriteObserver = (*Replicator)(nil)

func (r *Replicator) OnPut(key, value []byte) error {
	r.forward("put", string(key), string(value))
	return nil
}

func (r *Replicator) OnDelete(key []byte) error {
	r.forward("delete", string(key), "")
	return nil
}

func (r *Replicator) OnBatchPut(entries []core.Entry) error {
	pairs := make([]protocol.KV, 0, len(entries))
	for _, e := range entries {
		pairs = append(pairs, protocol.KV{Key: string(e.Key), Val: string(e.Value)})
	}

	payload, err := protocol.EncodePairs(pairs)
	if err != nil {
		return fmt.Errorf("encode batch for replication: %w", err)
	}

	r.forward("batchput", "", string(payload))
	return nil
}

func (r *Replicator) forward(cmd, key, val string) {
	for _, node := range r.nodes {
		if err := r.send(node, cmd, key, val); err != nil {
			r.log.Warnw("replication failed", "node", node, "cmd", cmd, "error", err)
		}
	}
}

func (r *Replicator) send(node, cmd, key, val string) error {
	conn, err := net.DialTimeout("tcp", node, r.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(r.timeout)); err != nil {
		return err
	}

	payload, err := protocol.EncodeCommand(cmd, key, val)
	if err != nil {
		return err
	}
	if _, err := conn.Write(payload); err != nil {
		return err
	}

	resp, err := protocol.DecodeResponse(conn)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(resp, "OK") {
		return fmt.Errorf("replica rejected %s: %s", cmd, resp)
	}
	return nil
}
