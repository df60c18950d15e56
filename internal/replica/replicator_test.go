package replica_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/0xRadioAc7iv/go-caskdb/core"
	"github.com/0xRadioAc7iv/go-caskdb/internal/replica"
	"github.com/0xRadioAc7iv/go-caskdb/internal/server"
	"github.com/0xRadioAc7iv/go-caskdb/internal/service"
)

// startPeer runs a full store + server and returns its address and store,
// so tests can assert what replication actually wrote.
func startPeer(t *testing.T) (string, *core.Store) {
	t.Helper()

	store, err := core.Open(core.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to open peer store: %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	log := zap.NewNop().Sugar()
	svc := service.New(store, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := server.Start(ctx, log, port, svc.HandleConn); err != nil {
			t.Errorf("peer server stopped abruptly: %v", err)
		}
	}()
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		cancel()
		store.Close()
	})

	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), store
}

func TestReplicatorForwardsPut(t *testing.T) {
	addr, peer := startPeer(t)
	r := replica.New([]string{addr}, time.Second, zap.NewNop().Sugar())

	if err := r.OnPut([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}

	value, err := peer.Read([]byte("k"))
	if err != nil {
		t.Fatalf("replicated key missing on peer: %v", err)
	}
	if string(value) != "v" {
		t.Fatalf("got %q, want %q", value, "v")
	}
}

func TestReplicatorForwardsDelete(t *testing.T) {
	addr, peer := startPeer(t)
	r := replica.New([]string{addr}, time.Second, zap.NewNop().Sugar())

	if err := peer.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}

	if err := r.OnDelete([]byte("k")); err != nil {
		t.Fatal(err)
	}

	if _, err := peer.Read([]byte("k")); err == nil {
		t.Fatal("key still present on peer after replicated delete")
	}
}

func TestReplicatorForwardsBatchPut(t *testing.T) {
	addr, peer := startPeer(t)
	r := replica.New([]string{addr}, time.Second, zap.NewNop().Sugar())

	entries := []core.Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	if err := r.OnBatchPut(entries); err != nil {
		t.Fatal(err)
	}

	for _, e := range entries {
		value, err := peer.Read(e.Key)
		if err != nil {
			t.Fatalf("replicated key %q missing on peer: %v", e.Key, err)
		}
		if string(value) != string(e.Value) {
			t.Fatalf("key %q: got %q, want %q", e.Key, value, e.Value)
		}
	}
}

func TestReplicatorToleratesUnreachablePeer(t *testing.T) {
	// Nothing listens here; replication must log and move on.
	r := replica.New([]string{"127.0.0.1:1"}, 100*time.Millisecond, zap.NewNop().Sugar())

	if err := r.OnPut([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("unreachable peer must not surface an error: %v", err)
	}
}
