package shipper

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hrstress/hrstress/agent/internal/compute"
	"github.com/hrstress/hrstress/agent/internal/config"
	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/pkg/types"
)

type mockServer struct {
	mu       sync.Mutex
	received []*rpc.SessionSnapshot
	keys     []string
	calls    int
	failWith error // returned for every call when set
}

func (m *mockServer) SendSession(ctx context.Context, snap *rpc.SessionSnapshot) (*rpc.SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		m.keys = append(m.keys, md.Get("x-api-key")...)
	}
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.received = append(m.received, snap)
	return &rpc.SendResponse{Ok: true}, nil
}

func (m *mockServer) snapshots() []*rpc.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*rpc.SessionSnapshot, len(m.received))
	copy(out, m.received)
	return out
}

// startTestServer starts an in-process gRPC server and returns a dial
// function that connects to it.
func startTestServer(t *testing.T, srv *mockServer) dialFunc {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	gs := grpc.NewServer()
	rpc.RegisterSessionServiceServer(gs, srv)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	addr := lis.Addr().String()
	return func(ctx context.Context, _ string, _ config.AgentConfig) (*grpc.ClientConn, error) {
		return grpc.DialContext(ctx, addr, //nolint:staticcheck
			grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
}

func makeComputeResult(id string) *compute.Result {
	tbl := &types.Table{Columns: []string{"hr"}, Rows: [][]string{{"70"}, {"75"}, {"72"}}}
	analysis, err := hrv.Analyze(tbl, hrv.Options{})
	if err != nil {
		panic(err)
	}
	return &compute.Result{
		SourceID:   id,
		SourceType: config.SourceFile,
		Origin:     "/data/" + id + ".csv",
		Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Analysis:   analysis,
	}
}

func agentCfg() config.AgentConfig {
	return config.AgentConfig{
		ServerEndpoint: "unused-overridden-by-dialFn",
		AgentID:        "agent-test",
		BufferSize:     10,
		ShipInterval:   time.Second,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestShipper_DeliversSnapshot(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeComputeResult("morning"))
	waitFor(t, func() bool { return len(srv.snapshots()) > 0 })

	snaps := srv.snapshots()
	if len(snaps) != 1 {
		t.Fatalf("server received %d snapshots, want 1", len(snaps))
	}
	got := snaps[0]
	if got.SourceID != "morning" || got.AgentID != "agent-test" {
		t.Errorf("source/agent = %q/%q", got.SourceID, got.AgentID)
	}
	if got.SessionID == "" {
		t.Error("session id not set")
	}
	if got.HeartRate.Count != 3 || !got.Metrics.Defined() {
		t.Errorf("analysis lost in transit: %+v", got)
	}
	if len(got.Samples) != 0 {
		t.Error("samples shipped without include_samples")
	}
}

func TestShipper_MultipleSnapshots(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 5; i++ {
		s.Ship(makeComputeResult("src"))
	}
	waitFor(t, func() bool { return len(srv.snapshots()) >= 5 })

	if got := len(srv.snapshots()); got != 5 {
		t.Errorf("server received %d snapshots, want 5", got)
	}
}

func TestShipper_APIKeyMetadata(t *testing.T) {
	t.Setenv("SHIPPER_TEST_KEY", "s3cret")
	srv := &mockServer{}
	cfg := agentCfg()
	cfg.ServerAuth = config.AuthConfig{Mode: "apikey", KeyEnv: "SHIPPER_TEST_KEY"}

	s := New(cfg)
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeComputeResult("src"))
	waitFor(t, func() bool { return len(srv.snapshots()) > 0 })

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.keys) == 0 || srv.keys[0] != "s3cret" {
		t.Errorf("api key metadata = %v, want [s3cret]", srv.keys)
	}
}

func TestShipper_PermanentErrorDiscards(t *testing.T) {
	srv := &mockServer{failWith: status.Error(codes.InvalidArgument, "bad snapshot")}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeComputeResult("src"))
	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.calls > 0
	})
	time.Sleep(50 * time.Millisecond)

	srv.mu.Lock()
	calls := srv.calls
	srv.mu.Unlock()
	if calls != 1 {
		t.Errorf("server saw %d calls, want exactly 1 (no retry)", calls)
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d, want 0 after permanent error", s.Pending())
	}
}

func TestShipper_BufferEvictsOldest(t *testing.T) {
	s := New(config.AgentConfig{BufferSize: 3})

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		s.Ship(makeComputeResult(id))
	}

	var ids []string
	for s.Pending() > 0 {
		snap, _ := s.queue.pop(context.Background())
		ids = append(ids, snap.SourceID)
	}
	want := []string{"c", "d", "e"}
	if len(ids) != len(want) {
		t.Fatalf("buffer has %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestShipper_TransientErrorKeepsSnapshot(t *testing.T) {
	srv := &mockServer{failWith: status.Error(codes.Unavailable, "restarting")}
	cfg := agentCfg()
	cfg.ShipInterval = time.Minute
	s := New(cfg)
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeComputeResult("first"))
	s.Ship(makeComputeResult("second"))
	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.calls > 0
	})
	time.Sleep(50 * time.Millisecond)

	if s.Pending() != 2 {
		t.Fatalf("pending = %d, want 2 after transient error", s.Pending())
	}
	head, _ := s.queue.pop(context.Background())
	if head.SourceID != "first" {
		t.Errorf("queue head = %q, want first (order kept)", head.SourceID)
	}
}

func TestToSnapshot(t *testing.T) {
	res := makeComputeResult("s")
	snap := toSnapshot(res, "agent-1", true)

	if snap.SourceKind != config.SourceFile || snap.Origin != "/data/s.csv" {
		t.Errorf("kind/origin = %q/%q", snap.SourceKind, snap.Origin)
	}
	if snap.HeartRateColumn != "hr" || snap.TimestampColumn != "" {
		t.Errorf("columns = %q/%q", snap.TimestampColumn, snap.HeartRateColumn)
	}
	if snap.WindowSeconds != hrv.DefaultWindowSeconds {
		t.Errorf("window = %d", snap.WindowSeconds)
	}
	if len(snap.Samples) != 3 {
		t.Errorf("samples = %d, want 3", len(snap.Samples))
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	other := toSnapshot(res, "agent-1", true)
	if other.SessionID == snap.SessionID {
		t.Error("session ids should be unique per snapshot")
	}
}

func TestToSnapshot_Failed(t *testing.T) {
	res := &compute.Result{SourceID: "bad", SourceType: config.SourceHTTP, ErrorMessage: "no valid heart rate column found", Reason: compute.ReasonMissingColumn}
	snap := toSnapshot(res, "agent-1", true)
	if !snap.Failed() || snap.Error != res.ErrorMessage {
		t.Errorf("snap = %+v, want failed with message", snap)
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRetryDelay_DefaultBase(t *testing.T) {
	for _, base := range []time.Duration{0, -time.Second, 2 * backoffMax} {
		if d := retryDelay(base, 0); d < 750*time.Millisecond || d > 1250*time.Millisecond {
			t.Errorf("retryDelay(%v, 0) = %v, want 1s ±25%%", base, d)
		}
	}
}

func TestRetryDelay_StartsAtShipInterval(t *testing.T) {
	d := retryDelay(4*time.Second, 0)
	if d < 3*time.Second || d > 5*time.Second {
		t.Errorf("first delay = %v, want 4s ±25%%", d)
	}
}

func TestRetryDelay_DoublesAndCaps(t *testing.T) {
	if d := retryDelay(time.Second, 3); d < 6*time.Second || d > 10*time.Second {
		t.Errorf("retryDelay(1s, 3) = %v, want 8s ±25%%", d)
	}
	for _, n := range []int{10, 50, 1000} {
		if d := retryDelay(time.Second, n); d > backoffMax*5/4 {
			t.Errorf("retryDelay(1s, %d) = %v, exceeds max", n, d)
		}
	}
}

func TestCallOptions(t *testing.T) {
	t.Setenv("CALLOPT_KEY", "k")
	if opts := callOptions(config.AuthConfig{Mode: "none"}); len(opts) != 0 {
		t.Errorf("none: got %d options", len(opts))
	}
	if opts := callOptions(config.AuthConfig{Mode: "apikey", KeyEnv: "CALLOPT_UNSET"}); len(opts) != 0 {
		t.Errorf("apikey without key: got %d options", len(opts))
	}
	if opts := callOptions(config.AuthConfig{Mode: "apikey", KeyEnv: "CALLOPT_KEY"}); len(opts) != 1 {
		t.Errorf("apikey: got %d options, want 1", len(opts))
	}

	md, _ := apiKeyCreds{header: "x-hr-token", key: "k"}.GetRequestMetadata(context.Background())
	if md["x-hr-token"] != "k" {
		t.Errorf("metadata = %v", md)
	}
}

func TestShipper_GracefulShutdown(t *testing.T) {
	s := New(agentCfg())
	s.dialFn = startTestServer(t, &mockServer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
