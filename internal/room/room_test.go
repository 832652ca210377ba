package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"golang.org/x/time/rate"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	frames   []Frame
	closed   bool
	pings    int
	failSend bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errSendFailed
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

type sendFailedErr struct{}

func (sendFailedErr) Error() string { return "send failed" }

var errSendFailed = sendFailedErr{}

func TestJoinBroadcastsUserJoinedOnce(t *testing.T) {
	m := NewManager()
	a, b := newFakeConn("a"), newFakeConn("b")
	m.Register(a, "u1")
	m.Register(b, "u2")

	require.NoError(t, m.Join("conv1", a))
	require.NoError(t, m.Join("conv1", b))

	// a joined first, so only a is present to observe b's join
	require.Empty(t, b.received())

	aFrames := a.received()
	require.Len(t, aFrames, 1)
	require.Equal(t, "user_joined", aFrames[0].Type)
	require.Equal(t, "u2", aFrames[0].Data)
}

func TestJoinLeaveJoinRoundTripsPresence(t *testing.T) {
	m := NewManager()
	a := newFakeConn("a")
	m.Register(a, "u1")

	require.NoError(t, m.Join("conv1", a))
	require.Equal(t, 1, m.Presence("conv1", "u1"))

	m.Leave("conv1", a)
	require.Equal(t, 0, m.Presence("conv1", "u1"))

	require.NoError(t, m.Join("conv1", a))
	require.Equal(t, 1, m.Presence("conv1", "u1"))
}

func TestPresenceDedupedAcrossMultipleConnectionsSameUser(t *testing.T) {
	m := NewManager()
	a1, a2 := newFakeConn("a1"), newFakeConn("a2")
	other := newFakeConn("other")
	m.Register(a1, "u1")
	m.Register(a2, "u1")
	m.Register(other, "u2")

	require.NoError(t, m.Join("conv1", other))
	require.NoError(t, m.Join("conv1", a1))
	require.NoError(t, m.Join("conv1", a2)) // second connection for u1, no second broadcast

	frames := other.received()
	joinedCount := 0
	for _, f := range frames {
		if f.Type == "user_joined" && f.Data == "u1" {
			joinedCount++
		}
	}
	require.Equal(t, 1, joinedCount)

	m.Leave("conv1", a1) // u1 still has a2 present, no user_left yet
	frames = other.received()
	for _, f := range frames {
		require.NotEqual(t, "user_left", f.Type)
	}

	m.Leave("conv1", a2) // last connection for u1 leaves
	frames = other.received()
	sawLeft := false
	for _, f := range frames {
		if f.Type == "user_left" && f.Data == "u1" {
			sawLeft = true
		}
	}
	require.True(t, sawLeft)
}

func TestBroadcastSkipsExceptAndDeadConnections(t *testing.T) {
	m := NewManager()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	m.Register(a, "u1")
	m.Register(b, "u2")
	m.Register(c, "u3")
	require.NoError(t, m.Join("conv1", a))
	require.NoError(t, m.Join("conv1", b))
	require.NoError(t, m.Join("conv1", c))

	c.mu.Lock()
	c.failSend = true
	c.mu.Unlock()

	m.Broadcast("conv1", Frame{Type: "stream", ConversationID: "conv1", Data: "hi"}, a)

	require.Empty(t, filterType(a.received(), "stream"))
	require.Len(t, filterType(b.received(), "stream"), 1)
	// c's send failed, but Broadcast does not panic or error
	require.Empty(t, filterType(c.received(), "stream"))
}

func filterType(frames []Frame, typ string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func TestRoomExclusivityScenario(t *testing.T) {
	m := NewManager()
	u1, u2 := newFakeConn("u1conn"), newFakeConn("u2conn")
	m.Register(u1, "u1")
	m.Register(u2, "u2")
	require.NoError(t, m.Join("room1", u1))
	require.NoError(t, m.Join("room1", u2))

	require.True(t, m.StartGeneration("room1", "u1", "m1"))
	require.False(t, m.StartGeneration("room1", "u2", "m2"))

	m.EndGeneration("room1")
	require.True(t, m.StartGeneration("room1", "u2", "m2"))
}

func TestUnregisterLeavesAllJoinedRooms(t *testing.T) {
	m := NewManager()
	a, b := newFakeConn("a"), newFakeConn("b")
	m.Register(a, "u1")
	m.Register(b, "u2")
	require.NoError(t, m.Join("conv1", a))
	require.NoError(t, m.Join("conv1", b))

	m.Unregister(a)
	require.Equal(t, 0, m.Presence("conv1", "u1"))

	frames := b.received()
	sawLeft := false
	for _, f := range frames {
		if f.Type == "user_left" {
			sawLeft = true
		}
	}
	require.True(t, sawLeft)
}

func TestHeartbeatTerminatesUnansweredConnection(t *testing.T) {
	m := NewManager()
	a := newFakeConn("a")
	m.Register(a, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.sweep(ctx, rate.NewLimiter(rate.Inf, 1)) // first sweep: ping sent
	require.Equal(t, 1, a.pings)

	m.sweep(ctx, rate.NewLimiter(rate.Inf, 1)) // no pong in between: terminated
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	require.True(t, closed)
}

func TestHeartbeatSurvivesPongBetweenSweeps(t *testing.T) {
	m := NewManager()
	a := newFakeConn("a")
	m.Register(a, "u1")

	ctx := context.Background()
	limiter := rate.NewLimiter(rate.Inf, 1)
	m.sweep(ctx, limiter)
	m.Pong(a)
	m.sweep(ctx, limiter)

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	require.False(t, closed)
}

func TestHeartbeatRunLoopRespectsContextCancellation(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Heartbeat(ctx, 5*time.Millisecond, rate.Inf)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Heartbeat did not return after context cancellation")
	}
}
