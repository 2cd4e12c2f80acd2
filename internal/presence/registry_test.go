package presence

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTransport records pushed frames. Writes can be made blocking or failing
// to exercise the slow-recipient and broken-recipient paths.
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]string
	closed bool

	unblock  chan struct{} // writes wait on this when set
	writeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (t *fakeTransport) WriteJSON(v any) error {
	if t.unblock != nil {
		<-t.unblock
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	frame, ok := v.(OnlineUsersFrame)
	if !ok {
		return errors.New("unexpected frame type")
	}
	ids := make([]string, len(frame.Data))
	copy(ids, frame.Data)
	t.frames = append(t.frames, ids)
	return nil
}

func (t *fakeTransport) Ping() error { return nil }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) frameCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

func (t *fakeTransport) lastFrame() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

func (t *fakeTransport) allFrames() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]string, len(t.frames))
	copy(out, t.frames)
	return out
}

func waitFrames(t *testing.T, tr *fakeTransport, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return tr.frameCount() >= n },
		2*time.Second, 5*time.Millisecond)
}

func TestConnectAckIncludesSelf(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	tr := newFakeTransport()
	r.Connect("alice", tr)

	waitFrames(t, tr, 1)
	require.Equal(t, []string{"alice"}, tr.lastFrame())
	require.Equal(t, []string{"alice"}, r.Snapshot())
}

func TestReconnectSupersedesPriorSession(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	h1 := newFakeTransport()
	h2 := newFakeTransport()

	s1 := r.Connect("alice", h1)
	r.Connect("alice", h2)

	require.Equal(t, 1, r.Count())
	require.True(t, h1.isClosed(), "superseded transport must be closed")
	require.False(t, h2.isClosed())

	// The stale session's pump exiting must not evict the replacement.
	r.Disconnect("alice", s1)
	require.True(t, r.Online("alice"))

	waitFrames(t, h2, 1)
	require.Equal(t, []string{"alice"}, h2.lastFrame())
}

func TestDisconnectAbsentIsNoop(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	tr := newFakeTransport()
	r.Connect("bob", tr)
	waitFrames(t, tr, 1)

	r.Disconnect("ghost", nil)
	r.Disconnect("ghost", nil)

	require.Equal(t, 1, r.Count())
	require.Equal(t, []string{"bob"}, r.Snapshot())
	require.Equal(t, []string{"bob"}, tr.lastFrame())
}

func TestDoubleDisconnectIsNoop(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	tr := newFakeTransport()
	s := r.Connect("alice", tr)

	r.Disconnect("alice", s)
	r.Disconnect("alice", s)
	r.Disconnect("alice", nil)

	require.Equal(t, 0, r.Count())
	require.Empty(t, r.Snapshot())
}

func TestBroadcastSequence(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	trA := newFakeTransport()
	trB := newFakeTransport()

	r.Connect("a", trA)
	waitFrames(t, trA, 1)

	r.Connect("b", trB)
	waitFrames(t, trA, 2)
	waitFrames(t, trB, 1)

	r.Disconnect("a", nil)
	waitFrames(t, trB, 2)

	require.Equal(t, []string{"b"}, r.Snapshot())

	// A saw its own ack, then B joining. B saw its ack, then A leaving.
	require.Equal(t, [][]string{{"a"}, {"a", "b"}}, trA.allFrames())
	require.Equal(t, [][]string{{"a", "b"}, {"b"}}, trB.allFrames())
}

func TestLaggingRecipientSurvivesChurn(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	observer := newFakeTransport()
	observer.unblock = make(chan struct{})

	r.Connect("observer", observer)

	// The observer's pump is stuck inside a write while unrelated identities
	// connect and disconnect far faster than it can drain.
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("peer-%d", i)
		r.Connect(id, newFakeTransport())
		r.Disconnect(id, nil)
	}
	stayer := newFakeTransport()
	r.Connect("stayer", stayer)

	// Lagging is not failing: the observer keeps its registration.
	require.True(t, r.Online("observer"))
	require.False(t, observer.isClosed())
	require.Equal(t, []string{"observer", "stayer"}, r.Snapshot())

	// Once it catches up it sees the final state, with the intermediate
	// sets coalesced away.
	close(observer.unblock)
	require.Eventually(t, func() bool {
		last := observer.lastFrame()
		return len(last) == 2 && last[0] == "observer" && last[1] == "stayer"
	}, 2*time.Second, 5*time.Millisecond)
	require.LessOrEqual(t, observer.frameCount(), 2)
}

func TestWriteErrorDisconnectsRecipient(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	broken := newFakeTransport()
	broken.writeErr = errors.New("connection reset")
	healthy := newFakeTransport()

	r.Connect("broken", broken)
	r.Connect("healthy", healthy)

	require.Eventually(t, func() bool { return !r.Online("broken") },
		2*time.Second, 5*time.Millisecond)
	require.True(t, r.Online("healthy"), "one broken recipient must not affect others")

	require.Eventually(t, func() bool {
		last := healthy.lastFrame()
		return len(last) == 1 && last[0] == "healthy"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConcurrentConnects(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Connect(fmt.Sprintf("user-%02d", i), newFakeTransport())
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, r.Count())
	snapshot := r.Snapshot()
	require.Len(t, snapshot, n)
	for i := 1; i < len(snapshot); i++ {
		require.Less(t, snapshot[i-1], snapshot[i], "snapshot must be sorted")
	}
}

func TestRapidReconnectKeepsLatestHandle(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	defer r.Shutdown()

	var last *fakeTransport
	for i := 0; i < 10; i++ {
		last = newFakeTransport()
		r.Connect("alice", last)
	}

	require.Equal(t, 1, r.Count())
	require.False(t, last.isClosed())

	waitFrames(t, last, 1)
	require.Equal(t, []string{"alice"}, last.lastFrame())
}
