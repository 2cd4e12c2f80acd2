package ws

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/presence-service/internal/api/http"
	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/observability"
	"github.com/spec-kit/presence-service/internal/presence"
	"github.com/spec-kit/presence-service/internal/repository"
)

type wsFixture struct {
	addr     string
	registry *presence.Registry
	tokens   *auth.TokenManager
	users    *repository.MemoryUserRepository
}

func startWSServer(t *testing.T) *wsFixture {
	t.Helper()

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	users := repository.NewMemoryUserRepository()
	guard := auth.NewSessionGuard(tokens, users, zap.NewNop())
	registry := presence.NewRegistry(zap.NewNop(), nil)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics())
	NewHandler(registry, zap.NewNop()).Register(app, guard)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() {
		registry.Shutdown()
		_ = app.Shutdown()
	})

	return &wsFixture{
		addr:     ln.Addr().String(),
		registry: registry,
		tokens:   tokens,
		users:    users,
	}
}

func (f *wsFixture) newUser(t *testing.T, name, email string) (*domain.User, string) {
	t.Helper()
	user := &domain.User{FullName: name, Email: email, PasswordHash: "x", Bio: "hi"}
	require.NoError(t, f.users.Create(context.Background(), user))
	token, _, err := f.tokens.Generate(user.ID)
	require.NoError(t, err)
	return user, token
}

// dialWS retries until the listener accepts, since the server starts in a
// goroutine.
func (f *wsFixture) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws://" + f.addr + "/ws?token=" + token
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 5*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readOnlineFrame(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame presence.OnlineUsersFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, presence.EventOnlineUsers, frame.Event)
	return frame.Data
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	f := startWSServer(t)

	// Warm up the listener with a valid connection first.
	_, token := f.newUser(t, "Ann", "a@x.com")
	f.dialWS(t, token)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+f.addr+"/ws", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	f := startWSServer(t)

	_, token := f.newUser(t, "Ann", "a@x.com")
	f.dialWS(t, token)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+f.addr+"/ws?token=garbage", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeAckAndPush(t *testing.T) {
	f := startWSServer(t)

	ann, annToken := f.newUser(t, "Ann", "a@x.com")
	annConn := f.dialWS(t, annToken)

	// The first frame is the handshake ack and includes the caller.
	require.Equal(t, []string{ann.ID}, readOnlineFrame(t, annConn))
	require.True(t, f.registry.Online(ann.ID))

	bob, bobToken := f.newUser(t, "Bob", "b@x.com")
	bobConn := f.dialWS(t, bobToken)

	require.ElementsMatch(t, []string{ann.ID, bob.ID}, readOnlineFrame(t, bobConn))
	require.ElementsMatch(t, []string{ann.ID, bob.ID}, readOnlineFrame(t, annConn))
}

func TestConnectionCloseTriggersDisconnect(t *testing.T) {
	f := startWSServer(t)

	ann, annToken := f.newUser(t, "Ann", "a@x.com")
	annConn := f.dialWS(t, annToken)
	readOnlineFrame(t, annConn)

	bob, bobToken := f.newUser(t, "Bob", "b@x.com")
	bobConn := f.dialWS(t, bobToken)
	readOnlineFrame(t, bobConn)

	// Drain the join push before closing so the leave arrives as its own frame.
	require.ElementsMatch(t, []string{ann.ID, bob.ID}, readOnlineFrame(t, annConn))

	require.NoError(t, bobConn.Close())
	require.Eventually(t, func() bool { return !f.registry.Online(bob.ID) },
		5*time.Second, 20*time.Millisecond)

	require.Equal(t, []string{ann.ID}, readOnlineFrame(t, annConn))
}