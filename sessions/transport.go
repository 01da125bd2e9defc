package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

const notificationQueueSize = 100

var _ server.ClientSession = (*Transport)(nil)

// Transport is the server side of one MCP session. It carries no tenant
// state: credentials arrive with each call's context.
type Transport struct {
	id            string
	mcpServer     *server.MCPServer
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool

	callLock sync.Mutex
	lastUsed atomic.Int64
	busy     atomic.Int32
	streams  atomic.Int32
	nowTime  func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func newTransport(id string, mcpServer *server.MCPServer, nowFunc func() time.Time) *Transport {
	t := &Transport{
		id:            id,
		mcpServer:     mcpServer,
		notifications: make(chan mcp.JSONRPCNotification, notificationQueueSize),
		nowTime:       nowFunc,
		done:          make(chan struct{}),
	}
	t.touch()
	return t
}

func (t *Transport) SessionID() string {
	return t.id
}

func (t *Transport) Initialize() {
	t.initialized.Store(true)
}

func (t *Transport) Initialized() bool {
	return t.initialized.Load()
}

func (t *Transport) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return t.notifications
}

// Handle forwards one JSON-RPC message to the MCP server. Calls on the same
// transport run one at a time in arrival order. The result is nil for
// notifications.
func (t *Transport) Handle(ctx context.Context, body json.RawMessage) (mcp.JSONRPCMessage, error) {
	t.busy.Add(1)
	defer t.busy.Add(-1)

	t.callLock.Lock()
	defer t.callLock.Unlock()

	if t.Closed() {
		return nil, fmt.Errorf("[Transport Handle] session %s: %w", t.id, gwerrors.ErrSessionClosed)
	}
	t.touch()
	defer t.touch()

	return t.mcpServer.HandleMessage(t.mcpServer.WithContext(ctx, t), body), nil
}

// Stream passes queued server notifications to send until ctx ends or the
// transport closes. An error from send ends the stream.
func (t *Transport) Stream(ctx context.Context, send func(mcp.JSONRPCNotification) error) error {
	t.streams.Add(1)
	defer t.streams.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.done:
			return fmt.Errorf("[Transport Stream] session %s: %w", t.id, gwerrors.ErrSessionClosed)
		case n := <-t.notifications:
			t.touch()
			if err := send(n); err != nil {
				return fmt.Errorf("[Transport Stream] %w", err)
			}
		}
	}
}

func (t *Transport) Closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// close waits for the in-flight call, stops streams and detaches the session
// from the MCP server. The notification channel stays open because the MCP
// server may still hold a reference to it.
func (t *Transport) close(ctx context.Context) {
	t.closeOnce.Do(func() {
		t.callLock.Lock()
		close(t.done)
		t.callLock.Unlock()
		t.mcpServer.UnregisterSession(ctx, t.id)
	})
}

func (t *Transport) touch() {
	t.lastUsed.Store(t.nowTime().UnixNano())
}

// LastUsed is the time of the most recent call or delivered notification.
func (t *Transport) LastUsed() time.Time {
	return time.Unix(0, t.lastUsed.Load())
}

func (t *Transport) idle() bool {
	return t.busy.Load() == 0 && t.streams.Load() == 0
}
