package transport

import (
	"context"
	"sync"
)

// Conn is the live half of a PTY session.
type Conn interface {
	Send(p []byte) error
	Open() bool
	Close() error
}

// Bridge pairs the websocket stream with the REST side channel, keeping one
// API client per server.
type Bridge struct {
	clientOpts ClientOptions
	dialOpts   DialOptions

	mu      sync.Mutex
	clients map[string]*Client
}

func NewBridge(clientOpts ClientOptions, dialOpts DialOptions) *Bridge {
	return &Bridge{
		clientOpts: clientOpts,
		dialOpts:   dialOpts,
		clients:    make(map[string]*Client),
	}
}

func (b *Bridge) Client(serverURL string) *Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[serverURL]; ok {
		return c
	}
	c := NewClient(serverURL, b.clientOpts)
	b.clients[serverURL] = c
	return c
}

func (b *Bridge) Connect(ctx context.Context, ep Endpoint, h Handler) (Conn, error) {
	s, err := Dial(ctx, ep, h, b.dialOpts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *Bridge) Resize(ctx context.Context, ep Endpoint, cols, rows int) error {
	return b.Client(ep.ServerURL).Resize(ctx, ep, cols, rows)
}
