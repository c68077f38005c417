// Package client talks to SPRT and N4M servers.
package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/sprt/protocol"
)

// ErrSessionEnded is returned by Send once the server has ended the session
var ErrSessionEnded = errors.New("session has ended")

// Conn is one SPRT session. It carries the session's attributes from each
// response to the next request, the way a browser carries cookies.
type Conn struct {
	conn *net.TCPConn
	r    *protocol.Reader
	w    *protocol.Writer

	mu    sync.Mutex
	attrs *protocol.Attributes
	ended bool

	log *zap.Logger
}

func Dial(ctx context.Context, addr string, log *zap.Logger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Conn{
		conn:  conn.(*net.TCPConn),
		r:     protocol.NewReader(conn),
		w:     protocol.NewWriter(conn),
		attrs: protocol.NewAttributes(),
		log:   log.Named("client"),
	}, nil
}

// Attributes returns a copy of the attributes the next request will carry
func (c *Conn) Attributes() *protocol.Attributes {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attrs.Clone()
}

// SetAttributes replaces the attributes carried, e.g. with ones loaded from a
// previous session
func (c *Conn) SetAttributes(attrs *protocol.Attributes) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attrs = attrs.Clone()
}

// Send runs function with params and returns the server's response. The
// response's attributes are merged into those carried.
func (c *Conn) Send(ctx context.Context, function string, params ...string) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended {
		return nil, ErrSessionEnded
	}

	req, err := protocol.NewRequest(function, params, c.attrs)
	if err != nil {
		return nil, err
	}

	// No deadline on ctx clears any previous one
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	stop := c.interruptOnCancel(ctx)
	defer stop()

	c.log.Debug("Sending request", zap.Stringer("request", req))

	if err := req.Encode(c.w); err != nil {
		return nil, c.contextErr(ctx, err)
	}

	resp, err := protocol.ReadResponse(c.r)
	if err != nil {
		return nil, c.contextErr(ctx, err)
	}

	c.log.Debug("Received response", zap.Stringer("response", resp))

	c.attrs = c.attrs.AddAll(resp.Attributes())
	c.ended = resp.Terminal()

	return resp, nil
}

// Done returns true once the server has ended the session
func (c *Conn) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ended
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// interruptOnCancel unblocks a pending read or write when ctx is cancelled
func (c *Conn) interruptOnCancel(ctx context.Context) func() {
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			c.conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	return func() { close(done) }
}

func (c *Conn) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	return err
}
