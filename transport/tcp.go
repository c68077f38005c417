package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/sprt/protocol"
)

// TCP is the blocking driver: a fixed pool of workers, each serving one
// connection at a time from start to finish.
type TCP struct {
	opts Options

	ctx        context.Context
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup
	closeOnce  sync.Once

	listener net.Listener
	conns    chan net.Conn
	errs     chan error

	mu          sync.Mutex
	activeConns map[net.Conn]struct{}

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	options = options.withDefaults()

	return &TCP{
		opts:        options,
		conns:       make(chan net.Conn),
		errs:        make(chan error, 1),
		activeConns: make(map[net.Conn]struct{}),
		log:         options.Log.Named("tcp"),
	}
}

func (t *TCP) Start(parentCtx context.Context) error {
	listener, err := reuseport.Listen("tcp", t.opts.addr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parentCtx)
	t.ctx, t.cancel = ctx, cancel
	t.listener = listener

	t.log.Info("Starting tcp workers",
		zap.String("addr", listener.Addr().String()),
		zap.Int("count", t.opts.Workers))

	for i := 0; i < t.opts.Workers; i++ {
		t.stopWaiter.Add(1)

		go func(log *zap.Logger) {
			defer t.stopWaiter.Done()
			t.work(ctx, log)
		}(t.log.Named("worker").With(zap.Int("worker", i)))
	}

	t.stopWaiter.Add(1)
	go func() {
		defer t.stopWaiter.Done()
		t.acceptLoop(ctx)
	}()

	go func() {
		<-ctx.Done()
		t.Close()
	}()

	return nil
}

func (t *TCP) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}

	return t.listener.Addr()
}

func (t *TCP) Err() <-chan error {
	return t.errs
}

// Close immediately closes the listener and every active connection, then
// waits for the workers to stop
func (t *TCP) Close() (err error) {
	t.closeOnce.Do(func() {
		if t.cancel == nil {
			return
		}

		t.log.Info("Stopping TCP server")
		t.cancel()

		if t.listener != nil {
			err = multierr.Append(err, t.listener.Close())
		}

		t.mu.Lock()
		for conn := range t.activeConns {
			err = multierr.Append(err, conn.Close())
		}
		t.mu.Unlock()

		t.stopWaiter.Wait()
		t.log.Info("TCP server stopped")
	})

	return err
}

func (t *TCP) acceptLoop(ctx context.Context) {
	failures := 0

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return
			}

			failures++
			t.log.Warn("Failed to accept connection", zap.Int("failures", failures), zap.Error(err))

			if failures >= MaxAcceptFailures {
				t.log.Error("Too many failed accepts, no longer accepting connections")
				report(t.errs, ErrAcceptFailed)
				return
			}

			continue
		}

		failures = 0
		t.opts.Metrics.ConnectionAccepted(DriverBlocking)

		select {
		case t.conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

func (t *TCP) work(ctx context.Context, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-t.conns:
			t.serve(conn, log)
		}
	}
}

// serve runs one connection's conversation until it ends, the client goes
// quiet or the connection breaks. The connection is always closed.
func (t *TCP) serve(conn net.Conn, workerLog *zap.Logger) {
	log := workerLog.With(
		zap.String("conn", uuid.NewString()),
		zap.String("remote", conn.RemoteAddr().String()))

	if !t.track(conn) {
		conn.Close()
		return
	}

	defer func() {
		t.untrack(conn)

		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Debug("Connection did not close cleanly", zap.Error(err))
		}

		log.Debug("Connection closed")
	}()

	log.Debug("Serving connection")

	conv := t.opts.newConversation(log)

	// limited caps what each request may pull off the connection
	limited := &io.LimitedReader{R: conn}
	r := protocol.NewReader(limited)
	w := protocol.NewWriter(conn)

	for !conv.Done() {
		if err := conn.SetReadDeadline(time.Now().Add(t.opts.IdleTimeout)); err != nil {
			log.Debug("Failed to set read deadline", zap.Error(err))
			return
		}

		limited.N = int64(t.opts.MaxMessageSize)
		req, err := protocol.ReadRequest(r)
		if err != nil && limited.N <= 0 {
			log.Info("Request too large", zap.Int("limit", t.opts.MaxMessageSize), zap.Error(err))
			return
		}

		start := time.Now()

		var resp *protocol.Response
		switch {
		case err == nil:
			resp = conv.Handle(req)

		case errors.Is(err, protocol.ErrInvalid):
			resp = conv.Reject(err)

		case isTimeout(err):
			t.opts.Metrics.IdleTimeout(DriverBlocking)
			log.Info("Client timed out")
			return

		default:
			// Incomplete input means the client hung up mid message
			log.Debug("Failed to read request", zap.Error(err))
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(t.opts.IdleTimeout)); err != nil {
			log.Debug("Failed to set write deadline", zap.Error(err))
			return
		}

		if err := resp.Encode(w); err != nil {
			if isTimeout(err) {
				t.opts.Metrics.IdleTimeout(DriverBlocking)
				log.Info("Client stopped reading")
			} else {
				log.Info("Failed to write response", zap.Error(err))
			}

			return
		}

		t.opts.Metrics.ResponseSent(string(resp.Status()))
		t.opts.Metrics.ObserveHandling(DriverBlocking, time.Since(start))
	}
}

// track registers conn so that Close can reach it. It returns false if the
// server is already closing.
func (t *TCP) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ctx.Err() != nil {
		return false
	}

	t.activeConns[conn] = struct{}{}
	return true
}

func (t *TCP) untrack(conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
