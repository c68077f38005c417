//go:build linux

package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/sprt/protocol"
	"github.com/luma/sprt/session"
)

const (
	// ReadBufferSize is how much the event loop reads from a connection at once
	ReadBufferSize = 1024

	maxEvents = 128

	// tick bounds how late an idle connection is noticed
	tick = 250 * time.Millisecond
)

const (
	eventsRead  uint32 = syscall.EPOLLIN
	eventsWrite uint32 = syscall.EPOLLOUT
)

// EventLoop is the non-blocking driver: one goroutine multiplexes every
// connection over epoll. Each connection still handles one request at a time,
// the next message is not looked at until the previous response is written.
type EventLoop struct {
	opts Options

	poller   *Poller
	listener net.Listener
	file     *os.File
	lfd      int

	// conns is only touched by the loop goroutine
	conns map[int]*loopConn

	accepting bool
	failures  int
	errs      chan error

	closeOnce sync.Once
	stop      chan struct{}
	stopped   chan struct{}

	log *zap.Logger
}

// loopConn is one connection's state between events
type loopConn struct {
	fd       int
	log      *zap.Logger
	deframer *protocol.Deframer
	conv     *session.Conversation

	// out holds the part of the current response that is not written yet
	out []byte

	// deadline is when the client must have sent its next request by, or
	// taken the whole of out by while a response is pending
	deadline time.Time
}

func NewEventLoop(options Options) *EventLoop {
	options = options.withDefaults()

	return &EventLoop{
		opts:    options,
		conns:   make(map[int]*loopConn),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		errs:    make(chan error, 1),
		log:     options.Log.Named("eventloop"),
	}
}

func (e *EventLoop) Start(ctx context.Context) (err error) {
	listener, err := reuseport.Listen("tcp", e.opts.addr())
	if err != nil {
		return err
	}

	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		listener.Close()
		return errors.New("listener is not a TCP listener")
	}

	// File returns a duplicate of the listening socket that the runtime's own
	// poller knows nothing about
	file, err := tcpListener.File()
	if err != nil {
		listener.Close()
		return err
	}

	// Fd puts the socket back into blocking mode, so undo that afterwards
	lfd := int(file.Fd())
	if err := syscall.SetNonblock(lfd, true); err != nil {
		return multierr.Combine(err, file.Close(), listener.Close())
	}

	poller, err := MakePoller()
	if err != nil {
		return multierr.Combine(err, file.Close(), listener.Close())
	}

	if err := poller.Add(lfd, eventsRead); err != nil {
		return multierr.Combine(err, poller.Close(), file.Close(), listener.Close())
	}

	e.listener, e.file, e.lfd, e.poller = listener, file, lfd, poller
	e.accepting = true

	e.log.Info("Starting event loop", zap.String("addr", listener.Addr().String()))

	go func() {
		defer close(e.stopped)
		e.run()
	}()

	go func() {
		select {
		case <-ctx.Done():
			e.Close()
		case <-e.stopped:
		}
	}()

	return nil
}

func (e *EventLoop) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}

	return e.listener.Addr()
}

func (e *EventLoop) Err() <-chan error {
	return e.errs
}

// Close stops the loop, closing the listener and every connection
func (e *EventLoop) Close() (err error) {
	e.closeOnce.Do(func() {
		if e.poller == nil {
			return
		}

		e.log.Info("Stopping event loop")
		close(e.stop)

		if werr := e.poller.Wake(); werr != nil {
			err = werr
		}

		<-e.stopped

		err = multierr.Combine(err, e.file.Close(), e.listener.Close(), e.poller.Close())
		e.log.Info("Event loop stopped")
	})

	return err
}

func (e *EventLoop) run() {
	events := make([]syscall.EpollEvent, maxEvents)
	buf := make([]byte, ReadBufferSize)

	defer func() {
		for _, c := range e.conns {
			e.closeConn(c)
		}
	}()

	for {
		n, err := e.poller.Wait(events, tick)
		if err != nil {
			e.log.Error("Failed to wait for events", zap.Error(err))
			return
		}

		for _, event := range events[:n] {
			fd := int(event.Fd)

			switch {
			case e.poller.IsWake(fd):
				e.poller.ClearWake()

			case fd == e.lfd:
				e.accept()

			default:
				if c, ok := e.conns[fd]; ok {
					e.handle(c, event.Events, buf)
				}
			}
		}

		select {
		case <-e.stop:
			return
		default:
		}

		e.expire(time.Now())
	}
}

// accept takes every pending connection off the listener
func (e *EventLoop) accept() {
	for e.accepting {
		fd, sa, err := syscall.Accept4(e.lfd, syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC)
		if errors.Is(err, syscall.EAGAIN) {
			return
		}

		if err != nil {
			e.failures++
			e.log.Warn("Failed to accept connection", zap.Int("failures", e.failures), zap.Error(err))

			if e.failures >= MaxAcceptFailures {
				e.log.Error("Too many failed accepts, no longer accepting connections")
				e.accepting = false

				if err := e.poller.Remove(e.lfd); err != nil {
					e.log.Warn("Failed to stop polling listener", zap.Error(err))
				}

				report(e.errs, ErrAcceptFailed)
			}

			continue
		}

		e.failures = 0
		e.opts.Metrics.ConnectionAccepted(DriverAsync)

		log := e.log.With(zap.String("conn", uuid.NewString()), zap.String("remote", sockaddrString(sa)))

		c := &loopConn{
			fd:       fd,
			log:      log,
			deframer: protocol.NewDeframer(),
			conv:     e.opts.newConversation(log),
			deadline: time.Now().Add(e.opts.IdleTimeout),
		}

		if err := e.poller.Add(fd, eventsRead); err != nil {
			log.Warn("Failed to poll connection", zap.Error(err))
			syscall.Close(fd)
			continue
		}

		e.conns[fd] = c
		log.Debug("Serving connection")
	}
}

func (e *EventLoop) handle(c *loopConn, events uint32, buf []byte) {
	if len(c.out) > 0 {
		if events&(syscall.EPOLLOUT|syscall.EPOLLERR|syscall.EPOLLHUP) != 0 {
			e.flush(c)
		}

		return
	}

	if events&(syscall.EPOLLIN|syscall.EPOLLERR|syscall.EPOLLHUP) != 0 {
		e.read(c, buf)
	}
}

// read takes what the client sent and answers the first complete message in it
func (e *EventLoop) read(c *loopConn, buf []byte) {
	n, err := syscall.Read(c.fd, buf)
	if errors.Is(err, syscall.EAGAIN) {
		return
	}

	if err != nil {
		c.log.Debug("Failed to read from connection", zap.Error(err))
		e.closeConn(c)
		return
	}

	if n == 0 {
		c.log.Debug("Client hung up")
		e.closeConn(c)
		return
	}

	e.next(c, buf[:n])
}

// next feeds chunk to the deframer and answers the message it completes, if any
func (e *EventLoop) next(c *loopConn, chunk []byte) {
	if msg := c.deframer.Feed(chunk); msg != nil {
		e.respond(c, msg)
		return
	}

	if c.deframer.Buffered() > e.opts.MaxMessageSize {
		c.log.Info("Request too large", zap.Int("limit", e.opts.MaxMessageSize))
		e.closeConn(c)
	}
}

// respond answers one complete message and starts writing the response
func (e *EventLoop) respond(c *loopConn, msg []byte) {
	start := time.Now()

	var resp *protocol.Response

	req, err := protocol.ReadRequest(protocol.NewBytesReader(msg))
	if err != nil {
		// The message is complete, so running out of input is a grammar
		// failure here too
		resp = c.conv.Reject(err)
	} else {
		resp = c.conv.Handle(req)
	}

	out, err := protocol.Marshal(resp)
	if err != nil {
		c.log.Error("Failed to encode response", zap.Error(err))
		e.closeConn(c)
		return
	}

	e.opts.Metrics.ResponseSent(string(resp.Status()))
	e.opts.Metrics.ObserveHandling(DriverAsync, time.Since(start))

	c.out = out
	c.deadline = time.Now().Add(e.opts.IdleTimeout)
	e.flush(c)
}

// flush writes as much of the pending response as the socket takes. Once it is
// all written the next buffered message is answered, or the connection goes
// back to waiting for input.
func (e *EventLoop) flush(c *loopConn) {
	for len(c.out) > 0 {
		n, err := syscall.Write(c.fd, c.out)
		if errors.Is(err, syscall.EAGAIN) {
			if err := e.poller.Modify(c.fd, eventsWrite); err != nil {
				c.log.Warn("Failed to wait for writability", zap.Error(err))
				e.closeConn(c)
			}

			return
		}

		if err != nil {
			c.log.Info("Failed to write response", zap.Error(err))
			e.closeConn(c)
			return
		}

		c.out = c.out[n:]
	}

	if c.conv.Done() {
		e.closeConn(c)
		return
	}

	if err := e.poller.Modify(c.fd, eventsRead); err != nil {
		c.log.Warn("Failed to wait for input", zap.Error(err))
		e.closeConn(c)
		return
	}

	c.deadline = time.Now().Add(e.opts.IdleTimeout)

	// The client may have sent more than one message in one go
	e.next(c, nil)
}

// expire closes every connection that has waited too long for a request, or
// for the client to take its response
func (e *EventLoop) expire(now time.Time) {
	for _, c := range e.conns {
		if !now.After(c.deadline) {
			continue
		}

		e.opts.Metrics.IdleTimeout(DriverAsync)

		if len(c.out) > 0 {
			c.log.Info("Client stopped reading")
		} else {
			c.log.Info("Client timed out")
		}

		e.closeConn(c)
	}
}

func (e *EventLoop) closeConn(c *loopConn) {
	if _, ok := e.conns[c.fd]; !ok {
		return
	}

	delete(e.conns, c.fd)

	if err := e.poller.Remove(c.fd); err != nil {
		c.log.Debug("Failed to stop polling connection", zap.Error(err))
	}

	if err := syscall.Close(c.fd); err != nil {
		c.log.Debug("Connection did not close cleanly", zap.Error(err))
	}

	c.log.Debug("Connection closed")
}

func sockaddrString(sa syscall.Sockaddr) string {
	switch addr := sa.(type) {
	case *syscall.SockaddrInet4:
		return net.JoinHostPort(net.IP(addr.Addr[:]).String(), strconv.Itoa(addr.Port))

	case *syscall.SockaddrInet6:
		return net.JoinHostPort(net.IP(addr.Addr[:]).String(), strconv.Itoa(addr.Port))

	default:
		return "unknown"
	}
}
