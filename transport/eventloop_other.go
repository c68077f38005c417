//go:build !linux

package transport

import (
	"context"
	"errors"
	"net"
)

// ErrUnsupported is returned by EventLoop.Start where epoll is not available
var ErrUnsupported = errors.New("the async driver needs epoll, use the blocking driver")

// ReadBufferSize is how much the event loop reads from a connection at once
const ReadBufferSize = 1024

type EventLoop struct{}

func NewEventLoop(options Options) *EventLoop {
	return &EventLoop{}
}

func (e *EventLoop) Start(ctx context.Context) error {
	return ErrUnsupported
}

func (e *EventLoop) Addr() net.Addr {
	return nil
}

func (e *EventLoop) Close() error {
	return nil
}

func (e *EventLoop) Err() <-chan error {
	return nil
}
