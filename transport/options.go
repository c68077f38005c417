package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/luma/sprt/internal/metrics"
	"github.com/luma/sprt/session"
	"github.com/luma/sprt/storage"
)

const (
	DriverBlocking = "blocking"
	DriverAsync    = "async"

	DefaultIdleTimeout    = 20 * time.Second
	DefaultQueryWorkers   = 5
	DefaultMaxMessageSize = 64 << 10

	// MaxAcceptFailures is how many accepts in a row may fail before a
	// server stops accepting
	MaxAcceptFailures = 10

	recordTimeout = time.Second
)

var (
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrAcceptFailed is reported on Server.Err once MaxAcceptFailures accepts
	// in a row have failed
	ErrAcceptFailed = errors.New("too many failed accepts")
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, 0 picks a free one
	Port int

	// Workers is the number of connections the blocking driver serves at
	// once. Defaults to the number of CPUs.
	Workers int

	// QueryWorkers is the number of N4M queries answered at once
	QueryWorkers int

	// IdleTimeout is how long a client has to send each request, and to take
	// each response
	IdleTimeout time.Duration

	// MaxMessageSize is the most a client may send for one request. A client
	// that sends more is disconnected.
	MaxMessageSize int

	// Registry holds the applications clients can run
	Registry *session.Registry

	// Store counts application runs, optional for SPRT servers
	Store storage.Store

	// Metrics is optional
	Metrics *metrics.Metrics

	Log *zap.Logger
}

// Server is implemented by every driver
type Server interface {
	// Start listens and returns once the server is accepting. Cancelling ctx
	// closes the server.
	Start(ctx context.Context) error

	// Addr is the address the server is listening on, nil before Start
	Addr() net.Addr

	// Close stops the server and every connection it is serving
	Close() error

	// Err receives the error that stopped the server from accepting
	// connections. The server still has to be closed.
	Err() <-chan error
}

// NewServer returns the SPRT server for driver
func NewServer(driver string, options Options) (Server, error) {
	switch driver {
	case DriverBlocking:
		return NewTCP(options), nil

	case DriverAsync:
		return NewEventLoop(options), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}

	if o.QueryWorkers < 1 {
		o.QueryWorkers = DefaultQueryWorkers
	}

	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}

	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}

	if o.Registry == nil {
		o.Registry = session.NewRegistry()
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}

// report hands err to whoever watches errs, unless an error is already waiting
func report(errs chan error, err error) {
	select {
	case errs <- err:
	default:
	}
}

func (o Options) addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// newConversation starts the conversation for one connection. Every session it
// starts is counted in the store and the metrics.
func (o Options) newConversation(log *zap.Logger) *session.Conversation {
	recorder := session.RecorderFunc(func(app string) {
		o.Metrics.SessionStarted(app)

		if o.Store == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := o.Store.RecordRun(ctx, app); err != nil {
			log.Warn("Failed to record application run", zap.String("app", app), zap.Error(err))
		}
	})

	return session.NewConversation(o.Registry, recorder, log)
}
