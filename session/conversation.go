package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/luma/sprt/protocol"
)

const (
	MsgUnknownApp = "Unexpected function"
	MsgBadInitial = "Bad initial request"
	MsgBadData    = "Bad data."
)

// Recorder is told which application a session runs, once per session. It must
// not block and has no way to fail the session.
type Recorder interface {
	RecordRun(app string)
}

type RecorderFunc func(app string)

func (f RecorderFunc) RecordRun(app string) {
	f(app)
}

// Conversation is everything a connection driver needs to serve one client: the
// first request picks the application, every request after that goes to its
// Machine. Both the blocking and the non-blocking drivers use it so that they
// behave identically on the wire.
type Conversation struct {
	registry *Registry
	recorder Recorder
	machine  *Machine
	app      string
	done     bool
	log      *zap.Logger
}

func NewConversation(registry *Registry, recorder Recorder, log *zap.Logger) *Conversation {
	if log == nil {
		log = zap.NewNop()
	}

	return &Conversation{
		registry: registry,
		recorder: recorder,
		log:      log,
	}
}

// Handle returns the response to req. Once Done returns true the connection
// should be closed after the response is written.
func (c *Conversation) Handle(req *protocol.Request) *protocol.Response {
	if c.done {
		return errorResponse(protocol.NoNextFunction, MsgAlreadyEnded)
	}

	if c.machine == nil {
		initial, err := c.registry.Start(req.Function())
		if err != nil {
			if !errors.Is(err, ErrUnknownApp) {
				c.log.Error("Failed to start application", zap.String("app", req.Function()), zap.Error(err))
			} else {
				c.log.Info("Unknown application", zap.String("app", req.Function()))
			}

			c.done = true
			return errorResponse(protocol.NoNextFunction, MsgUnknownApp)
		}

		c.app = req.Function()
		c.record()
		c.machine = NewMachine(initial, c.log.With(zap.String("app", c.app)))
	}

	resp := c.machine.Handle(req)
	c.done = resp.Terminal()

	return resp
}

// Reject returns the response to a request that could not be decoded and ends
// the conversation.
func (c *Conversation) Reject(err error) *protocol.Response {
	c.done = true

	if c.machine == nil {
		c.log.Info("Bad initial request", zap.Error(err))
		return errorResponse(protocol.NoNextFunction, MsgBadInitial)
	}

	c.log.Info("Bad request", zap.Error(err))
	return errorResponse(protocol.NoNextFunction, MsgBadData)
}

// Done returns true once the last response has been produced
func (c *Conversation) Done() bool {
	return c.done
}

// App returns the application being run, empty until the first request
// resolved one
func (c *Conversation) App() string {
	return c.app
}

func (c *Conversation) record() {
	if c.recorder == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Usage recorder panicked", zap.Any("panic", r))
		}
	}()

	c.recorder.RecordRun(c.app)
}
