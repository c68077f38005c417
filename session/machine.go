package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/sprt/protocol"
)

const (
	MsgAlreadyEnded   = "App has already exited"
	MsgServerError    = "A server error occurred processing the request."
	MsgBadParamCount  = "Invalid number of parameters. "
	msgUnexpectedFunc = "Unexpected function %s. Expected %s"
)

var ErrNoResponse = errors.New("handler returned no response")

// Machine drives one connection's conversation with an application. It is not
// safe for concurrent use, a connection handles its requests one at a time.
type Machine struct {
	current Step
	log     *zap.Logger
}

// NewMachine starts a conversation at initial, firing its OnEnter hook
func NewMachine(initial Step, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}

	m := &Machine{log: log}
	m.transition(initial)
	return m
}

// Current returns the current step, nil once the session has ended
func (m *Machine) Current() Step {
	return m.current
}

func (m *Machine) Done() bool {
	return m.current == nil
}

// Handle runs req against the current step and returns the response to send.
// It never fails, every problem becomes an ERROR response. The response carries
// every attribute of req, overridden by whatever the step produced.
func (m *Machine) Handle(req *protocol.Request) *protocol.Response {
	next, resp := m.dispatch(req)

	resp.SetAttributes(req.Attributes().AddAll(resp.Attributes()))
	m.transition(next)

	return resp
}

func (m *Machine) dispatch(req *protocol.Request) (Step, *protocol.Response) {
	if m.current == nil {
		return nil, errorResponse(protocol.NoNextFunction, MsgAlreadyEnded)
	}

	name := m.current.Name()
	if req.Function() != name {
		return m.current, errorResponse(name, fmt.Sprintf(msgUnexpectedFunc, req.Function(), name))
	}

	params := req.Params()

	handler, ok := m.current.Handler(len(params))
	if !ok {
		return m.current, errorResponse(name, MsgBadParamCount+m.current.Prompt())
	}

	result, err := m.run(handler, req, params)
	if err == nil && result.Response == nil {
		err = ErrNoResponse
	}

	if err != nil {
		m.log.Error("Step handler failed",
			zap.String("step", name),
			zap.Int("params", len(params)),
			zap.Error(err))

		return nil, errorResponse(protocol.NoNextFunction, MsgServerError)
	}

	return result.Next, result.Response
}

func (m *Machine) run(handler Handler, req *protocol.Request, params []string) (result StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler(req, params)
}

// transition moves to next. Staying on the same step is not a transition and
// fires no hooks.
func (m *Machine) transition(next Step) {
	if next == m.current {
		return
	}

	if exiter, ok := m.current.(Exiter); ok {
		m.hook(m.current, "exit", exiter.OnExit)
	}

	m.current = next

	if enterer, ok := next.(Enterer); ok {
		m.hook(next, "enter", enterer.OnEnter)
	}
}

func (m *Machine) hook(step Step, which string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Step hook panicked",
				zap.String("step", step.Name()),
				zap.String("hook", which),
				zap.Any("panic", r))
		}
	}()

	fn()
}

// errorResponse builds an ERROR response, falling back to a generic server error
// if function or message can't appear on the wire
func errorResponse(function string, message string) *protocol.Response {
	resp, err := protocol.NewResponse(protocol.StatusError, function, Sanitize(message), nil)
	if err != nil {
		resp, _ = protocol.NewResponse(protocol.StatusError, protocol.NoNextFunction, MsgServerError, nil)
	}

	return resp
}
