package session

import (
	"github.com/luma/sprt/protocol"
)

// Handler runs a step for a request that carried exactly as many parameters as
// the handler was registered for. params is a copy of the request's parameters.
//
// A returned error is a fault in the handler, the session ends with a generic
// error and the client never sees the error itself.
type Handler func(req *protocol.Request, params []string) (StepResult, error)

// StepResult is what a handler produces: the step to move to, nil to end the
// session, and the response to send.
type StepResult struct {
	Next     Step
	Response *protocol.Response
}

// Step is one named point in a conversation between a client and an application.
//
// Implementations must be comparable, the Machine compares the current step to
// the next one to decide whether a transition happened. Pointer types are.
type Step interface {
	// Name is the function the client calls to run this step
	Name() string

	// Prompt is shown to the client before it knows what to send
	Prompt() string

	// Handler returns the handler for requests with arity parameters
	Handler(arity int) (Handler, bool)
}

// Enterer is implemented by steps that want to know when they become current
type Enterer interface {
	OnEnter()
}

// Exiter is implemented by steps that want to know when they stop being current
type Exiter interface {
	OnExit()
}

// BasicStep is a Step assembled from options, see NewStep
type BasicStep struct {
	name     string
	prompt   func() string
	handlers map[int]Handler
	onEnter  func()
	onExit   func()
}

type StepOption func(*BasicStep)

// WithHandler registers h for requests carrying arity parameters
func WithHandler(arity int, h Handler) StepOption {
	return func(s *BasicStep) {
		s.handlers[arity] = h
	}
}

// WithPromptFunc computes the prompt every time it is asked for, for steps whose
// prompt depends on state outside the step
func WithPromptFunc(prompt func() string) StepOption {
	return func(s *BasicStep) {
		s.prompt = prompt
	}
}

func WithOnEnter(fn func()) StepOption {
	return func(s *BasicStep) {
		s.onEnter = fn
	}
}

func WithOnExit(fn func()) StepOption {
	return func(s *BasicStep) {
		s.onExit = fn
	}
}

func NewStep(name string, prompt string, opts ...StepOption) *BasicStep {
	s := &BasicStep{
		name:     name,
		prompt:   func() string { return prompt },
		handlers: make(map[int]Handler),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *BasicStep) Name() string {
	return s.name
}

func (s *BasicStep) Prompt() string {
	return s.prompt()
}

func (s *BasicStep) Handler(arity int) (Handler, bool) {
	h, ok := s.handlers[arity]
	return h, ok
}

func (s *BasicStep) OnEnter() {
	if s.onEnter != nil {
		s.onEnter()
	}
}

func (s *BasicStep) OnExit() {
	if s.onExit != nil {
		s.onExit()
	}
}

// Transition moves to next, telling the client to call it
func Transition(next Step, attrs *protocol.Attributes) (StepResult, error) {
	resp, err := protocol.NewResponse(protocol.StatusOK, next.Name(), Sanitize(next.Prompt()), attrs)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{Next: next, Response: resp}, nil
}

// End finishes the session with a final message
func End(status protocol.Status, message string, attrs *protocol.Attributes) (StepResult, error) {
	resp, err := protocol.NewResponse(status, protocol.NoNextFunction, Sanitize(message), attrs)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{Response: resp}, nil
}

// Retry stays on current, telling the client what was wrong
func Retry(current Step, message string) (StepResult, error) {
	resp, err := protocol.NewResponse(protocol.StatusError, current.Name(), Sanitize(message), nil)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{Next: current, Response: resp}, nil
}

// Sanitize replaces every byte that can not appear in a response message with '?'
func Sanitize(message string) string {
	if protocol.IsPrintable(message) {
		return message
	}

	b := []byte(message)
	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			b[i] = '?'
		}
	}

	return string(b)
}
