package protocol

import (
	"strings"
)

// CommandRun is the only command a request can carry
const CommandRun = "RUN"

// Request asks the server to run a function with zero or more parameters
type Request struct {
	message
	params []string
}

func NewRequest(function string, params []string, attrs *Attributes) (*Request, error) {
	m, err := newMessage(function, attrs)
	if err != nil {
		return nil, err
	}

	req := &Request{message: m}
	if err := req.SetParams(params); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeRequest(r *Reader) (*Request, error) {
	command, err := r.NextToken()
	if err != nil {
		return nil, err
	}

	if command != CommandRun {
		return nil, invalid(command, "unknown command")
	}

	if err := r.ExpectLiteral(" "); err != nil {
		return nil, err
	}

	function, err := r.NextToken()
	if err != nil {
		return nil, err
	}

	params := make([]string, 0)
	for r.NextMatches(" ") {
		if err := r.Skip(1); err != nil {
			return nil, err
		}

		param, err := r.NextToken()
		if err != nil {
			return nil, err
		}

		params = append(params, param)
	}

	if err := r.ExpectLiteral(CRLF); err != nil {
		return nil, err
	}

	attrs, err := DecodeAttributes(r)
	if err != nil {
		return nil, err
	}

	return &Request{
		message: message{function: function, attrs: attrs},
		params:  params,
	}, nil
}

func (r *Request) Type() Type {
	return TypeRequest
}

// Params returns a copy of the parameters
func (r *Request) Params() []string {
	return append(make([]string, 0, len(r.params)), r.params...)
}

func (r *Request) SetParams(params []string) error {
	for _, p := range params {
		if err := checkToken(p, "parameter"); err != nil {
			return err
		}
	}

	r.params = append(make([]string, 0, len(params)), params...)
	return nil
}

func (r *Request) Encode(w *Writer) error {
	return r.encode(w, func() error {
		if err := w.Write(string(TypeRequest), " ", CommandRun, " ", r.function); err != nil {
			return err
		}

		for _, p := range r.params {
			if err := w.Write(" ", p); err != nil {
				return err
			}
		}

		return w.Write(CRLF)
	})
}

func (r *Request) Equal(other Message) bool {
	o, ok := other.(*Request)
	if !ok || o == nil {
		return false
	}

	if !r.message.equal(&o.message) || len(r.params) != len(o.params) {
		return false
	}

	for i := range r.params {
		if r.params[i] != o.params[i] {
			return false
		}
	}

	return true
}

func (r *Request) String() string {
	return "REQUEST: RUN " + strings.Join(append([]string{r.function}, r.params...), " ") +
		" " + r.attrs.String()
}
