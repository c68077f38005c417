package protocol

import (
	"fmt"
)

type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

func ParseStatus(tok string) (Status, error) {
	switch Status(tok) {
	case StatusOK, StatusError:
		return Status(tok), nil

	default:
		return "", invalid(tok, "unknown status")
	}
}

// Response tells the client how its request went, which function to call next
// and a human readable message.
type Response struct {
	message
	status Status
	text   string
}

func NewResponse(status Status, function string, text string, attrs *Attributes) (*Response, error) {
	m, err := newMessage(function, attrs)
	if err != nil {
		return nil, err
	}

	resp := &Response{message: m}

	if err := resp.SetStatus(status); err != nil {
		return nil, err
	}

	if err := resp.SetMessage(text); err != nil {
		return nil, err
	}

	return resp, nil
}

func decodeResponse(r *Reader) (*Response, error) {
	tok, err := r.NextToken()
	if err != nil {
		return nil, err
	}

	status, err := ParseStatus(tok)
	if err != nil {
		return nil, err
	}

	if err := r.ExpectLiteral(" "); err != nil {
		return nil, err
	}

	function, err := r.NextToken()
	if err != nil {
		return nil, err
	}

	if err := r.ExpectLiteral(" "); err != nil {
		return nil, err
	}

	text, err := r.ReadToDelimiter(CRLF)
	if err != nil {
		return nil, err
	}

	if !IsPrintable(text) {
		return nil, invalid(text, "message contains unprintable characters")
	}

	if err := r.ExpectLiteral(CRLF); err != nil {
		return nil, err
	}

	attrs, err := DecodeAttributes(r)
	if err != nil {
		return nil, err
	}

	return &Response{
		message: message{function: function, attrs: attrs},
		status:  status,
		text:    text,
	}, nil
}

func (r *Response) Type() Type {
	return TypeResponse
}

func (r *Response) Status() Status {
	return r.status
}

func (r *Response) SetStatus(status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}

	r.status = status
	return nil
}

func (r *Response) Message() string {
	return r.text
}

func (r *Response) SetMessage(text string) error {
	if !IsPrintable(text) {
		return invalid(text, "message contains unprintable characters")
	}

	r.text = text
	return nil
}

// Terminal returns true if the response ends the session
func (r *Response) Terminal() bool {
	return r.function == NoNextFunction
}

func (r *Response) Encode(w *Writer) error {
	return r.encode(w, func() error {
		return w.WriteLine(string(TypeResponse), " ", string(r.status), " ", r.function, " ", r.text)
	})
}

func (r *Response) Equal(other Message) bool {
	o, ok := other.(*Response)
	if !ok || o == nil {
		return false
	}

	return r.message.equal(&o.message) && r.status == o.status && r.text == o.text
}

func (r *Response) String() string {
	return fmt.Sprintf("RESPONSE: %s %s %s %s", r.status, r.function, r.text, r.attrs)
}
