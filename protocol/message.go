package protocol

import (
	"bytes"
)

// Type identifies the kind of message, it's the token that follows the header
type Type string

const (
	TypeRequest  Type = "Q"
	TypeResponse Type = "R"
)

const (
	// Header starts every message
	Header = "SPRT/1.0 "

	// NoNextFunction is the function of a Response that ends the session
	NoNextFunction = "NULL"
)

func ParseType(tok string) (Type, error) {
	switch Type(tok) {
	case TypeRequest, TypeResponse:
		return Type(tok), nil

	default:
		return "", invalid(tok, "unknown message type")
	}
}

type Message interface {
	Type() Type
	Function() string
	Attributes() *Attributes
	Encode(w *Writer) error
	Equal(other Message) bool
	String() string
}

// Decode reads one message of either type
func Decode(r *Reader) (Message, error) {
	return DecodeAs(r, "")
}

// DecodeAs reads one message and fails if it is not of the expected type. An
// empty expected type accepts either.
func DecodeAs(r *Reader, expected Type) (Message, error) {
	typ, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	if expected != "" && typ != expected {
		return nil, invalid(string(typ), "expected message type %s", expected)
	}

	switch typ {
	case TypeRequest:
		return decodeRequest(r)

	default:
		return decodeResponse(r)
	}
}

// ReadRequest reads bytes from the provided Reader and attempts to parse them
// as a SPRT request.
func ReadRequest(r *Reader) (*Request, error) {
	msg, err := DecodeAs(r, TypeRequest)
	if err != nil {
		return nil, err
	}

	return msg.(*Request), nil
}

// ReadResponse reads bytes from the provided Reader and attempts to parse them
// as a SPRT response.
func ReadResponse(r *Reader) (*Response, error) {
	msg, err := DecodeAs(r, TypeResponse)
	if err != nil {
		return nil, err
	}

	return msg.(*Response), nil
}

// Marshal returns the wire encoding of m
func Marshal(m Message) ([]byte, error) {
	var buf bytes.Buffer

	if err := m.Encode(NewWriter(&buf)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func readHeader(r *Reader) (Type, error) {
	if err := r.ExpectLiteral(Header); err != nil {
		return "", err
	}

	tok, err := r.NextToken()
	if err != nil {
		return "", err
	}

	if err := r.ExpectLiteral(" "); err != nil {
		return "", err
	}

	return ParseType(tok)
}

// message holds what requests and responses have in common
type message struct {
	function string
	attrs    *Attributes
}

func newMessage(function string, attrs *Attributes) (message, error) {
	m := message{}

	if err := m.SetFunction(function); err != nil {
		return m, err
	}

	m.SetAttributes(attrs)
	return m, nil
}

func (m *message) Function() string {
	return m.function
}

func (m *message) SetFunction(function string) error {
	if err := checkToken(function, "function"); err != nil {
		return err
	}

	m.function = function
	return nil
}

// Attributes returns a copy of the message's attributes
func (m *message) Attributes() *Attributes {
	return m.attrs.Clone()
}

// SetAttributes stores a copy of attrs, nil means no attributes
func (m *message) SetAttributes(attrs *Attributes) {
	m.attrs = attrs.Clone()
}

func (m *message) equal(other *message) bool {
	return m.function == other.function && m.attrs.Equal(other.attrs)
}

func (m *message) encode(w *Writer, body func() error) error {
	if err := w.Write(Header); err != nil {
		return err
	}

	if err := body(); err != nil {
		return err
	}

	return m.attrs.Encode(w)
}
