package n4m

import (
	"fmt"
	"strings"
	"time"
)

const (
	Version = 2

	MaxMsgID        = 0xFF
	MaxNameLength   = 0xFF
	MaxApplications = 0xFF
	MaxCount        = 0xFFFF
	MaxTimestamp    = 0xFFFFFFFF

	// MaxDatagram is larger than any valid message
	MaxDatagram = 65507
)

type Message interface {
	MsgID() uint8
	Encode() ([]byte, error)
	String() string
}

// Query asks for the usage of a business's applications
type Query struct {
	ID       uint8
	Business string
}

func NewQuery(id uint8, business string) (*Query, error) {
	if err := checkName(business, "business name"); err != nil {
		return nil, err
	}

	return &Query{ID: id, Business: business}, nil
}

func (q *Query) MsgID() uint8 {
	return q.ID
}

func (q *Query) Encode() ([]byte, error) {
	if err := checkName(q.Business, "business name"); err != nil {
		return nil, err
	}

	w := &bitWriter{}
	writeHeader(w, false, NoError, q.ID)
	w.lpString(q.Business)

	return w.bytes(), nil
}

func (q *Query) String() string {
	return fmt.Sprintf("N4M QUERY: MsgID=%d, BusName=%s", q.ID, q.Business)
}

// ApplicationEntry is how often one application has been run
type ApplicationEntry struct {
	Name  string
	Count int
}

func NewApplicationEntry(name string, count int) (ApplicationEntry, error) {
	e := ApplicationEntry{Name: name, Count: count}
	return e, e.validate()
}

func (e ApplicationEntry) validate() error {
	if e.Count < 0 || e.Count > MaxCount {
		return newError(BadMsg, "use count %d out of range", e.Count)
	}

	return checkName(e.Name, "application name")
}

func (e ApplicationEntry) String() string {
	return fmt.Sprintf("%s(%d)", e.Name, e.Count)
}

// Response answers a Query. A Response with an ErrorCode other than NoError
// carries no applications.
type Response struct {
	ErrorCode    ErrorCode
	ID           uint8
	Timestamp    uint32
	Applications []ApplicationEntry
}

func NewResponse(code ErrorCode, id uint8, timestamp int64, apps []ApplicationEntry) (*Response, error) {
	if timestamp < 0 || timestamp > MaxTimestamp {
		return nil, newError(BadMsg, "timestamp %d out of range", timestamp)
	}

	resp := &Response{
		ErrorCode:    code,
		ID:           id,
		Timestamp:    uint32(timestamp),
		Applications: append([]ApplicationEntry(nil), apps...),
	}

	return resp, resp.validate()
}

// ErrorResponse answers a message that could not be served
func ErrorResponse(code ErrorCode, id uint8) *Response {
	return &Response{ErrorCode: code, ID: id}
}

func (r *Response) validate() error {
	if r.ErrorCode > SystemError {
		return newError(IncorrectHeader, "invalid error code %d", r.ErrorCode)
	}

	if len(r.Applications) > MaxApplications {
		return newError(BadMsg, "%d applications is too many", len(r.Applications))
	}

	for _, app := range r.Applications {
		if err := app.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (r *Response) MsgID() uint8 {
	return r.ID
}

func (r *Response) Time() time.Time {
	return time.Unix(int64(r.Timestamp), 0)
}

func (r *Response) Encode() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	w := &bitWriter{}
	writeHeader(w, true, r.ErrorCode, r.ID)
	w.uint32(r.Timestamp)
	w.uint8(uint8(len(r.Applications)))

	for _, app := range r.Applications {
		w.uint16(uint16(app.Count))
		w.lpString(app.Name)
	}

	return w.bytes(), nil
}

func (r *Response) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "N4M RESPONSE: MsgID=%d, Error=%s, Time=%s:",
		r.ID, r.ErrorCode, r.Time().UTC().Format(time.RFC3339))

	for _, app := range r.Applications {
		sb.WriteString(" ")
		sb.WriteString(app.String())
	}

	return sb.String()
}

// Decode parses one datagram. Every error it returns is an *Error.
func Decode(data []byte) (Message, error) {
	r := &bitReader{data: data}

	version, err := r.bits(4)
	if err != nil {
		return nil, newError(BadMsgSize, "header too short")
	}

	isResponse, err := r.bits(1)
	if err != nil {
		return nil, newError(BadMsgSize, "header too short")
	}

	code, err := r.bits(3)
	if err != nil {
		return nil, newError(BadMsgSize, "header too short")
	}

	id, err := r.uint8()
	if err != nil {
		return nil, newError(BadMsgSize, "header too short")
	}

	if version != Version {
		return nil, newError(IncorrectHeader, "bad version %d", version)
	}

	if isResponse == 1 {
		return decodeResponse(r, id, int(code))
	}

	return decodeQuery(r, id, int(code))
}

func decodeQuery(r *bitReader, id uint8, code int) (*Query, error) {
	if code != int(NoError) {
		return nil, newError(IncorrectHeader, "query can't carry error code %d", code)
	}

	name, err := r.lpString()
	if err != nil {
		return nil, newError(BadMsgSize, "business name shorter than its length")
	}

	if r.hasMore() {
		return nil, newError(BadMsgSize, "business name longer than its length")
	}

	if !isASCII(name) {
		return nil, newError(BadMsg, "business name has invalid characters")
	}

	return &Query{ID: id, Business: string(name)}, nil
}

func decodeResponse(r *bitReader, id uint8, code int) (*Response, error) {
	timestamp, err := r.uint32()
	if err != nil {
		return nil, newError(BadMsgSize, "response too short")
	}

	count, err := r.uint8()
	if err != nil {
		return nil, newError(BadMsgSize, "response too short")
	}

	apps := make([]ApplicationEntry, 0, count)
	for i := 0; i < int(count); i++ {
		uses, err := r.uint16()
		if err != nil {
			return nil, newError(BadMsgSize, "response too short")
		}

		name, err := r.lpString()
		if err != nil {
			return nil, newError(BadMsgSize, "response too short")
		}

		if !isASCII(name) {
			return nil, newError(BadMsg, "application name has invalid characters")
		}

		apps = append(apps, ApplicationEntry{Name: string(name), Count: int(uses)})
	}

	if r.hasMore() {
		return nil, newError(BadMsgSize, "unexpected extra data")
	}

	errCode, err := ParseErrorCode(code)
	if err != nil {
		return nil, err
	}

	return &Response{
		ErrorCode:    errCode,
		ID:           id,
		Timestamp:    timestamp,
		Applications: apps,
	}, nil
}

func writeHeader(w *bitWriter, isResponse bool, code ErrorCode, id uint8) {
	w.bits(Version, 4)

	if isResponse {
		w.bits(1, 1)
	} else {
		w.bits(0, 1)
	}

	w.bits(uint32(code), 3)
	w.uint8(id)
}

func checkName(name string, what string) error {
	if len(name) > MaxNameLength {
		return newError(BadMsg, "%s too long", what)
	}

	if !isASCII([]byte(name)) {
		return newError(BadMsg, "%s has invalid characters", what)
	}

	return nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c > 0x7F {
			return false
		}
	}

	return true
}
