package protocol

import (
	"sort"
	"strings"
)

// Attributes is the set of session attributes (cookies) a message carries. Keys
// and values are tokens, keys are unique.
//
// Messages never share an Attributes with their callers, they copy on the way in
// and on the way out.
type Attributes struct {
	values map[string]string
}

func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string]string)}
}

// AttributesOf builds an Attributes from alternating keys and values
func AttributesOf(pairs ...string) (*Attributes, error) {
	if len(pairs)%2 != 0 {
		return nil, invalid(pairs[len(pairs)-1], "attribute has no value")
	}

	attrs := NewAttributes()
	for i := 0; i < len(pairs); i += 2 {
		if _, err := attrs.Add(pairs[i], pairs[i+1]); err != nil {
			return nil, err
		}
	}

	return attrs, nil
}

// DecodeAttributes reads `key=value` lines up to and including the empty line
// that ends the block.
func DecodeAttributes(r *Reader) (*Attributes, error) {
	attrs := NewAttributes()

	for r.HasNextToken() {
		key, err := r.NextToken()
		if err != nil {
			return nil, err
		}

		if err := r.ExpectLiteral("="); err != nil {
			return nil, err
		}

		value, err := r.NextToken()
		if err != nil {
			return nil, err
		}

		attrs.values[key] = value

		if err := r.ExpectLiteral(CRLF); err != nil {
			return nil, err
		}
	}

	if err := r.ExpectLiteral(CRLF); err != nil {
		return nil, err
	}

	return attrs, nil
}

// Clone returns a copy that shares nothing with a
func (a *Attributes) Clone() *Attributes {
	c := &Attributes{values: make(map[string]string, a.Len())}
	if a == nil {
		return c
	}

	for k, v := range a.values {
		c.values[k] = v
	}

	return c
}

// Add sets key to value, replacing any existing value. It returns a so that
// calls can be chained. A nil a gets a new set, which is returned.
func (a *Attributes) Add(key, value string) (*Attributes, error) {
	if a == nil {
		a = NewAttributes()
	}

	if err := checkToken(key, "attribute name"); err != nil {
		return a, err
	}

	if err := checkToken(value, "attribute value"); err != nil {
		return a, err
	}

	a.init()
	a.values[key] = value
	return a, nil
}

// AddAll copies every attribute of other into a, other wins when both have a key
func (a *Attributes) AddAll(other *Attributes) *Attributes {
	if a == nil {
		a = NewAttributes()
	}

	if other == nil {
		return a
	}

	a.init()
	for k, v := range other.values {
		a.values[k] = v
	}

	return a
}

func (a *Attributes) init() {
	if a.values == nil {
		a.values = make(map[string]string)
	}
}

// Get returns the value of key, ok is false when there is none
func (a *Attributes) Get(key string) (value string, ok bool) {
	if a == nil {
		return "", false
	}

	value, ok = a.values[key]
	return value, ok
}

// Names returns the keys in ascending order
func (a *Attributes) Names() []string {
	if a == nil {
		return nil
	}

	names := make([]string, 0, len(a.values))
	for k := range a.values {
		names = append(names, k)
	}

	sort.Strings(names)
	return names
}

func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}

	return len(a.values)
}

// Equal compares contents, ordering plays no part
func (a *Attributes) Equal(other *Attributes) bool {
	if a.Len() != other.Len() {
		return false
	}

	if a.Len() == 0 {
		return true
	}

	for k, v := range a.values {
		if ov, ok := other.Get(k); !ok || ov != v {
			return false
		}
	}

	return true
}

// Encode writes every attribute in ascending key order followed by an empty
// line, then flushes w.
func (a *Attributes) Encode(w *Writer) error {
	for _, name := range a.Names() {
		if err := w.WriteLine(name, "=", a.values[name]); err != nil {
			return err
		}
	}

	if err := w.Write(CRLF); err != nil {
		return err
	}

	return w.Flush()
}

func (a *Attributes) String() string {
	pairs := make([]string, 0, a.Len())
	for _, name := range a.Names() {
		pairs = append(pairs, name+"="+a.values[name])
	}

	return "Attrs=[" + strings.Join(pairs, ",") + "]"
}
