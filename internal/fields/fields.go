// Package fields parses delimited device replies into typed values.
package fields

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrArity is returned when a record has the wrong number of fields.
	ErrArity = errors.New("unexpected field count")
	// ErrField is returned when a field cannot be parsed.
	ErrField = errors.New("malformed field")
)

// Record is a reply split on its delimiter.
type Record []string

// Split splits record on sep and checks that it has exactly arity fields.
// A negative arity accepts any count.
func Split(record, sep string, arity int) (Record, error) {
	parts := strings.Split(record, sep)
	if arity >= 0 && len(parts) != arity {
		return nil, fmt.Errorf("%w: %q has %d fields, want %d", ErrArity, record, len(parts), arity)
	}
	return Record(parts), nil
}

func ParseFloat(dest *float64, input string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrField, err)
	}
	*dest = f
	return nil
}

func ParseFloatArray(dest []*float64, input, sep string) error {
	parts := strings.Split(input, sep)
	for i, field := range dest {
		if i >= len(parts) {
			return fmt.Errorf("%w: truncated list", ErrArity)
		}
		if err := ParseFloat(field, parts[i]); err != nil {
			return err
		}
	}
	return nil
}

// Decoder reads typed fields out of a Record. The first failure sticks and
// later reads return zero values.
type Decoder struct {
	r   Record
	err error
}

func NewDecoder(r Record) *Decoder {
	return &Decoder{r: r}
}

func (d *Decoder) field(i int) (string, bool) {
	if d.err != nil {
		return "", false
	}
	if i < 0 || i >= len(d.r) {
		d.err = fmt.Errorf("%w: no field %d in %d", ErrArity, i, len(d.r))
		return "", false
	}
	return strings.TrimSpace(d.r[i]), true
}

func (d *Decoder) Float(i int) float64 {
	s, ok := d.field(i)
	if !ok {
		return 0
	}
	var f float64
	if err := ParseFloat(&f, s); err != nil {
		d.err = fmt.Errorf("field %d: %w", i, err)
	}
	return f
}

func (d *Decoder) Int(i int) int {
	s, ok := d.field(i)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		d.err = fmt.Errorf("field %d: %w: %v", i, ErrField, err)
	}
	return n
}

// Bool accepts "0" and "1".
func (d *Decoder) Bool(i int) bool {
	return d.Int(i) != 0
}

// Bits expands a field of '0'/'1' characters, such as "1101".
func (d *Decoder) Bits(i int) []bool {
	s, ok := d.field(i)
	if !ok {
		return nil
	}
	out := make([]bool, len(s))
	for j, c := range s {
		switch c {
		case '0':
		case '1':
			out[j] = true
		default:
			d.err = fmt.Errorf("field %d: %w: %q is not a bit string", i, ErrField, s)
			return nil
		}
	}
	return out
}

func (d *Decoder) String(i int) string {
	s, _ := d.field(i)
	return s
}

func (d *Decoder) Err() error {
	return d.err
}
