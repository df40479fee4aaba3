package fields

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	for _, test := range []struct {
		input   string
		arity   int
		want    Record
		wantErr error
	}{
		{"PS:1111:12", 3, Record{"PS", "1111", "12"}, nil},
		{"0.40:0.00:0.03:26969", 4, Record{"0.40", "0.00", "0.03", "26969"}, nil},
		{"PS:1111", 3, nil, ErrArity},
		{"a:b:c:d", -1, Record{"a", "b", "c", "d"}, nil},
	} {
		t.Run(test.input, func(t *testing.T) {
			got, err := Split(test.input, ":", test.arity)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Split error = %v, want %v", err, test.wantErr)
			}
			if diff := cmp.Diff(got, test.want); diff != "" {
				t.Errorf("unexpected record: got(-)/want(+):\n%s", diff)
			}
		})
	}
}

func TestParseFloatArray(t *testing.T) {
	var a, b float64
	if err := ParseFloatArray([]*float64{&a, &b}, "1.5,.5", ","); err != nil {
		t.Fatal(err)
	}
	if a != 1.5 || b != .5 {
		t.Errorf("got %v, %v", a, b)
	}
	if err := ParseFloatArray([]*float64{&a, &b}, "1.5", ","); !errors.Is(err, ErrArity) {
		t.Errorf("truncated list: got %v, want %v", err, ErrArity)
	}
	if err := ParseFloatArray([]*float64{&a}, "x", ","); !errors.Is(err, ErrField) {
		t.Errorf("bad float: got %v, want %v", err, ErrField)
	}
}

func TestDecoder(t *testing.T) {
	r, err := Split("UPB2:12.0:0.9:1101:1:x", ":", -1)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDecoder(r)
	type result struct {
		Name    string
		Voltage float64
		Current float64
		Ports   []bool
		On      bool
	}
	got := result{
		Name:    d.String(0),
		Voltage: d.Float(1),
		Current: d.Float(2),
		Ports:   d.Bits(3),
		On:      d.Bool(4),
	}
	if err := d.Err(); err != nil {
		t.Fatal(err)
	}
	want := result{"UPB2", 12, 0.9, []bool{true, true, false, true}, true}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("unexpected result: got(-)/want(+):\n%s", diff)
	}

	d.Int(5)
	if !errors.Is(d.Err(), ErrField) {
		t.Errorf("Int(x): got %v, want %v", d.Err(), ErrField)
	}
	if d.Float(1) != 0 {
		t.Error("read after error returned a value")
	}

	d = NewDecoder(r)
	d.Float(10)
	if !errors.Is(d.Err(), ErrArity) {
		t.Errorf("Float(10): got %v, want %v", d.Err(), ErrArity)
	}
}
