package modbus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBytesToBits(t *testing.T) {
	tests := []struct {
		in   []byte
		want []bool
	}{
		{nil, nil},
		{[]byte{0x01}, []bool{true, false, false, false, false, false, false, false}},
		{[]byte{0x80, 0x03}, []bool{
			false, false, false, false, false, false, false, true,
			true, true, false, false, false, false, false, false,
		}},
	}
	for _, test := range tests {
		if diff := cmp.Diff(BytesToBits(test.in), test.want); diff != "" {
			t.Errorf("BytesToBits(%x): got(-)/want(+):\n%s", test.in, diff)
		}
	}
}

func TestNewRTUHandler(t *testing.T) {
	h := NewRTUHandler("/dev/ttyUSB0", 0, 3)
	if h.BaudRate != 19200 || h.SlaveId != 3 || h.Parity != "N" {
		t.Errorf("handler = %d baud, slave %d, parity %q", h.BaudRate, h.SlaveId, h.Parity)
	}
}
