package modbushttp

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type echoSender struct {
	err error
	got []byte
}

func (e *echoSender) Send(adu []byte) ([]byte, error) {
	e.got = adu
	if e.err != nil {
		return nil, e.err
	}
	return append([]byte{0xAA}, adu...), nil
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		password string
		client   string
		sendErr  error
		want     []byte
		wantErr  bool
	}{
		{name: "open", want: []byte{0xAA, 1, 3, 0, 0}},
		{name: "password", password: "hunter2", client: "hunter2", want: []byte{0xAA, 1, 3, 0, 0}},
		{name: "wrong password", password: "hunter2", client: "nope", wantErr: true},
		{name: "remote error", sendErr: errors.New("serial: timeout"), wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sender := &echoSender{err: test.sendErr}
			srv := httptest.NewServer(&Handler{Sender: sender, Password: test.password})
			defer srv.Close()

			c := NewClient(srv.URL, test.client)
			got, err := c.Send([]byte{1, 3, 0, 0})
			if (err != nil) != test.wantErr {
				t.Fatalf("Send() err = %v, wantErr %v", err, test.wantErr)
			}
			if diff := cmp.Diff(got, test.want); diff != "" {
				t.Errorf("unexpected response: got(-)/want(+):\n%s", diff)
			}
			if test.sendErr == nil && !test.wantErr && !bytes.Equal(sender.got, []byte{1, 3, 0, 0}) {
				t.Errorf("forwarded %x", sender.got)
			}
		})
	}
}
