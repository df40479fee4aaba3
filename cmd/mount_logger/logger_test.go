package main

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStatusPoint(t *testing.T) {
	var status map[string]interface{}
	if err := json.Unmarshal([]byte(`{
		"driver": "eq500x",
		"ra": 5.5,
		"dec": -10.25,
		"track_state": "SLEWING",
		"pier_side": "EAST",
		"parked": false,
		"ports": [{"on": true}, {"on": false}]
	}`), &status); err != nil {
		t.Fatal(err)
	}
	tags, fields := statusPoint(status)
	if diff := cmp.Diff(tags, map[string]string{
		"driver":      "eq500x",
		"track_state": "SLEWING",
		"pier_side":   "EAST",
	}); diff != "" {
		t.Errorf("unexpected tags: got(-)/want(+):\n%s", diff)
	}
	if diff := cmp.Diff(fields, map[string]interface{}{
		"ra":         5.5,
		"dec":        -10.25,
		"parked":     false,
		"ports.0.on": true,
		"ports.1.on": false,
	}); diff != "" {
		t.Errorf("unexpected fields: got(-)/want(+):\n%s", diff)
	}
}
