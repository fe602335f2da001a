package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"brickforge.ai/internal/lattice"
)

func TestRequestSchema_Compiles(t *testing.T) {
	if _, err := RequestSchema(); err != nil {
		t.Fatalf("compile: %v", err)
	}
}

func TestDecodeRequest_ValidSamples(t *testing.T) {
	samples := []string{
		`{"type":"ANALYZE","request_id":"r1","units":[{"type":"2x4","x":0,"y":0,"z":0,"color":"red"}],"params":{"support_mode":"window"}}`,
		`{"type":"FILL","params":{"bounds":{"min":[0,0,0],"max":[2,2,2]},"archetype":"1x1","color":"blue"}}`,
		`{"type":"ARRAY","units":[{"type":"1x1","x":0,"y":0,"z":0}],"params":{"counts":{"x":3,"y":1,"z":1},"spacing":2}}`,
		`{"type":"RECOLOR","units":[],"params":{"old_color":"red","new_color":"blue"}}`,
		`{"type":"IMPORT_LDRAW","params":{"content":"1 4 0 0 0 1 0 0 0 1 0 0 0 1 3001.dat"}}`,
		`{"type":"EXPORT","name":"tower","units":[{"type":"1x1","x":0,"y":0,"z":0,"rotation":90,"scale":2}],"params":{"format":"3mf"}}`,
		`{"type":"MIRROR","units":[{"type":"1x1","x":1,"y":0,"z":0}],"params":{"axis":"x","center":0,"combine":true}}`,
	}
	for _, s := range samples {
		if _, err := DecodeRequest([]byte(s)); err != nil {
			t.Fatalf("DecodeRequest(%s): %v", s, err)
		}
	}
}

func TestDecodeRequest_RejectsMalformed(t *testing.T) {
	samples := []string{
		`not json`,
		`{"units":[]}`,
		`{"type":"EXPLODE_ALL"}`,
		`{"type":"ANALYZE","units":[{"type":"2x4","x":0.5,"y":0,"z":0}]}`,
		`{"type":"ANALYZE","units":[{"x":0,"y":0,"z":0}]}`,
		`{"type":"FILL","params":{}}`,
		`{"type":"FILL","params":{"bounds":{"min":[0,0],"max":[1,1,1]}}}`,
		`{"type":"RECOLOR","params":{"old_color":"red"}}`,
		`{"type":"ANALYZE","extra":true}`,
		`{"type":"ANALYZE","params":{"angel":90}}`,
	}
	for _, s := range samples {
		_, err := DecodeRequest([]byte(s))
		var bad *BadRequestError
		if !errors.As(err, &bad) {
			t.Fatalf("DecodeRequest(%s) err=%v want bad request", s, err)
		}
	}
}

func TestDecodeRequest_Fields(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"type":"ROTATE","units":[{"id":"u1","type":"2x2","x":1,"y":2,"z":3,"color":"red","rotation":1}],"params":{"angle":90}}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	want := []lattice.Unit{{ID: "u1", Archetype: "2x2", X: 1, Y: 2, Z: 3, Color: "red", Rotation: 1}}
	if diff := cmp.Diff(want, req.Units); diff != "" {
		t.Fatalf("units (-want +got):\n%s", diff)
	}
	if req.Params.Angle != 90 || req.ProtocolVersion != Version {
		t.Fatalf("params=%+v version=%q", req.Params, req.ProtocolVersion)
	}
}

func TestRequestTypes_MatchSchemaEnum(t *testing.T) {
	for _, typ := range RequestTypes {
		if !strings.Contains(requestSchemaJSON, `"`+typ+`"`) {
			t.Fatalf("schema missing type %s", typ)
		}
	}
	if len(RequestTypes) != 19 {
		t.Fatalf("types=%d", len(RequestTypes))
	}
}
