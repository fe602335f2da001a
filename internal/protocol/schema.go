package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/request.schema.json
var requestSchemaJSON string

const requestSchemaURL = "https://brickforge.ai/schemas/request.schema.json"

var requestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(requestSchemaURL, requestSchemaJSON)
})

// RequestSchema returns the compiled request schema.
func RequestSchema() (*jsonschema.Schema, error) { return requestSchema() }

// BadRequestError reports a document that failed to parse or validate.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return "bad request: " + e.Msg }

// DecodeRequest parses b and validates it against the request schema. Any
// failure is a *BadRequestError.
func DecodeRequest(b []byte) (Request, error) {
	s, err := requestSchema()
	if err != nil {
		return Request{}, fmt.Errorf("compile request schema: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Request{}, &BadRequestError{Msg: err.Error()}
	}
	if err := s.Validate(doc); err != nil {
		return Request{}, &BadRequestError{Msg: err.Error()}
	}

	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return Request{}, &BadRequestError{Msg: err.Error()}
	}
	if req.ProtocolVersion == "" {
		req.ProtocolVersion = Version
	}
	return req, nil
}
