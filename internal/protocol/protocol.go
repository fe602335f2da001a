package protocol

import "encoding/json"

const Version = "1.0"

// Request types.
const (
	TypeAnalyze         = "ANALYZE"
	TypeCheck           = "CHECK"
	TypeStructure       = "STRUCTURE"
	TypeSymmetry        = "SYMMETRY"
	TypeHollow          = "HOLLOW"
	TypeMeasure         = "MEASURE"
	TypeRotate          = "ROTATE"
	TypeScale           = "SCALE"
	TypeMirror          = "MIRROR"
	TypeExplode         = "EXPLODE"
	TypeRecolor         = "RECOLOR"
	TypeRandomizeColors = "RANDOMIZE_COLORS"
	TypeFill            = "FILL"
	TypeArray           = "ARRAY"
	TypeRoof            = "ROOF"
	TypeInstructions    = "INSTRUCTIONS"
	TypeBuildOrder      = "BUILD_ORDER"
	TypeImportLDraw     = "IMPORT_LDRAW"
	TypeExport          = "EXPORT"

	// TypeResult tags every response.
	TypeResult = "RESULT"

	// Session handshake over WebSocket.
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
)

// RequestTypes lists every accepted request type in schema order.
var RequestTypes = []string{
	TypeAnalyze, TypeCheck, TypeStructure, TypeSymmetry, TypeHollow, TypeMeasure,
	TypeRotate, TypeScale, TypeMirror, TypeExplode, TypeRecolor, TypeRandomizeColors,
	TypeFill, TypeArray, TypeRoof, TypeInstructions, TypeBuildOrder, TypeImportLDraw,
	TypeExport,
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
