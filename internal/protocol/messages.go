package protocol

import "brickforge.ai/internal/lattice"

// Request is one engine call. Units are the scene the operation reads; Params
// carries the per-type arguments, unused fields are ignored.
type Request struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version,omitempty"`
	RequestID       string         `json:"request_id,omitempty"`
	Name            string         `json:"name,omitempty"`
	Units           []lattice.Unit `json:"units,omitempty"`
	Params          Params         `json:"params,omitempty"`
}

type Params struct {
	// ROTATE / SCALE
	Angle       int     `json:"angle,omitempty"`
	ScaleFactor float64 `json:"scale_factor,omitempty"`

	// SYMMETRY / MIRROR
	Axis    string `json:"axis,omitempty"`
	Center  *int   `json:"center,omitempty"`
	Combine bool   `json:"combine,omitempty"`

	// EXPLODE
	GapFactor *float64 `json:"gap_factor,omitempty"`

	// FILL / ARRAY / ROOF
	Bounds    *BoundsParam `json:"bounds,omitempty"`
	Counts    *CountsParam `json:"counts,omitempty"`
	Spacing   int          `json:"spacing,omitempty"`
	Archetype string       `json:"archetype,omitempty"`
	Color     string       `json:"color,omitempty"`

	// RECOLOR / RANDOMIZE_COLORS / BUILD_ORDER
	OldColor string `json:"old_color,omitempty"`
	NewColor string `json:"new_color,omitempty"`
	Seed     *int64 `json:"seed,omitempty"`
	Style    string `json:"style,omitempty"`

	// ANALYZE / CHECK / STRUCTURE
	SupportMode string `json:"support_mode,omitempty"`

	// EXPORT
	Format    string `json:"format,omitempty"`
	Precision string `json:"precision,omitempty"`

	// IMPORT_LDRAW
	Content string `json:"content,omitempty"`
}

type BoundsParam struct {
	Min [3]int `json:"min"`
	Max [3]int `json:"max"`
}

type CountsParam struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Response answers exactly one Request.
type Response struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	RequestID       string         `json:"request_id,omitempty"`
	For             string         `json:"for"`
	OK              bool           `json:"ok"`
	Code            string         `json:"code,omitempty"`
	Error           string         `json:"error,omitempty"`
	Units           []lattice.Unit `json:"units,omitempty"`
	Findings        any            `json:"findings,omitempty"`
	Result          any            `json:"result,omitempty"`
}

// ExportRef is the result payload of an EXPORT request.
type ExportRef struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	Format    string `json:"format"`
	Vertices  int    `json:"vertices"`
	Triangles int    `json:"triangles"`
	Bytes     int64  `json:"bytes"`
	Degraded  bool   `json:"degraded"`
	Reason    string `json:"degraded_reason,omitempty"`
	Download  string `json:"download"`
}

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	MaxInFlight     int    `json:"max_in_flight,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Catalogs        CatalogDigests `json:"catalogs"`
	MaxUnits        int            `json:"max_units"`
	RequestTypes    []string       `json:"request_types"`
}

type CatalogDigests struct {
	Archetypes DigestRef `json:"archetypes"`
	Colors     DigestRef `json:"colors"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}
