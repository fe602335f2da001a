// Package ldraw imports placed parts from LDraw model text (.ldr/.mpd).
//
// Only line type 1 (sub-file reference) is read. Positions are converted from
// LDraw units (20 per stud, 24 per brick layer, -Y up) to lattice anchors and
// rounded; rotations are kept only when they are quarter turns about the
// vertical axis.
package ldraw

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
)

const (
	StudLDU  = 20.0
	LayerLDU = 24.0
)

// DefaultParts maps LDraw part files to archetype ids.
var DefaultParts = map[string]string{
	"3005.dat": "1x1", "3004.dat": "1x2", "3622.dat": "1x3", "3010.dat": "1x4",
	"3009.dat": "1x6", "3008.dat": "1x8",
	"3003.dat": "2x2", "3002.dat": "2x3", "3001.dat": "2x4",
	"2456.dat": "2x6", "3007.dat": "2x8", "3832.dat": "2x10",
	"3024.dat": "1x1_flat", "3023.dat": "1x2_flat", "3022.dat": "2x2_flat", "3020.dat": "2x4_flat",
	"4073.dat": "1x1_round", "3941.dat": "2x2_round",
	"3040.dat": "1x2_slope", "3039.dat": "2x2_slope", "3037.dat": "2x4_slope",
	"4589.dat": "1x1_cone", "553.dat": "2x2_dome",
}

// DefaultColors maps LDraw color codes to catalog color names.
var DefaultColors = map[int]string{
	0: "black", 1: "blue", 2: "green", 3: "dark_green", 4: "red",
	5: "pink", 6: "brown", 7: "light_gray", 8: "dark_gray",
	9: "cyan", 10: "lime", 11: "cyan", 12: "red",
	14: "yellow", 15: "white", 19: "tan", 25: "orange",
	26: "magenta", 28: "tan", 33: "purple", 71: "light_gray", 72: "dark_gray",
	320: "dark_red", 379: "sand_blue",
}

// ColorMain is LDraw's inherited color; it resolves to Options.DefaultColor.
const ColorMain = 16

type Options struct {
	Parts        map[string]string
	Colors       map[int]string
	DefaultColor string
	Limit        int
}

type Skip struct {
	Line   int    `json:"line"`
	Part   string `json:"part,omitempty"`
	Reason string `json:"reason"`
}

type Result struct {
	Units         []lattice.Unit `json:"units"`
	Lines         int            `json:"lines"`
	Parts         int            `json:"parts"`
	Skipped       []Skip         `json:"skipped,omitempty"`
	UnknownColors int            `json:"unknown_colors"`
}

// Parse reads LDraw text from r. Unknown parts are skipped and reported;
// unknown colors fall back to the default color and are counted.
func Parse(r io.Reader, opts Options) (Result, error) {
	if opts.Parts == nil {
		opts.Parts = DefaultParts
	}
	if opts.Colors == nil {
		opts.Colors = DefaultColors
	}
	if opts.DefaultColor == "" {
		opts.DefaultColor = "red"
	}
	if opts.Limit <= 0 {
		opts.Limit = lattice.MaxUnits
	}

	var (
		res      Result
		nonBlank int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		res.Lines++
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 {
			nonBlank++
		}
		if len(fields) == 0 || fields[0] != "1" {
			continue
		}
		res.Parts++
		if len(fields) < 15 {
			res.Skipped = append(res.Skipped, Skip{Line: res.Lines, Reason: "truncated part reference"})
			continue
		}
		part := strings.ToLower(strings.ReplaceAll(strings.Join(fields[14:], " "), "\\", "/"))
		if i := strings.LastIndexByte(part, '/'); i >= 0 {
			part = part[i+1:]
		}

		nums, err := parseFloats(fields[1:14])
		if err != nil {
			res.Skipped = append(res.Skipped, Skip{Line: res.Lines, Part: part, Reason: err.Error()})
			continue
		}
		arch, ok := opts.Parts[part]
		if !ok {
			res.Skipped = append(res.Skipped, Skip{Line: res.Lines, Part: part, Reason: "unknown part"})
			continue
		}
		if len(res.Units) >= opts.Limit {
			return Result{}, fault.Validationf("import_ldraw", "more than %d parts", opts.Limit)
		}

		x, y, z := math.Round(nums[1]/StudLDU), math.Round(nums[3]/StudLDU), math.Round(-nums[2]/LayerLDU)
		if !inRange(x) || !inRange(y) || !inRange(z) {
			res.Skipped = append(res.Skipped, Skip{Line: res.Lines, Part: part, Reason: "position out of range"})
			continue
		}

		code := -1
		if math.Abs(nums[0]) <= math.MaxInt32 {
			code = int(nums[0])
		}
		color := opts.DefaultColor
		if code != ColorMain {
			if c, ok := opts.Colors[code]; ok {
				color = c
			} else {
				res.UnknownColors++
			}
		}

		res.Units = append(res.Units, lattice.Unit{
			ID:        uuid.NewString(),
			Archetype: arch,
			X:         int(x),
			Y:         int(y),
			Z:         int(z),
			Color:     color,
			Rotation:  quarterTurns(nums[4:13]),
		})
	}
	if err := sc.Err(); err != nil {
		return Result{}, fault.IO("import_ldraw", err)
	}
	if nonBlank == 0 {
		return Result{}, fault.Validationf("import_ldraw", "no LDraw content provided")
	}
	return res, nil
}

func inRange(v float64) bool { return v >= -lattice.MaxCoord && v <= lattice.MaxCoord }

func ParseString(s string, opts Options) (Result, error) {
	return Parse(strings.NewReader(s), opts)
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite number %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// quarterTurns reads a row-major 3x3 LDraw matrix. LDraw (x, z) maps to
// lattice (X, Y), so a rotation about LDraw -Y by phi has a = cos(phi) and
// c = -sin(phi) in lattice terms.
func quarterTurns(m []float64) int {
	const eps = 1e-3
	near := func(v, want float64) bool { return math.Abs(v-want) < eps }
	if !near(m[4], 1) || !near(m[1], 0) || !near(m[3], 0) || !near(m[5], 0) || !near(m[7], 0) {
		return 0
	}
	a, c := m[0], m[2]
	switch {
	case near(a, 1) && near(c, 0):
		return 0
	case near(a, 0) && near(c, -1):
		return 1
	case near(a, -1) && near(c, 0):
		return 2
	case near(a, 0) && near(c, 1):
		return 3
	}
	return 0
}
