package ldraw

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"brickforge.ai/internal/fault"
)

const sample = `0 Small wall
0 Name: wall.ldr
0 Author: test

1 4 0 0 0 1 0 0 0 1 0 0 0 1 3001.dat
1 1 40 -24 20 0 0 -1 0 1 0 1 0 0 3005.dat
1 16 -20 -48 0 -1 0 0 0 1 0 0 0 -1 parts\3003.DAT
1 999 0 0 0 1 0 0 0 1 0 0 0 1 3001.dat
1 4 0 0 0 1 0 0 0 1 0 0 0 1 99999.dat
1 4 0 0 0 1 0 0 0 1 0 0 0
2 24 0 0 0 10 0 0
`

func TestParse_SampleModel(t *testing.T) {
	res, err := ParseString(sample, Options{DefaultColor: "white"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Lines != 11 || res.Parts != 6 {
		t.Fatalf("lines=%d parts=%d", res.Lines, res.Parts)
	}
	if len(res.Units) != 4 {
		t.Fatalf("units=%d want 4", len(res.Units))
	}
	u := res.Units[0]
	if u.Archetype != "2x4" || u.Color != "red" || u.X != 0 || u.Y != 0 || u.Z != 0 || u.Rotation != 0 {
		t.Fatalf("unit0=%+v", u)
	}
	u = res.Units[1]
	if u.Archetype != "1x1" || u.Color != "blue" || u.X != 2 || u.Y != 1 || u.Z != 1 || u.Rotation != 1 {
		t.Fatalf("unit1=%+v", u)
	}
	u = res.Units[2]
	if u.Archetype != "2x2" || u.Color != "white" || u.X != -1 || u.Z != 2 || u.Rotation != 2 {
		t.Fatalf("unit2=%+v", u)
	}
	if res.Units[3].Color != "white" || res.UnknownColors != 1 {
		t.Fatalf("unknown color not defaulted: %+v unknown=%d", res.Units[3], res.UnknownColors)
	}
	if len(res.Skipped) != 2 || res.Skipped[0].Part != "99999.dat" || res.Skipped[0].Reason != "unknown part" || res.Skipped[1].Line != 10 {
		t.Fatalf("skipped=%+v", res.Skipped)
	}
	for _, u := range res.Units {
		if u.ID == "" {
			t.Fatalf("units must carry ids")
		}
	}
}

func TestParse_EmptyContent(t *testing.T) {
	for _, in := range []string{"", "\n  \n"} {
		if _, err := ParseString(in, Options{}); !errors.Is(err, fault.ErrValidation) {
			t.Fatalf("ParseString(%q) err=%v", in, err)
		}
	}
}

func TestParse_LimitRejects(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, "1 4 %d 0 0 1 0 0 0 1 0 0 0 1 3005.dat\n", i*20)
	}
	if _, err := ParseString(b.String(), Options{Limit: 3}); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("err=%v want validation", err)
	}
}

func TestQuarterTurns(t *testing.T) {
	cases := []struct {
		m    []float64
		want int
	}{
		{m: []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, want: 0},
		{m: []float64{0, 0, -1, 0, 1, 0, 1, 0, 0}, want: 1},
		{m: []float64{-1, 0, 0, 0, 1, 0, 0, 0, -1}, want: 2},
		{m: []float64{0, 0, 1, 0, 1, 0, -1, 0, 0}, want: 3},
		// tilted about X: not a lattice rotation
		{m: []float64{1, 0, 0, 0, 0, -1, 0, 1, 0}, want: 0},
	}
	for _, c := range cases {
		if got := quarterTurns(c.m); got != c.want {
			t.Fatalf("quarterTurns(%v)=%d want %d", c.m, got, c.want)
		}
	}
}

func TestParse_SkipsNonFiniteAndFarPositions(t *testing.T) {
	in := strings.Join([]string{
		"1 4 NaN 0 0 1 0 0 0 1 0 0 0 1 3001.dat",
		"1 4 0 -Inf 0 1 0 0 0 1 0 0 0 1 3001.dat",
		"1 4 1e300 0 0 1 0 0 0 1 0 0 0 1 3001.dat",
		"1 1e300 0 0 0 1 0 0 0 1 0 0 0 1 3001.dat",
		"1 4 20 0 0 1 0 0 0 1 0 0 0 1 3001.dat",
	}, "\n")
	res, err := ParseString(in, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Units) != 2 || res.Units[1].X != 1 || res.UnknownColors != 1 {
		t.Fatalf("units=%+v unknown=%d", res.Units, res.UnknownColors)
	}
	if len(res.Skipped) != 3 || res.Skipped[2].Reason != "position out of range" {
		t.Fatalf("skipped=%+v", res.Skipped)
	}
	if !strings.Contains(res.Skipped[0].Reason, "non-finite") {
		t.Fatalf("NaN reason=%q", res.Skipped[0].Reason)
	}
}
