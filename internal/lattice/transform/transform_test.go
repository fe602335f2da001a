package transform

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
)

func TestRotate_QuarterTurnAboutCentroid(t *testing.T) {
	in := []lattice.Unit{
		{Archetype: "1x1", X: 0, Y: 0},
		{Archetype: "1x1", X: 2, Y: 0, Rotation: 3},
	}
	got, err := Rotate(in, 90)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	want := []lattice.Unit{
		{Archetype: "1x1", X: 1, Y: -1, Rotation: 1},
		{Archetype: "1x1", X: 1, Y: 1, Rotation: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Rotate (-want +got):\n%s", diff)
	}
	if in[0].X != 0 || in[1].Rotation != 3 {
		t.Fatalf("input mutated: %+v", in)
	}
	if _, err := Rotate(in, 45); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("angle 45: err=%v", err)
	}
}

func TestScale_DiscreteFactors(t *testing.T) {
	in := []lattice.Unit{{X: 0}, {X: 2}}
	got, err := Scale(in, 2)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if got[0].X != -1 || got[1].X != 3 || got[0].Scale != 2 {
		t.Fatalf("Scale=%+v", got)
	}
	same, _ := Scale(in, 1)
	if diff := cmp.Diff(in, same); diff != "" {
		t.Fatalf("factor 1 changed units:\n%s", diff)
	}
	if _, err := Scale(in, 1.5); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("1.5: err=%v", err)
	}
}

func TestMirror_AccountsForFootprint(t *testing.T) {
	cat := catalogs.Default()
	in := []lattice.Unit{{Archetype: "1x1"}, {Archetype: "2x4"}, {Archetype: "2x4", Rotation: 1}}
	got, err := Mirror(in, cat, lattice.AxisX, 0)
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if got[0].X != -1 || got[1].X != -2 || got[2].X != -4 {
		t.Fatalf("X mirror=%+v", got)
	}
	got, _ = Mirror(in, cat, lattice.AxisY, 5)
	if got[1].Y != 6 {
		t.Fatalf("Y mirror=%+v", got[1])
	}
	got, _ = Mirror([]lattice.Unit{{Z: 2}}, cat, lattice.AxisZ, 0)
	if got[0].Z != -3 {
		t.Fatalf("Z mirror=%+v", got[0])
	}
	if _, err := Mirror([]lattice.Unit{{Archetype: "nope"}}, cat, lattice.AxisX, 0); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("unknown: err=%v", err)
	}
	if _, err := Mirror(in, cat, lattice.AxisX, lattice.MaxCoord+1); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("center out of range: err=%v", err)
	}
}

func TestExplode_ByLayerRank(t *testing.T) {
	in := []lattice.Unit{{Z: 3}, {Z: 0}, {Z: 1}, {Z: 3}}
	got, err := Explode(in, 2)
	if err != nil {
		t.Fatalf("Explode: %v", err)
	}
	zs := []int{got[0].Z, got[1].Z, got[2].Z, got[3].Z}
	if diff := cmp.Diff([]int{7, 0, 3, 7}, zs); diff != "" {
		t.Fatalf("z (-want +got):\n%s", diff)
	}
	if _, err := Explode(in, -1); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("negative gap: err=%v", err)
	}
	if _, err := Explode(in, 1e300); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("gap past the coordinate range: err=%v", err)
	}
}

func TestRecolor_CaseInsensitive(t *testing.T) {
	in := []lattice.Unit{{Color: "Red"}, {Color: "blue"}, {Color: "RED"}}
	got, n, err := Recolor(in, "red", "green")
	if err != nil {
		t.Fatalf("Recolor: %v", err)
	}
	if n != 2 || got[0].Color != "green" || got[1].Color != "blue" || got[2].Color != "green" {
		t.Fatalf("Recolor n=%d got=%+v", n, got)
	}
	if _, _, err := Recolor(in, " ", "green"); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("blank: err=%v", err)
	}
}

func TestRandomizeColors_SeededIsReproducible(t *testing.T) {
	palette := catalogs.Default().Colors.Palette
	in := make([]lattice.Unit, 30)
	a, err := RandomizeColors(in, palette, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("RandomizeColors: %v", err)
	}
	b, _ := RandomizeColors(in, palette, rand.New(rand.NewSource(42)))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed differs:\n%s", diff)
	}
	for _, u := range a {
		if !slices.Contains(palette, u.Color) {
			t.Fatalf("color %q not in palette", u.Color)
		}
	}
	if _, err := RandomizeColors(in, nil, rand.New(rand.NewSource(1))); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("empty palette: err=%v", err)
	}
}
