package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/occupancy"
)

// Report is the merged output of the five passes.
type Report struct {
	Units        int            `json:"units"`
	Overlap      OverlapResult  `json:"overlap"`
	Floating     []Finding      `json:"floating"`
	Disconnected []int          `json:"disconnected"`
	Shell        ShellResult    `json:"shell"`
	Symmetry     SymmetryResult `json:"symmetry"`
	Findings     []Finding      `json:"findings"`
}

// Analyze runs the overlap, support, connectivity, shell and symmetry passes
// concurrently over one shared index. Each pass writes only its own field.
func Analyze(ctx context.Context, units []lattice.Unit, cfg Config) (Report, error) {
	ix := occupancy.Build(units)
	rep := Report{Units: len(units)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep.Overlap = Overlap(ix)
		return ctx.Err()
	})
	g.Go(func() error {
		rep.Floating = Support(ix, cfg.SupportOffsets(cfg.Support))
		return ctx.Err()
	})
	g.Go(func() error {
		rep.Disconnected = Connectivity(ix, cfg.AdjacencyThreshold)
		return ctx.Err()
	})
	g.Go(func() error {
		rep.Shell = Shell(ix)
		return ctx.Err()
	})
	g.Go(func() error {
		rep.Symmetry = Symmetry(units, cfg.SymmetryAxis)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep.Findings = make([]Finding, 0, len(rep.Overlap.Findings)+len(rep.Floating)+len(rep.Disconnected))
	rep.Findings = append(rep.Findings, rep.Overlap.Findings...)
	rep.Findings = append(rep.Findings, rep.Floating...)
	rep.Findings = append(rep.Findings, disconnectedFindings(ix, rep.Disconnected)...)
	return rep, nil
}

// Check runs only the overlap and support passes, the quick validity check.
func Check(units []lattice.Unit, cfg Config) []Finding {
	ix := occupancy.Build(units)
	out := Overlap(ix).Findings
	return append(out, Support(ix, cfg.SupportOffsets(cfg.Support))...)
}
