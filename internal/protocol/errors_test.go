package protocol

import (
	"errors"
	"fmt"
	"testing"

	"brickforge.ai/internal/fault"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrBadRequest,
		ErrNotFound,
		ErrValidation,
		ErrGeometry,
		ErrIO,
		ErrUnsupported,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: fault.Validationf("fill", "too many"), want: ErrValidation},
		{err: fmt.Errorf("wrapped: %w", fault.Geometryf("export", "no geometry")), want: ErrGeometry},
		{err: fault.IO("rename", errors.New("EXDEV")), want: ErrIO},
		{err: fault.Unsupportedf("3mf", "missing"), want: ErrUnsupported},
		{err: errors.New("boom"), want: ErrInternal},
	}
	for _, c := range cases {
		if got := CodeFor(c.err); got != c.want {
			t.Fatalf("CodeFor(%v)=%q want %q", c.err, got, c.want)
		}
		if !IsKnownCode(CodeFor(c.err)) {
			t.Fatalf("CodeFor produced unknown code")
		}
	}
}
