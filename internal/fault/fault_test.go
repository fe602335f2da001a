package fault

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("export: %w", Validationf("fill", "volume %d exceeds %d", 20000, 10000))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if errors.Is(err, ErrGeometry) {
		t.Fatalf("validation error must not match geometry")
	}
	if k, ok := KindOf(err); !ok || k != KindValidation {
		t.Fatalf("KindOf=%q,%v", k, ok)
	}
}

func TestIO_UnwrapsCause(t *testing.T) {
	err := IO("rename", os.ErrPermission)
	if !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected io+permission, got %v", err)
	}
	if IO("noop", nil) != nil {
		t.Fatalf("IO(nil) should be nil")
	}
	if got := err.Error(); got != "rename: write failed: permission denied" {
		t.Fatalf("Error()=%q", got)
	}
}
