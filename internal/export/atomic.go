package export

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"brickforge.ai/internal/fault"
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place only after fill succeeds and the data is synced. On
// any failure the temp file is removed. Errors from fill that already carry a
// fault kind keep it; everything else is an IO fault.
func writeAtomic(path string, fill func(io.Writer) error) (n int64, err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fault.IO("create", err)
	}
	tmp := f.Name()
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	cw := &countingWriter{w: f}
	if err := fill(cw); err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			return 0, err
		}
		return 0, fault.IO("write", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fault.IO("sync", err)
	}
	closed = true
	if err := f.Close(); err != nil {
		return 0, fault.IO("close", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fault.IO("rename", err)
	}
	return cw.n, nil
}
