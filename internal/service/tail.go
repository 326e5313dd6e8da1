package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
)

const (
	// tailBlock is the backward scan granularity for finding line starts.
	tailBlock = 8 * 1024

	// followInterval paces the poll loop when following.
	followInterval = 500 * time.Millisecond
)

// Tail writes the last lines of the log file at path to w. When follow is
// true it then keeps polling the file and streams appended bytes until ctx
// is cancelled, in which case it returns the context error. A file that
// shrinks underneath the follow loop is reread from the top.
func Tail(ctx context.Context, fsys afero.Fs, path string, w io.Writer, lines int, follow bool) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("service: open log %q: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("service: stat log %q: %w", path, err)
	}
	start, err := tailStart(f, fi.Size(), lines)
	if err != nil {
		return fmt.Errorf("service: read log %q: %w", path, err)
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return fmt.Errorf("service: seek log %q: %w", path, err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		return err
	}
	if !follow {
		return nil
	}

	off := start + n
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		fi, err := f.Stat()
		if err != nil {
			return fmt.Errorf("service: stat log %q: %w", path, err)
		}
		if fi.Size() < off {
			// Truncated, most likely rotated in place.
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("service: seek log %q: %w", path, err)
			}
			off = 0
		}
		n, err := io.Copy(w, f)
		if err != nil {
			return err
		}
		off += n
	}
}

// tailStart returns the offset of the first byte of the last n lines,
// scanning backward from the end in blocks. A trailing newline closes the
// final line rather than opening a new one.
func tailStart(f afero.File, size int64, n int) (int64, error) {
	if n <= 0 {
		return size, nil
	}
	if size == 0 {
		return 0, nil
	}
	var (
		buf          = make([]byte, tailBlock)
		off          = size
		found        int
		skipTrailing = true
	)
	for off > 0 {
		readLen := int64(len(buf))
		if off < readLen {
			readLen = off
		}
		off -= readLen
		if _, err := f.ReadAt(buf[:readLen], off); err != nil {
			return 0, err
		}
		for i := readLen - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			if skipTrailing && off+i == size-1 {
				skipTrailing = false
				continue
			}
			found++
			if found == n {
				return off + i + 1, nil
			}
		}
	}
	return 0, nil
}
