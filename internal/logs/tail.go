package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// Options controls Tail.
type Options struct {
	// Lines is the number of trailing lines emitted first. Zero emits none.
	Lines  int
	Follow bool
	// Poll is the follow interval. Zero uses 250ms.
	Poll time.Duration
}

// Tail passes the last opts.Lines lines of path to fn. With Follow set it then
// passes every complete line appended to the file until ctx ends or fn fails.
// A missing file is an error unless following, in which case Tail waits for it.
func Tail(ctx context.Context, path string, opts Options, fn func(string) error) error {
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}

	lines, offset, err := LastLines(path, opts.Lines)
	switch {
	case errors.Is(err, os.ErrNotExist) && opts.Follow:
		offset = 0
	case err != nil:
		return err
	}
	for _, line := range lines {
		if err := fn(line); err != nil {
			return err
		}
	}
	if !opts.Follow {
		return nil
	}
	return follow(ctx, path, offset, opts.Poll, fn)
}

// LastLines returns up to n trailing lines of path and the offset just past
// the last complete line.
func LastLines(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []string
	if n > 0 {
		ring = make([]string, 0, n)
	}
	var offset int64
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, trimNewline(line))
	}
	return ring, offset, nil
}

func follow(ctx context.Context, path string, offset int64, poll time.Duration, fn func(string) error) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var current os.FileInfo
	for {
		if info, err := os.Stat(path); err == nil {
			if current != nil && !os.SameFile(current, info) {
				offset = 0
			}
			if info.Size() < offset {
				offset = 0
			}
			current = info
			if info.Size() > offset {
				next, err := readFrom(path, offset, fn)
				if err != nil {
					return err
				}
				offset = next
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readFrom passes complete lines starting at offset to fn and returns the
// offset of the first unread byte. A trailing partial line is left unread.
func readFrom(path string, offset int64, fn func(string) error) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return offset, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		if err := fn(trimNewline(line)); err != nil {
			return offset, err
		}
	}
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
