package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// TailOptions controls how much of the log file Tail reads.
type TailOptions struct {
	// Lines bounds how many trailing lines the initial snapshot shows.
	// Zero or negative shows none, which with Follow streams only new lines.
	Lines int
	// Follow keeps streaming appended lines until the context ends.
	Follow bool
	// Poll is the sleep between reads while following. Defaults to 250ms.
	Poll time.Duration
}

// Tail writes the last opts.Lines complete lines of the file at path to sink.
// With Follow it then polls for appended lines until ctx is canceled, which
// ends the stream without error. A missing file yields no lines; while
// following it is retried, so a log file that appears later is picked up.
func Tail(ctx context.Context, path string, opts TailOptions, sink io.Writer) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("log file path cannot be empty")
	}

	lines, offset, err := readTail(path, opts.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(sink, line)
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// A shrunken file was rotated or truncated; start over.
		if info, err := os.Stat(path); err == nil && info.Size() < offset {
			offset = 0
		}

		lines, next, err := readAppended(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(sink, line)
		}
		offset = next
	}
}

// readTail returns up to limit trailing complete lines and the offset just
// past the last complete line. An unterminated final fragment is left for the
// next read.
func readTail(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var ring []string
	if limit > 0 {
		ring = make([]string, limit)
	}
	var (
		offset int64
		count  int
		idx    int
	)

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			if limit > 0 {
				ring[idx] = strings.TrimRight(line, "\n")
				idx = (idx + 1) % limit
				if count < limit {
					count++
				}
			}
			offset += int64(len(line))
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, 0, count)
	if count == limit && limit > 0 {
		for i := 0; i < count; i++ {
			lines = append(lines, ring[(idx+i)%limit])
		}
	} else {
		lines = append(lines, ring[:count]...)
	}
	return lines, offset, nil
}

// readAppended returns the complete lines between offset and the end of the
// file, with the new offset. A missing file keeps the old offset.
func readAppended(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			lines = append(lines, strings.TrimRight(line, "\n"))
			offset += int64(len(line))
			continue
		}
		if errors.Is(err, io.EOF) {
			return lines, offset, nil
		}
		return lines, offset, fmt.Errorf("read log file: %w", err)
	}
}
