package scanning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoFrame is returned by a Source when no frame is currently available;
// the session treats it as an idle cycle rather than a failure
var ErrNoFrame = errors.New("no frame available")

// Frame is one captured image backed by a transient file. It is consumed by
// at most one recognition pass (plus, conditionally, one fallback
// extraction) and discarded at the end of the cycle.
type Frame struct {
	Path string
}

// Discard deletes the frame's backing file. Best effort: a leaked transient
// file is not a correctness issue, so failures are not surfaced.
func (f *Frame) Discard() {
	if f == nil || f.Path == "" {
		return
	}
	os.Remove(f.Path)
}

// Source yields one frame at a time from a capture device. Capture is
// atomic and blocking; at most one capture may be in flight.
type Source interface {
	Capture(ctx context.Context) (*Frame, error)
}

// CommandSource captures frames by running an external capture command
// (fswebcam, libcamera-still, ffmpeg and friends) that writes a still image
// to a file. The literal argument "{output}" is replaced with the frame
// path; when absent the path is appended.
type CommandSource struct {
	command []string
	dir     string
}

// NewCommandSource creates a CommandSource writing frames under dir
func NewCommandSource(command []string, dir string) (*CommandSource, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("capture command is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating frame directory: %w", err)
	}
	return &CommandSource{command: command, dir: dir}, nil
}

// Capture runs the capture command and returns the written frame
func (c *CommandSource) Capture(ctx context.Context) (*Frame, error) {
	path := filepath.Join(c.dir, fmt.Sprintf("frame-%d.png", time.Now().UnixNano()))

	argv := make([]string, 0, len(c.command)+1)
	replaced := false
	for _, arg := range c.command {
		if strings.Contains(arg, "{output}") {
			arg = strings.ReplaceAll(arg, "{output}", path)
			replaced = true
		}
		argv = append(argv, arg)
	}
	if !replaced {
		argv = append(argv, path)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("capture command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		os.Remove(path)
		return nil, fmt.Errorf("capture command produced no frame at %s", path)
	}

	return &Frame{Path: path}, nil
}

// SpoolSource picks up frames dropped into a spool directory by an external
// camera process, oldest first. The frame file becomes owned by the session
// and is deleted when the cycle ends.
type SpoolSource struct {
	dir string
}

// NewSpoolSource creates a SpoolSource over dir
func NewSpoolSource(dir string) (*SpoolSource, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &SpoolSource{dir: dir}, nil
}

// Capture returns the oldest frame in the spool, or ErrNoFrame
func (s *SpoolSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading spool directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(s.dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return nil, ErrNoFrame
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.Before(candidates[j].modTime)
	})
	return &Frame{Path: candidates[0].path}, nil
}
