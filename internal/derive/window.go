package derive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

var ErrInvalidWindow = errors.New("invalid window options")

// WindowOptions sizes the sliding context windows. Size > Step gives overlap.
type WindowOptions struct {
	Size int
	Step int
}

// DefaultWindowOptions returns a five-chunk window advancing three chunks.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{Size: 5, Step: 3}
}

// Validate rejects non-positive sizes and steps.
func (o WindowOptions) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidWindow, o.Size)
	}
	if o.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidWindow, o.Step)
	}
	return nil
}

// Windows slides a window over chunks, starting at 0, Step, 2*Step... while
// the start is in range. The final window may be shorter than Size. Each
// window inherits act and scene from its first member.
func Windows(chunks []chunk.Chunk, opts WindowOptions) ([]chunk.Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var out []chunk.Chunk
	windowID := 0
	for start := 0; start < len(chunks); start += opts.Step {
		end := min(start+opts.Size, len(chunks))
		members := chunks[start:end]

		parts := make([]string, 0, len(members))
		for _, m := range members {
			parts = append(parts, render(m))
		}

		c, ok := chunk.New(strconv.Itoa(windowID), chunk.TypeContextWindow, members[0].Act, members[0].Scene, nil, strings.Join(parts, " "))
		if !ok {
			continue
		}
		id := windowID
		c.WindowID = &id
		out = append(out, c)
		windowID++
	}
	return out, nil
}

func render(c chunk.Chunk) string {
	if c.Speaker != nil {
		return *c.Speaker + ": " + c.Text
	}
	return c.Text
}
