// Package hook adapts the engine to the session hook protocol: it decodes
// hook requests, decides the maintenance gate, renders the orientation
// summary and encodes responses.
package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/starford/orgstate/internal/apperr"
)

// MaxInputSize bounds how much of stdin DecodeInput reads.
const MaxInputSize = 1 << 20

// SourceResume marks a resumed session; orientation is skipped for it.
const SourceResume = "resume"

// Input is the JSON request a hook receives on stdin.
type Input struct {
	SessionID      string `json:"session_id,omitempty"`
	HookEventName  string `json:"hook_event_name,omitempty"`
	Cwd            string `json:"cwd,omitempty"`
	Source         string `json:"source,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	StopHookActive bool   `json:"stop_hook_active,omitempty"`
}

type decoded struct {
	in  Input
	err error
}

// DecodeInput reads one JSON request from r. Empty or invalid input returns
// a zero Input and apperr.ErrAmbiguousInput. The read is abandoned when ctx
// is done.
func DecodeInput(ctx context.Context, r io.Reader) (Input, error) {
	ch := make(chan decoded, 1)
	go func() {
		data, err := io.ReadAll(io.LimitReader(r, MaxInputSize))
		if err != nil {
			ch <- decoded{err: fmt.Errorf("hook: read input: %w: %v", apperr.ErrAmbiguousInput, err)}
			return
		}
		var in Input
		if err := json.Unmarshal(data, &in); err != nil {
			ch <- decoded{err: fmt.Errorf("hook: decode input: %w: %v", apperr.ErrAmbiguousInput, err)}
			return
		}
		ch <- decoded{in: in}
	}()

	select {
	case d := <-ch:
		if d.err != nil {
			return Input{}, d.err
		}
		return d.in, nil
	case <-ctx.Done():
		return Input{}, fmt.Errorf("hook: read input: %w: %w", apperr.ErrAmbiguousInput, context.Cause(ctx))
	}
}

// IsAmbiguous reports whether err came from unusable hook input.
func IsAmbiguous(err error) bool {
	return errors.Is(err, apperr.ErrAmbiguousInput)
}
