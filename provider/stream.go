package provider

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	"seekchat/model"
	"seekchat/toolcall"
)

// StreamState accumulates one streamed completion. Reducers never mutate
// the state they receive; they return an updated copy.
type StreamState struct {
	Content   string
	Reasoning string
	ToolCalls []model.ToolCall

	// slots maps provider-specific tool-call keys (block index, call id)
	// to positions in ToolCalls.
	slots map[string]int
}

// Snapshot returns the accumulated completion without finalizing tool
// calls.
func (s StreamState) Snapshot() model.Completion {
	c := model.Completion{Content: s.Content, ReasoningContent: s.Reasoning}
	if len(s.ToolCalls) > 0 {
		c.ToolCalls = append([]model.ToolCall(nil), s.ToolCalls...)
	}
	return c
}

// Finish converts the fragments into final tool calls: ordered by stream
// index, typed as functions and carrying an id even when the provider sent
// none.
func (s StreamState) Finish() model.Completion {
	c := s.Snapshot()
	sort.SliceStable(c.ToolCalls, func(i, j int) bool {
		return c.ToolCalls[i].Index < c.ToolCalls[j].Index
	})
	for i := range c.ToolCalls {
		if c.ToolCalls[i].ID == "" {
			c.ToolCalls[i].ID = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		if c.ToolCalls[i].Type == "" {
			c.ToolCalls[i].Type = "function"
		}
	}
	return c
}

// cloneCalls detaches the tool-call accumulators so the caller can write to
// them without touching earlier states.
func (s StreamState) cloneCalls() StreamState {
	s.ToolCalls = append([]model.ToolCall(nil), s.ToolCalls...)
	slots := make(map[string]int, len(s.slots))
	for k, v := range s.slots {
		slots[k] = v
	}
	s.slots = slots
	return s
}

// slot returns the position of the fragment registered under key, creating
// it with the given stream index when absent. The state must have been
// detached with cloneCalls.
func (s *StreamState) slot(key string, index int) int {
	if pos, ok := s.slots[key]; ok {
		return pos
	}
	s.ToolCalls = append(s.ToolCalls, model.ToolCall{Index: index})
	pos := len(s.ToolCalls) - 1
	s.slots[key] = pos
	return pos
}

// streamErrorEvent is an error the provider reported inside the stream.
type streamErrorEvent struct {
	Message string
}

func (e *streamErrorEvent) Error() string {
	return e.Message
}

// toolDelta is one provider-agnostic tool-call fragment.
type toolDelta struct {
	ID        string
	Type      string
	Name      string
	Arguments string
	// ReplaceArguments is set when the provider sent the complete
	// arguments object rather than a fragment.
	ReplaceArguments bool
}

// mergeToolDelta folds d into tc and reports whether anything changed.
// Ids and types are only overwritten by non-empty values. Argument
// fragments are concatenated after leaked tool markers are stripped.
func mergeToolDelta(tc *model.ToolCall, d toolDelta) bool {
	updated := false
	if d.ID != "" && d.ID != tc.ID {
		tc.ID = d.ID
		updated = true
	}
	if d.Type != "" && d.Type != tc.Type {
		tc.Type = d.Type
		updated = true
	}
	if name := mergeName(tc.Function.Name, d.Name); name != tc.Function.Name {
		tc.Function.Name = name
		updated = true
	}
	if d.ReplaceArguments {
		if d.Arguments != tc.Function.Arguments {
			tc.Function.Arguments = d.Arguments
			updated = true
		}
		return updated
	}
	if args := toolcall.StripLeadingMarkers(d.Arguments); args != "" {
		tc.Function.Arguments += args
		updated = true
	}
	return updated
}

// mergeName treats a fragment that extends the current name as a
// refinement and anything else as the next piece of a streamed name.
func mergeName(current, fragment string) string {
	switch {
	case fragment == "":
		return current
	case current == "" || strings.HasPrefix(fragment, current):
		return fragment
	default:
		return current + fragment
	}
}

// foldStream reads SSE records from body, decodes each with decode and
// folds it into the state with reduce. Records that fail to decode are
// logged and skipped; errors from reduce end the stream.
func foldStream[C any](
	ctx context.Context,
	o options,
	providerName string,
	body io.Reader,
	decode func([]byte) (C, error),
	reduce func(StreamState, C) (StreamState, bool, error),
	onProgress model.ProgressFunc,
) (StreamState, error) {
	var state StreamState
	err := readSSE(ctx, body, func(data []byte) error {
		chunk, err := decode(data)
		if err != nil {
			o.logger.Warn("skipping malformed stream record", "provider", providerName, "error", err)
			return nil
		}
		next, updated, err := reduce(state, chunk)
		if err != nil {
			return err
		}
		state = next
		if updated && onProgress != nil {
			onProgress(state.Snapshot())
		}
		return nil
	})
	if err == nil {
		return state, nil
	}
	if ctx.Err() != nil {
		return state, model.Cancelled(ctx.Err())
	}
	var se *streamErrorEvent
	if errors.As(err, &se) {
		return state, &model.TransportError{Provider: providerName, Message: se.Message}
	}
	return state, &model.TransportError{Provider: providerName, Message: "stream read failed", Err: err}
}
