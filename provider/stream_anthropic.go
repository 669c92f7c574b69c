package provider

import (
	"errors"

	"github.com/tidwall/gjson"
)

var errInvalidEvent = errors.New("invalid JSON event")

func decodeAnthropicEvent(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errInvalidEvent
	}
	return gjson.ParseBytes(data), nil
}

// ReduceAnthropicEvent folds one Messages API stream event into s.
//
// Text arrives as content_block_delta events. Tool use arrives either as a
// tool_use content block followed by input_json_delta fragments, or as
// tool_call_delta events keyed by tool_call_id whose input is a JSON
// fragment or a complete object.
func ReduceAnthropicEvent(s StreamState, ev gjson.Result) (StreamState, bool, error) {
	switch ev.Get("type").String() {
	case "content_block_start":
		block := ev.Get("content_block")
		if block.Get("type").String() != "tool_use" {
			return s, false, nil
		}
		s = s.cloneCalls()
		index := int(ev.Get("index").Int())
		pos := s.slot("block:"+ev.Get("index").Raw, index)
		updated := mergeToolDelta(&s.ToolCalls[pos], toolDelta{
			ID:   block.Get("id").String(),
			Type: "function",
			Name: block.Get("name").String(),
		})
		return s, updated, nil

	case "content_block_delta":
		delta := ev.Get("delta")
		switch delta.Get("type").String() {
		case "thinking_delta":
			if t := delta.Get("thinking").String(); t != "" {
				s.Reasoning += t
				return s, true, nil
			}
		case "input_json_delta":
			key := "block:" + ev.Get("index").Raw
			pos, ok := s.slots[key]
			if !ok {
				return s, false, nil
			}
			s = s.cloneCalls()
			updated := mergeToolDelta(&s.ToolCalls[pos], toolDelta{Arguments: delta.Get("partial_json").String()})
			return s, updated, nil
		default:
			if t := delta.Get("text").String(); t != "" {
				s.Content += t
				return s, true, nil
			}
		}
		return s, false, nil

	case "tool_call_delta":
		id := ev.Get("tool_call_id").String()
		s = s.cloneCalls()
		pos := s.slot("id:"+id, len(s.ToolCalls))
		delta := ev.Get("delta")
		d := toolDelta{ID: id, Type: "function", Name: delta.Get("name").String()}
		input := delta.Get("input")
		switch {
		case input.IsObject() || input.IsArray():
			d.Arguments = input.Raw
			d.ReplaceArguments = true
		case input.Type == gjson.String:
			d.Arguments = input.String()
		}
		mergeToolDelta(&s.ToolCalls[pos], d)
		return s, true, nil

	case "error":
		msg := ev.Get("error.message").String()
		if msg == "" {
			msg = ev.Get("error.type").String()
		}
		return s, false, &streamErrorEvent{Message: msg}
	}
	return s, false, nil
}
