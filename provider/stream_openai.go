package provider

import (
	"encoding/json"
	"strconv"
)

type openAIToolCallDelta struct {
	Index    *int   `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// openAIDelta is both a streamed choice delta and, for non-streaming
// responses, the final choice message.
type openAIDelta struct {
	Content          string                `json:"content"`
	ReasoningContent string                `json:"reasoning_content"`
	ToolCalls        []openAIToolCallDelta `json:"tool_calls"`
}

type openAIChunk struct {
	Choices []struct {
		Delta openAIDelta `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIDelta `json:"message"`
	} `json:"choices"`
}

func decodeOpenAIChunk(data []byte) (openAIChunk, error) {
	var chunk openAIChunk
	err := json.Unmarshal(data, &chunk)
	return chunk, err
}

// ReduceOpenAIChunk folds one chat.completion.chunk into s. Content and
// reasoning text are appended; tool-call fragments are merged by their
// stream index.
func ReduceOpenAIChunk(s StreamState, chunk openAIChunk) (StreamState, bool, error) {
	if chunk.Error != nil {
		return s, false, &streamErrorEvent{Message: chunk.Error.Message}
	}
	if len(chunk.Choices) == 0 {
		return s, false, nil
	}
	return reduceOpenAIDelta(s, chunk.Choices[0].Delta)
}

func reduceOpenAIDelta(s StreamState, delta openAIDelta) (StreamState, bool, error) {
	updated := false
	if delta.Content != "" {
		s.Content += delta.Content
		updated = true
	}
	if delta.ReasoningContent != "" {
		s.Reasoning += delta.ReasoningContent
		updated = true
	}
	if len(delta.ToolCalls) == 0 {
		return s, updated, nil
	}

	s = s.cloneCalls()
	for i, d := range delta.ToolCalls {
		index := i
		if d.Index != nil {
			index = *d.Index
		}
		pos := s.slot("index:"+strconv.Itoa(index), index)
		if mergeToolDelta(&s.ToolCalls[pos], toolDelta{
			ID:        d.ID,
			Type:      d.Type,
			Name:      d.Function.Name,
			Arguments: d.Function.Arguments,
		}) {
			updated = true
		}
	}
	return s, updated, nil
}
