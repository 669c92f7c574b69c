package provider

import (
	"encoding/json"

	"google.golang.org/genai"
)

func decodeGeminiChunk(data []byte) (*genai.GenerateContentResponse, error) {
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReduceGeminiChunk folds one streamGenerateContent response into s. Text
// parts of the first candidate are appended to the content, or to the
// reasoning when the part is marked as a thought.
func ReduceGeminiChunk(s StreamState, resp *genai.GenerateContentResponse) (StreamState, bool, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return s, false, nil
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return s, false, nil
	}

	updated := false
	for _, part := range content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			s.Reasoning += part.Text
		} else {
			s.Content += part.Text
		}
		updated = true
	}
	return s, updated, nil
}
