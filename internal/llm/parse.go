package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripCodeFence removes a surrounding Markdown code fence, with or without a
// language tag.
func stripCodeFence(text string) string {
	clean := strings.TrimSpace(text)
	if !strings.HasPrefix(clean, "```") {
		return clean
	}
	clean = strings.TrimPrefix(clean, "```")
	if nl := strings.IndexByte(clean, '\n'); nl >= 0 && !strings.ContainsAny(clean[:nl], "{[") {
		clean = clean[nl+1:]
	}
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	return strings.TrimSpace(clean)
}

type reply struct {
	Narrative    string          `json:"narrative"`
	StateUpdates json.RawMessage `json:"state_updates"`
	Debug        json.RawMessage `json:"debug_info"`
}

// ParseResponse decodes a narrator reply.
//
// Postcondition: On success Raw is text and StateUpdates is nil when the reply
// carries no state_updates, a JSON null, or an empty object. Returns an error when
// text is not a JSON object or state_updates is present but not an object.
func ParseResponse(text string) (*Response, error) {
	clean := stripCodeFence(text)

	var r reply
	if err := json.Unmarshal([]byte(clean), &r); err != nil {
		return nil, fmt.Errorf("decoding narrator reply: %w", err)
	}

	resp := &Response{Narrative: r.Narrative, Raw: text}

	updates, err := decodeObject(r.StateUpdates)
	if err != nil {
		return nil, fmt.Errorf("decoding state_updates: %w", err)
	}
	if len(updates) > 0 {
		resp.StateUpdates = updates
	}

	// debug_info is advisory; a malformed value is dropped.
	if dbg, err := decodeObject(r.Debug); err == nil {
		resp.Debug = dbg
	}
	return resp, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
