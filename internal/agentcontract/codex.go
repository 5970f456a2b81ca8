package agentcontract

import (
	"encoding/json"
	"strings"
)

// parseCodexOutput scans a codex --json transcript from the end and
// returns the last assistant message content, falling back to the last
// "result"/"output" field, falling back to the trimmed raw text.
func parseCodexOutput(stdout string) string {
	lines := strings.Split(stdout, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if content := extractAssistantMessage(rec); content != "" {
			return content
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if v, ok := rec["result"].(string); ok && v != "" {
			return v
		}
		if v, ok := rec["output"].(string); ok && v != "" {
			return v
		}
	}

	return strings.TrimSpace(stdout)
}

// extractAssistantMessage pulls the text content out of a single
// transcript record shaped like {"type":"message","role":"assistant",
// "content":[{"type":"text","text":"..."}]} or a flatter {"role":
// "assistant","content":"..."} form.
func extractAssistantMessage(rec map[string]any) string {
	role, _ := rec["role"].(string)
	if role != "assistant" {
		if msg, ok := rec["message"].(map[string]any); ok {
			return extractAssistantMessage(msg)
		}
		return ""
	}

	switch content := rec["content"].(type) {
	case string:
		return content
	case []any:
		var b strings.Builder
		for _, part := range content {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	}
	return ""
}
