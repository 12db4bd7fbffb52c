// Package extract turns raw conversation-log lines into embeddable records.
//
// Each log line is one JSON object. Only user-authored free text and
// assistant-authored text segments are worth embedding; tool invocations,
// tool results, and thinking segments are noise for conversational recall
// and are dropped here, once, so nothing downstream ever inspects raw
// content shapes again.
package extract

import (
	"encoding/json"
	"strings"
	"time"
)

// Role classifies who authored a record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block types that may appear in assistant content arrays. Only text blocks
// carry embeddable content.
const (
	blockText       = "text"
	blockThinking   = "thinking"
	blockToolUse    = "tool_use"
	blockToolResult = "tool_result"
)

// Record is one embeddable unit extracted from a log line.
type Record struct {
	Role      Role
	Text      string
	Timestamp time.Time
	SessionID string
	FilePath  string
	Line      int // 1-based line number within FilePath
}

// rawLine is the wire shape of one log line. Content is deferred because it
// is either a bare string or a list of typed blocks.
type rawLine struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"sessionId"`
	Message   struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// contentBlock is one element of an assistant content array.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ParseLine extracts zero or one Record from a raw log line. The second
// return value reports whether a record was produced. Malformed JSON,
// non-message line types, and lines with no embeddable text all yield
// (zero, false) — never an error, so one corrupt line cannot block a run.
func ParseLine(line []byte, filePath string, lineNo int) (Record, bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return Record{}, false
	}

	var raw rawLine
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return Record{}, false
	}

	var role Role
	switch raw.Type {
	case "user":
		role = RoleUser
	case "assistant":
		role = RoleAssistant
	default:
		// Summaries, hooks, and other non-message line types.
		return Record{}, false
	}

	text := extractText(raw.Message.Content)
	if strings.TrimSpace(text) == "" {
		return Record{}, false
	}

	return Record{
		Role:      role,
		Text:      text,
		Timestamp: parseTimestamp(raw.Timestamp),
		SessionID: raw.SessionID,
		FilePath:  filePath,
		Line:      lineNo,
	}, true
}

// extractText resolves the content union: a bare string (user messages) or a
// list of typed blocks (assistant messages). Only text-bearing blocks
// contribute; everything else is deliberately excluded from embedding.
func extractText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == blockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// parseTimestamp is tolerant: a missing or unparseable timestamp yields the
// zero time rather than discarding the record.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
