package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_UserStringContent(t *testing.T) {
	line := `{"type":"user","timestamp":"2025-03-01T10:00:00Z","sessionId":"s-1","message":{"role":"user","content":"how do I rotate the API key?"}}`

	rec, ok := ParseLine([]byte(line), "/logs/a.jsonl", 7)
	require.True(t, ok)
	assert.Equal(t, RoleUser, rec.Role)
	assert.Equal(t, "how do I rotate the API key?", rec.Text)
	assert.Equal(t, "s-1", rec.SessionID)
	assert.Equal(t, "/logs/a.jsonl", rec.FilePath)
	assert.Equal(t, 7, rec.Line)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), rec.Timestamp)
}

func TestParseLine_AssistantKeepsOnlyTextBlocks(t *testing.T) {
	line := `{"type":"assistant","timestamp":"2025-03-01T10:00:05Z","sessionId":"s-1","message":{"role":"assistant","content":[` +
		`{"type":"thinking","thinking":"let me consider"},` +
		`{"type":"text","text":"Use the rotate endpoint."},` +
		`{"type":"tool_use","id":"t1","name":"bash","input":{}},` +
		`{"type":"text","text":"Then revoke the old key."}]}}`

	rec, ok := ParseLine([]byte(line), "/logs/a.jsonl", 8)
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, rec.Role)
	assert.Equal(t, "Use the rotate endpoint.\nThen revoke the old key.", rec.Text)
}

func TestParseLine_UserToolResultYieldsNothing(t *testing.T) {
	line := `{"type":"user","timestamp":"2025-03-01T10:00:06Z","sessionId":"s-1","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`

	_, ok := ParseLine([]byte(line), "/logs/a.jsonl", 9)
	assert.False(t, ok)
}

func TestParseLine_AssistantOnlyThinkingYieldsNothing(t *testing.T) {
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"}]}}`

	_, ok := ParseLine([]byte(line), "/logs/a.jsonl", 1)
	assert.False(t, ok)
}

func TestParseLine_NonMessageTypeSkipped(t *testing.T) {
	line := `{"type":"summary","summary":"short recap","leafUuid":"u-1"}`

	_, ok := ParseLine([]byte(line), "/logs/a.jsonl", 1)
	assert.False(t, ok)
}

func TestParseLine_MalformedJSONSkipped(t *testing.T) {
	for _, bad := range []string{
		`{"type":"user","message":`,
		`not json at all`,
		``,
		`   `,
	} {
		_, ok := ParseLine([]byte(bad), "/logs/a.jsonl", 1)
		assert.False(t, ok, "line %q should not produce a record", bad)
	}
}

func TestParseLine_WhitespaceOnlyTextSkipped(t *testing.T) {
	line := `{"type":"user","message":{"role":"user","content":"   \n\t  "}}`

	_, ok := ParseLine([]byte(line), "/logs/a.jsonl", 1)
	assert.False(t, ok)
}

func TestParseLine_BadTimestampToleratedAsZero(t *testing.T) {
	line := `{"type":"user","timestamp":"yesterday","message":{"role":"user","content":"hello"}}`

	rec, ok := ParseLine([]byte(line), "/logs/a.jsonl", 2)
	require.True(t, ok)
	assert.True(t, rec.Timestamp.IsZero())
}

func TestParseLine_UnknownBlockTypesIgnored(t *testing.T) {
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"image","source":{}},{"type":"text","text":"caption"}]}}`

	rec, ok := ParseLine([]byte(line), "/logs/a.jsonl", 3)
	require.True(t, ok)
	assert.Equal(t, "caption", rec.Text)
}
