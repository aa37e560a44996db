package logger

import (
	"strings"
	"testing"
)

func TestSanitizeValue(t *testing.T) {
	if got := sanitizeValue("openai_api_key", "sk-abc"); got != "[REDACTED]" {
		t.Fatalf("api key not redacted: %v", got)
	}
	got := sanitizeValue("user_id", "8d3f")
	s, ok := got.(string)
	if !ok || !strings.HasPrefix(s, "hash:") || len(s) != len("hash:")+12 {
		t.Fatalf("user_id not hashed: %v", got)
	}
	long := strings.Repeat("a", 200)
	out := sanitizeValue("transcript", long).(string)
	if !strings.HasPrefix(out, strings.Repeat("a", transcriptPreviewLen)) || !strings.HasSuffix(out, "(200 chars)") {
		t.Fatalf("transcript not truncated: %q", out)
	}
	if got := sanitizeValue("status", "completed"); got != "completed" {
		t.Fatalf("plain value changed: %v", got)
	}
}

func TestSanitizeNestedMap(t *testing.T) {
	got := sanitizeValue("payload", map[string]interface{}{"secret": "x", "score": 70}).(map[string]interface{})
	if got["secret"] != "[REDACTED]" || got["score"] != 70 {
		t.Fatalf("unexpected nested sanitize: %#v", got)
	}
}
