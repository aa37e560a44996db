package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/negotiator-backend/internal/achievements"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		scoreJSON = false
		scoreLexicon = ""
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("assessctl %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCatalogListsEveryDefinition(t *testing.T) {
	out := run(t, "", "catalog")
	for _, d := range achievements.DefaultDefinitions() {
		if !strings.Contains(out, d.Code) {
			t.Errorf("catalog output missing %s", d.Code)
		}
	}
}

func TestScoreTranscriptFromStdin(t *testing.T) {
	transcript := strings.Join([]string{
		"User: Based on market data I think 95,000 is a fair salary for this role.",
		"AI: That's above our budget.",
		"User: What matters most to you here? Could we explore equity or a signing bonus instead?",
		"AI: We could look at equity.",
		"User: I understand your constraints, and I appreciate you working with me on this.",
	}, "\n")
	out := run(t, transcript, "score", "-")
	for _, want := range []string{"claiming_value", "creating_value", "relationship_management", "overall"} {
		if !strings.Contains(out, want) {
			t.Errorf("score output missing %q:\n%s", want, out)
		}
	}
}

func TestScoreJSONSubmission(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.json")
	raw := `{"turns":[{"role":"user","content":"hi"}],"conversation_status":"completed"}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	out := run(t, "", "score", "--json", path)
	if !strings.Contains(out, "{") {
		t.Fatalf("expected JSON output, got:\n%s", out)
	}
}

func TestReadSubmissionPlainText(t *testing.T) {
	sub, err := readSubmission("-", strings.NewReader("  User: hello\n"))
	if err != nil {
		t.Fatal(err)
	}
	if sub.Transcript != "User: hello" || len(sub.Turns) != 0 {
		t.Fatalf("unexpected submission: %+v", sub)
	}
}
