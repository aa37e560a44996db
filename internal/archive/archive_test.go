package archive

import (
	"testing"

	"github.com/google/uuid"
)

func TestRecordKey(t *testing.T) {
	r := Record{
		UserID:       uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"),
		AssessmentID: uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002"),
		Attempt:      2,
	}
	want := "assessments/aaaaaaaa-0000-0000-0000-000000000001/bbbbbbbb-0000-0000-0000-000000000002/attempt-2.json"
	if got := r.Key(); got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}
