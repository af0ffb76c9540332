// internal/lending/domain_test.go
package lending

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"libris/internal/fault"
)

func TestParseTimestampAcceptedLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01T10:30:00Z":      time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		"2024-03-01T10:30:00+02:00": time.Date(2024, 3, 1, 10, 30, 0, 0, time.FixedZone("", 2*3600)),
		"2024-03-01T10:30:00":       time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		"2024-03-01 10:30:00":       time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		"2024-03-01":                time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	for input, want := range cases {
		got, err := ParseTimestamp(input)
		require.NoError(t, err, "input %q", input)
		assert.True(t, got.Equal(want), "input %q: got %v, want %v", input, got, want)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-a-date", "03/01/2024", "2024-13-45", "20240301"} {
		_, err := ParseTimestamp(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, fault.IsKind(err, fault.KindValidation))
	}
}

func TestParseTimestampRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := rapid.Int64Range(0, 4102444800).Draw(t, "sec") // through 2100
		orig := time.Unix(sec, 0).UTC()

		parsed, err := ParseTimestamp(orig.Format(time.RFC3339))
		if err != nil {
			t.Fatalf("rejected RFC3339 output %q: %v", orig.Format(time.RFC3339), err)
		}
		if !parsed.Equal(orig) {
			t.Fatalf("round trip drift: %v != %v", parsed, orig)
		}

		dateOnly, err := ParseTimestamp(orig.Format("2006-01-02"))
		if err != nil {
			t.Fatalf("rejected date-only output: %v", err)
		}
		y, m, d := orig.Date()
		if py, pm, pd := dateOnly.Date(); py != y || pm != m || pd != d {
			t.Fatalf("date-only drift: %v != %d-%d-%d", dateOnly, y, m, d)
		}
	})
}

func TestLoanStatusDerivation(t *testing.T) {
	loan := &Loan{ID: uuid.New(), LoanDate: time.Now()}
	assert.Equal(t, StatusOpen, loan.Status())

	now := time.Now()
	loan.ReturnDate = &now
	assert.Equal(t, StatusClosed, loan.Status())

	loan.ReturnDate = nil
	assert.Equal(t, StatusOpen, loan.Status())
}

func TestLoanMarshalIncludesStatus(t *testing.T) {
	loan := Loan{
		ID:       uuid.New(),
		BookID:   uuid.New(),
		UserID:   uuid.New(),
		LoanDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(loan)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, StatusOpen, decoded["status"])
	assert.Nil(t, decoded["return_date"], "open loan serializes return_date as null")

	returned := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	loan.ReturnDate = &returned
	raw, err = json.Marshal(loan)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, StatusClosed, decoded["status"])
	assert.NotNil(t, decoded["return_date"])
}
