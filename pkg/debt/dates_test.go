package debt

import "testing"

func TestRollMonth(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"2024-01-31", "2024-02-29"},
		{"2023-01-31", "2023-02-28"},
		{"2024-01-15", "2024-02-15"},
		{"2024-03-31", "2024-04-30"},
		{"2024-12-31", "2025-01-31"},
		{"2024-02-29", "2024-03-29"},
		{"2024-01-31T00:00:00.000Z", "2024-02-29"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := RollMonth(tt.in)
			if err != nil {
				t.Fatalf("RollMonth(%q) error: %v", tt.in, err)
			}
			if got != tt.expected {
				t.Errorf("RollMonth(%q) = %q, expected %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestRollMonthInvalid(t *testing.T) {
	if _, err := RollMonth("31/01/2024"); err == nil {
		t.Error("RollMonth should reject non ISO dates")
	}
}
