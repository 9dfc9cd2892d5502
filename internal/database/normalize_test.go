package database

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"José", "Jose"},
		{"Novák", "Novak"},
		{"Müller", "Muller"},
		{"plain ascii", "plain ascii"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"José García", "jose garcia"},
		{"jose-garcia", "jose garcia"},
		{"Jan Novák", "jan novak"},
		{"  Spaced  ", "spaced"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeDisplayName(tt.input); got != tt.expected {
			t.Errorf("NormalizeDisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeDisplayName_EquivalentForms(t *testing.T) {
	if NormalizeDisplayName("jan-novak") != NormalizeDisplayName("Jan Novák") {
		t.Error("equivalent name forms must normalize identically")
	}
}
