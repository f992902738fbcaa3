package services

import (
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "international format with plus",
			input:    "+255712345678",
			expected: "255712345678",
		},
		{
			name:     "local format with leading zero",
			input:    "0712345678",
			expected: "255712345678",
		},
		{
			name:     "already normalized",
			input:    "255712345678",
			expected: "255712345678",
		},
		{
			name:     "surrounding whitespace",
			input:    "  +255712345678 ",
			expected: "255712345678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePhone(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePhone(%q) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "valid number",
			input:    "+255712345678",
			expected: true,
		},
		{
			name:     "missing plus",
			input:    "255712345678",
			expected: false,
		},
		{
			name:     "local format",
			input:    "0712345678",
			expected: false,
		},
		{
			name:     "too short",
			input:    "+25571234567",
			expected: false,
		},
		{
			name:     "too long",
			input:    "+2557123456789",
			expected: false,
		},
		{
			name:     "wrong country code",
			input:    "+254712345678",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidPhone(tt.input)
			if result != tt.expected {
				t.Errorf("ValidPhone(%q) = %v; want %v", tt.input, result, tt.expected)
			}
		})
	}
}
