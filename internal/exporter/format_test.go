package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"pricinglab/internal/dataset"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{
			name:     "zero value",
			input:    0.0,
			expected: "0.00",
		},
		{
			name:     "positive decimal",
			input:    33.3333,
			expected: "33.33",
		},
		{
			name:     "negative decimal",
			input:    -12.346,
			expected: "-12.35",
		},
		{
			name:     "one decimal pads",
			input:    13.4,
			expected: "13.40",
		},
		{
			name:     "NaN is empty",
			input:    math.NaN(),
			expected: "",
		},
		{
			name:     "infinity is empty",
			input:    math.Inf(1),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "-42", formatInt(-42))
	assert.Equal(t, "9223372036854775807", formatInt(math.MaxInt64))
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name     string
		input    dataset.Value
		expected string
	}{
		{"missing", dataset.Missing(), ""},
		{"whole number", dataset.Number(50), "50"},
		{"negative whole number", dataset.Number(-3), "-3"},
		{"fraction", dataset.Number(2.0 / 3.0), "0.67"},
		{"string", dataset.String("Key Strength"), "Key Strength"},
		{"blank string", dataset.String(""), ""},
		{"huge number keeps decimals", dataset.Number(1e20), "100000000000000000000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatCell(tt.input))
		})
	}
}

func TestFormatRow(t *testing.T) {
	row := []dataset.Value{dataset.String("Price"), dataset.Number(12.5), dataset.Missing()}
	assert.Equal(t, []string{"Price", "12.50", ""}, formatRow(row))
}
