package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "Payment received", "Payment received", 100},
		{"case and whitespace normalized", "  Payment Received ", "payment received", 100},
		{"empty left", "", "x", 0},
		{"empty right", "x", "", 0},
		{"both empty", "", "", 0},
		{"blank is empty", "   ", "payment", 0},
		{"one edit of three", "abc", "abd", 67},
		{"completely different", "abc", "xyz", 0},
		{"one char dropped", "payments", "payment", 88},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similarity(tt.a, tt.b))
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"invoice 1042", "invoice 1043"},
		{"short", "a much longer description"},
		{"Sale", "sale!"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]))
	}
}
