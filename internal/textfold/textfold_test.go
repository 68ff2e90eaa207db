package textfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, unaccent, lower, fold string
	}{
		{"Émile Zola", "Emile Zola", "émile zola", "emile zola"},
		{"Zoë", "Zoe", "zoë", "zoe"},
		{"ACME", "ACME", "acme", "acme"},
		{"Crème_brûlée 100%", "Creme_brulee 100%", "crème_brûlée 100%", "creme_brulee 100%"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.unaccent, Unaccent(tt.in))
			assert.Equal(t, tt.lower, Lower(tt.in))
			assert.Equal(t, tt.fold, Fold(tt.in))
		})
	}
}

func TestFold_Decomposed(t *testing.T) {
	// "E" followed by a combining acute accent
	assert.Equal(t, "emile", Fold("E\u0301mile"))
	assert.Equal(t, "Emile", Unaccent("E\u0301mile"))
}
