package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Miradouro de São Pedro de Alcântara", "miradouro de sao pedro de alcantara"},
		{"  Igreja   Matriz (Sé) ", "igreja matriz se"},
		{"Castelo-de-Óbidos!", "castelo de obidos"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"Identical", "Torre de Belém", "Torre de Belem", 1},
		{"Subset uses smaller set", "Castelo", "Castelo de Guimarães", 1},
		{"Half", "Ponte Romana", "Ponte Velha", 0.5},
		{"Disjoint", "Sé de Braga", "Bom Jesus", 0},
		{"Empty side", "", "Bom Jesus", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TokenOverlap(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Miradouro da Graça", "miradouro da graca"))
	assert.False(t, SameName("Miradouro da Graça", "Miradouro de Santa Luzia"))
	assert.False(t, SameName("", ""))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("Ruínas do Convento", []string{"ruinas"}))
	assert.False(t, ContainsAny("Convento de Cristo", []string{"ruinas"}))
}
