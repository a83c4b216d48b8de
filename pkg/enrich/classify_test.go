package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"Miradouro da Senhora do Monte", KindViewpoint},
		{"MIRADOURO DE SANTA LUZIA", KindViewpoint},
		{"Ponto Panorâmico do Cabo", KindViewpoint},
		{"Mirante da Igreja", KindViewpoint},
		{"Igreja de São Roque", KindChurch},
		{"Sé de Braga", KindChurch},
		{"Capela das Aparições", KindChurch},
		{"Ruínas do Carmo", KindRuins},
		{"Ruínas Romanas de Conímbriga", KindRuins},
		{"Citânia de Briteiros", KindRuins},
		{"Castelo de Guimarães", KindGeneric},
		{"Sesimbra", KindGeneric},
		{"", KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
	assert.Equal(t, "viewpoint", KindViewpoint.String())
	assert.Equal(t, "generic", KindGeneric.String())
}
