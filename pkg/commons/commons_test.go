package commons

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	canonical := "https://commons.wikimedia.org/wiki/Special:FilePath/Castelo_de_Guimarães.jpg"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Already canonical", canonical, canonical},
		{"File namespace", "https://commons.wikimedia.org/wiki/File:Castelo_de_Guimarães.jpg", canonical},
		{"Ficheiro namespace", "https://commons.wikimedia.org/wiki/Ficheiro:Castelo_de_Guimarães.jpg", canonical},
		{"Lower-case namespace", "https://commons.wikimedia.org/wiki/file:Castelo_de_Guimarães.jpg", canonical},
		{"Redirect", "https://commons.wikimedia.org/wiki/Special:Redirect/file/Castelo_de_Guimarães.jpg", canonical},
		{"Escaped", "http://commons.wikimedia.org/wiki/File:Castelo_de_Guimar%C3%A3es.jpg", canonical},
		{"Spaces", "https://commons.wikimedia.org/wiki/File:Castelo de Guimarães.jpg", canonical},
		{"Non-Commons", "https://upload.wikimedia.org/wikipedia/commons/a/ab/X.jpg", "https://upload.wikimedia.org/wikipedia/commons/a/ab/X.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}

	// Idempotent
	assert.Equal(t, canonical, NormalizeURL(NormalizeURL("https://commons.wikimedia.org/wiki/File:Castelo_de_Guimarães.jpg")))
}

func TestNormalizeURL_ReservedCharacters(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://commons.wikimedia.org/wiki/File:What%3F.jpg", FilePathPrefix + "What%3F.jpg"},
		{"https://commons.wikimedia.org/wiki/File:Sala_%231.jpg", FilePathPrefix + "Sala_%231.jpg"},
		{"https://commons.wikimedia.org/wiki/File:100%25_Porto.jpg", FilePathPrefix + "100%25_Porto.jpg"},
		{"https://commons.wikimedia.org/wiki/Special:FilePath/Torre.jpg?width=800", FilePathPrefix + "Torre.jpg?width=800"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeURL(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeURL(got))
		})
	}

	assert.Equal(t, FilePathPrefix+"What%3F.jpg", FilePathURL("File:What?.jpg"))
}

func TestFilePathURL(t *testing.T) {
	assert.Equal(t, FilePathPrefix+"Sé_de_Braga.jpg", FilePathURL("File:Sé de Braga.jpg"))
	assert.Equal(t, FilePathPrefix+"Sé_de_Braga.jpg", FilePathURL("Sé de Braga.jpg"))
	assert.Equal(t, FilePathPrefix+"Sé_de_Braga.jpg", FilePathURL("Ficheiro:Sé_de_Braga.jpg"))
	assert.Equal(t, "", FilePathURL("  "))
}

func TestIsUnwantedImage(t *testing.T) {
	assert.True(t, IsUnwantedImage("File:Flag_of_Portugal.svg"))
	assert.True(t, IsUnwantedImage("Logo_CM_Braga.png"))
	assert.True(t, IsUnwantedImage("https://upload.wikimedia.org/x/Foo.svg.png"))
	assert.False(t, IsUnwantedImage("File:Castelo_de_Guimarães.jpg"))
}

func TestIsBlockedDistrictImage(t *testing.T) {
	assert.True(t, IsBlockedDistrictImage("File:Brasão_de_Braga.png"))
	assert.True(t, IsBlockedDistrictImage("File:Bandeira_do_distrito.jpg"))
	assert.True(t, IsBlockedDistrictImage("https://x/Mapa_de_Portugal.jpg"))
	assert.True(t, IsBlockedDistrictImage("https://x/Bom_Jesus.SVG"))
	assert.True(t, IsBlockedDistrictImage("https://x/S%C3%ADmbolo.jpg"))
	assert.False(t, IsBlockedDistrictImage("File:Bom_Jesus_do_Monte.jpg"))
}
