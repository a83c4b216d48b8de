package sipa

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		text       string
		start, end string
		raw        string
	}{
		{"Construído no século XVI por ordem régia.", "1501", "1600", "século XVI"},
		{"Obras entre 1501-1520 e remodelação em 1755.", "1501", "1520", "1501-1520"},
		{"Obras de 1501 a 1520.", "1501", "1520", "1501 a 1520"},
		{"Em 1755 o terramoto destruiu a igreja; séc. XVIII.", "1755", "", "1755"},
		{"sec. XII", "1101", "1200", "sec. XII"},
	}
	for _, tt := range tests {
		d := ExtractDate(tt.text)
		require.NotNil(t, d, tt.text)
		assert.Equal(t, tt.start, d.Start, tt.text)
		assert.Equal(t, tt.end, d.End, tt.text)
		assert.Equal(t, tt.raw, d.Text, tt.text)
	}

	assert.Nil(t, ExtractDate(""))
	assert.Nil(t, ExtractDate("Sem datas conhecidas, 42 metros de altura."))
}

func TestParse_PriorityAndCap(t *testing.T) {
	text := strings.Join([]string{
		"História",
		"Fundado em 1200.",
		"Arquitectura: Reconstruída no século XVIII.",
		"Datação",
		"Sem data.",
		"Bibliografia",
		"Livro de 1999.",
	}, "\n")
	rec := Parse(text)
	assert.Equal(t, "Fundado em 1200.", rec.History)
	assert.Equal(t, "Reconstruída no século XVIII.", rec.Architecture)
	assert.Equal(t, "Sem data.", rec.Chronology)
	require.NotNil(t, rec.Date)
	assert.Equal(t, "1701", rec.Date.Start, "architecture outranks history when chronology has no date")

	long := "História\n" + strings.Repeat("palavra ", 1000)
	rec = Parse(long)
	assert.LessOrEqual(t, utf8.RuneCountInString(rec.History), MaxBlockLen+1)
	assert.True(t, strings.HasSuffix(rec.History, "…"))
}

func TestRecordFragment_ChronologyFallsBackToHistory(t *testing.T) {
	f := (&Record{Chronology: "1139 - fundação"}).Fragment()
	assert.Equal(t, "1139 - fundação", f.HistoryText)
	assert.Nil(t, f.BuiltPeriod)
}
