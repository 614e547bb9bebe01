package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	p, err := Parse("Preciso de um gráfico.\nAction: chart\nAction Input: \"histograma da idade\"")
	require.NoError(t, err)
	assert.False(t, p.Final)
	assert.Equal(t, "chart", p.Tool)
	assert.Equal(t, "histograma da idade", p.Input)
}

func TestParseNumberedAction(t *testing.T) {
	p, err := Parse("Action 1: query\nAction 1 Input: df.mean('x')")
	require.NoError(t, err)
	assert.Equal(t, "query", p.Tool)
	assert.Equal(t, "df.mean('x')", p.Input)
}

func TestParseFinalAnswer(t *testing.T) {
	p, err := Parse("Agora eu sei a resposta final\nFinal Answer:  A média é 3,00. ")
	require.NoError(t, err)
	assert.True(t, p.Final)
	assert.Equal(t, "A média é 3,00.", p.Answer)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		obs  string
	}{
		{"missing action", "Vou pensar mais um pouco", missingAction},
		{"missing input", "Action: chart", missingActionInput},
		{"both", "Action: chart\nAction Input: x\nFinal Answer: y", bothActionAndFinal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.obs, pe.Observation)
			assert.Equal(t, tt.text, pe.Text)
		})
	}
}
