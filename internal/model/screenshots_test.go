package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseScreenshots(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Screenshots
	}{
		{"empty", "", Screenshots{}},
		{"json array", `["a.png","b.png"]`, Screenshots{"a.png", "b.png"}},
		{"json array with blanks", `["a.png",""," "]`, Screenshots{"a.png"}},
		{"newline delimited", "a.png\n\n b.png \n", Screenshots{"a.png", "b.png"}},
		{"single url", "https://x/y.png", Screenshots{"https://x/y.png"}},
		{"broken json", `["a.png",`, Screenshots{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseScreenshots(tt.raw))
		})
	}
}

func TestScreenshotsUnmarshalJSON(t *testing.T) {
	var g Game
	require.NoError(t, json.Unmarshal([]byte(`{"screenshots":["a","b"]}`), &g))
	assert.Equal(t, Screenshots{"a", "b"}, g.Screenshots)

	g = Game{}
	require.NoError(t, json.Unmarshal([]byte(`{"screenshots":"[\"a\",\"b\"]"}`), &g))
	assert.Equal(t, Screenshots{"a", "b"}, g.Screenshots)

	g = Game{}
	require.NoError(t, json.Unmarshal([]byte(`{"screenshots":"a\nb"}`), &g))
	assert.Equal(t, Screenshots{"a", "b"}, g.Screenshots)

	g = Game{}
	require.NoError(t, json.Unmarshal([]byte(`{"screenshots":42}`), &g))
	assert.Empty(t, g.Screenshots)
}

func TestScreenshotsMarshalNeverNull(t *testing.T) {
	data, err := json.Marshal(Game{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"screenshots":[]`)
	assert.Equal(t, "[]", Screenshots(nil).String())
}

func TestScreenshotsUnmarshalYAML(t *testing.T) {
	var doc struct {
		A Screenshots `yaml:"a"`
		B Screenshots `yaml:"b"`
	}
	src := "a:\n  - one.png\n  - two.png\nb: |\n  three.png\n  four.png\n"
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	assert.Equal(t, Screenshots{"one.png", "two.png"}, doc.A)
	assert.Equal(t, Screenshots{"three.png", "four.png"}, doc.B)
}
