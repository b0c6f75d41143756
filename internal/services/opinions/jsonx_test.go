package opinions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "fenced with info string",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "leading prose",
			in:   "Here is the result you asked for:\n{\"a\": 1}",
			want: `{"a": 1}`,
		},
		{
			name: "trailing chatter",
			in:   `{"a": 1} hope this helps!`,
			want: `{"a": 1}`,
		},
		{
			name: "array payload",
			in:   `the views: [1, 2, 3] done`,
			want: `[1, 2, 3]`,
		},
		{
			name: "no payload",
			in:   "I could not find any views in these messages.",
			want: "",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONBlock(tt.in))
		})
	}
}

func TestStripTrailingCommas(t *testing.T) {
	in := `{"views": [{"stance": "bullish",},], "bias": "none",}`
	out := StripTrailingCommas(in)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "none", decoded["bias"])
}

func TestStripTrailingCommasPreservesStrings(t *testing.T) {
	in := `{"text": "a, }", "quote": "she said \"hi,\" loudly",}`
	out := StripTrailingCommas(in)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "a, }", decoded["text"])
	assert.Equal(t, `she said "hi," loudly`, decoded["quote"])
}
