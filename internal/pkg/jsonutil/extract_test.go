package jsonutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"prose around", "Sure! Here you go: {\"a\": {\"b\": 2}} hope it helps", `{"a": {"b": 2}}`, true},
		{"fenced with tag", "text\n```json\n{\"xi\": [1,2]}\n```\nmore {\"x\":1}", `{"xi": [1,2]}`, true},
		{"brace inside string", `{"reason":"uses } and {","ok":true}`, `{"reason":"uses } and {","ok":true}`, true},
		{"skips invalid candidate", "Plan: {keep the XI} then {\"made\": false}", `{"made": false}`, true},
		{"second fence", "```text\nno json here\n```\n```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"bare before fence", "{\"a\":1} then\n```json\n{\"b\":2}\n```", `{"a":1}`, true},
		{"fence before bare", "```json\n{\"b\":2}\n```\nlater {\"a\":1}", `{"b":2}`, true},
		{"prose only", "I would keep the same team this week.", "", false},
		{"unterminated", `{"a": 1`, "", false},
		{"empty", "   ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractObjectWithOffset(t *testing.T) {
	_, off, ok := ExtractObjectWithOffset(`xx {"a":1}`)
	assert.True(t, ok)
	assert.Equal(t, 3, off)

	raw := "ok ```json\n{\"b\":2}\n``` {\"a\":1}"
	obj, off, ok := ExtractObjectWithOffset(raw)
	require.True(t, ok)
	assert.Equal(t, `{"b":2}`, obj)
	assert.Equal(t, strings.Index(raw, "{"), off)
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "not json", Pretty("not json"))
	assert.Contains(t, Pretty(`{"a":1}`), "\n")
}
