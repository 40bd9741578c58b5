package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weekData struct {
	GW            int
	FreeTransfers int
	Bank          string
	Chips         string
	Squad         string
	KB            string
	Instructions  string
	MaxPerClub    int
}

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestDefaultRender(t *testing.T) {
	r, err := NewDefault()
	require.NoError(t, err)

	sys, user, err := r.Render(KindWeek, weekData{GW: 7, FreeTransfers: 2, Bank: "1.5", Chips: "[TC BB]", Squad: "table", KB: "kb", MaxPerClub: 3})
	require.NoError(t, err)
	assert.Contains(t, sys, "fantasy football manager")
	assert.Contains(t, user, "Gameweek: 7")
	assert.Contains(t, user, "Bank: £1.5m")
	assert.NotContains(t, user, "MANAGER INSTRUCTIONS")

	_, user, err = r.Render(KindWeek, weekData{GW: 7, Instructions: "keep Salah"})
	require.NoError(t, err)
	assert.Contains(t, user, "keep Salah")
	assert.Equal(t, 1, r.Version(KindWeek))
}

func TestSchemaValidation(t *testing.T) {
	r, err := NewDefault()
	require.NoError(t, err)

	assert.NoError(t, r.Validate(KindWeek, decode(t, `{"made":false,"out_id":null,"xi_ids":[1,2],"captain_id":1}`)))
	assert.Error(t, r.Validate(KindWeek, decode(t, `{"out_id":3}`)))
	assert.Error(t, r.Validate(KindWeek, decode(t, `{"made":"yes"}`)))
	assert.NoError(t, r.Validate(KindDraft, decode(t, `{"squad_ids":[1,2,3]}`)))
	assert.Error(t, r.Validate(KindDraft, decode(t, `{"squad_ids":"1,2,3"}`)))
}

func TestFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prompts:\n  draft:\n    version: 3\n    system: \"custom drafter\"\n"), 0o644))

	r, err := NewRegistry(path)
	require.NoError(t, err)
	sys, user, err := r.Render(KindDraft, map[string]any{"Budget": "100.0", "MaxPerClub": 3, "Players": "p", "KB": "k", "Instructions": ""})
	require.NoError(t, err)
	assert.Equal(t, "custom drafter", sys)
	assert.Contains(t, user, "Budget: £100.0m")
	assert.Equal(t, 3, r.Version(KindDraft))
	assert.Equal(t, 1, r.Version(KindWeek))
}

func TestUnknownKind(t *testing.T) {
	r, err := NewDefault()
	require.NoError(t, err)
	_, _, err = r.Render(Kind("chat"), nil)
	assert.Error(t, err)
}
