package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/errors"
)

func TestMarshalConfig(t *testing.T) {
	cfg := &am.Config{
		Database: am.DatabaseConfig{Path: "/tmp/punchclock.db"},
		Sync:     am.SyncConfig{RemoteURL: "https://sync.example.com", Realtime: true},
	}

	for _, format := range []string{"toml", "yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			data, err := marshalConfig(cfg, format)
			require.NoError(t, err)
			assert.Contains(t, string(data), "https://sync.example.com")
			assert.Contains(t, string(data), "/tmp/punchclock.db")
		})
	}

	data, err := marshalConfig(cfg, "json")
	require.NoError(t, err)
	var back am.Config
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *cfg, back)
}

func TestMarshalConfig_UnknownFormat(t *testing.T) {
	_, err := marshalConfig(&am.Config{}, "ini")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}
