package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	SetupWriter(&buf, "PROD", "warn")

	log.Info().Msg("dropped")
	log.Warn().Str("team", "T1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "kept", entry["message"])
	require.Equal(t, "T1", entry["team"])
	require.Equal(t, "warn", entry["level"])
}

func TestSetupWriterBadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "DEV", "loud")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
