package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeysAndTeesToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "growspaced.log")
	logger, closer := SetupWithOptions(Options{
		Service: "growspaced",
		Env:     "test",
		File:    path,
		Output:  &buf,
	})
	defer closer.Close()
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	logger.Info("vote appended", slog.Uint64("ledger_id", 7), MaskToken("token", "secret"), slog.String("authorization", "Bearer abc"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "vote appended", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "growspaced", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, Redacted, line["token"])
	require.Equal(t, Redacted, line["authorization"])
	require.Equal(t, float64(7), line["ledger_id"])
	require.Contains(t, line, "timestamp")

	require.NoError(t, closer.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "vote appended")
}

func TestMaskTokenKeepsSuffix(t *testing.T) {
	require.Equal(t, Redacted+"wxyz", MaskToken("token", "eyJhbGciOi.abc.wxyz").Value.String())
	require.Equal(t, Redacted, MaskToken("token", "short").Value.String())
	require.Equal(t, "", MaskToken("token", "  ").Value.String())

	require.Equal(t, Redacted, redactAttr(slog.String("HMAC_Secret", "s3cret")).Value.String())
	require.Equal(t, Redacted+"wxyz", redactAttr(MaskToken("token", "eyJhbGciOi.abc.wxyz")).Value.String())
	require.Equal(t, "7", redactAttr(slog.String("ledger_id", "7")).Value.String())
	require.Equal(t, int64(3), redactAttr(slog.Int64("token", 3)).Value.Int64())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	require.Equal(t, slog.LevelDebug, ParseLevel(" debug "))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
