package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	require.Equal(t, 8, cfg.P2P.DialFanOut)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawler.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
ListenAddr: "0.0.0.0:5000"
P2P:
  DialFanOut: 3
Logger:
  LogEncoding: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:5000", cfg.ListenAddr)
	require.Equal(t, 3, cfg.P2P.DialFanOut)
	require.Equal(t, "json", cfg.Logger.LogEncoding)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawler.yml")
	require.NoError(t, os.WriteFile(path, []byte("NotAField: true\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsBadLogEncoding(t *testing.T) {
	cfg := Config{ListenAddr: "0.0.0.0:4132", Logger: Logger{LogEncoding: "xml"}}
	require.Error(t, cfg.Validate())
}

func TestDBValidate(t *testing.T) {
	require.NoError(t, DB{}.Validate())
	require.Error(t, DB{Driver: "postgres"}.Validate())
	require.Error(t, DB{Driver: "mysql"}.Validate())
	require.NoError(t, DB{Driver: "mysql", Name: "crawler"}.Validate())
}
