package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestDefaults(t *testing.T) {
	is := is.New(t)

	cfg := Default()
	is.Equal(cfg.Server.ListenAddr, ":8080")
	is.Equal(cfg.VAD.FrameSize, 512)
	is.Equal(cfg.Sessions.IdleTTL, 10*time.Minute)

	sd := cfg.SessionDefaults()
	is.Equal(sd.VADThreshold, 0.5)
	is.Equal(sd.SilenceThreshold, 0.8)
	is.Equal(sd.ChunkSize, 1.0)
	is.Equal(sd.Language, "")
}

func TestLoadYAML(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	is.NoErr(os.WriteFile(path, []byte(`
server:
  listen_addr: ":9000"
  log_level: debug
vad:
  model_path: /models/silero.onnx
  frame_size: 1024
session_defaults:
  vad_threshold: 0.6
  language: en
sessions:
  max: 8
  idle_ttl: 2m
`), 0o600))

	cfg, err := Load(path)
	is.NoErr(err)
	is.Equal(cfg.Server.ListenAddr, ":9000")
	is.Equal(cfg.VAD.FrameSize, 1024)
	is.Equal(cfg.Sessions.Max, 8)
	is.Equal(cfg.Sessions.IdleTTL, 2*time.Minute)

	sd := cfg.SessionDefaults()
	is.Equal(sd.VADThreshold, 0.6)
	is.Equal(sd.Language, "en")
	is.Equal(sd.SilenceThreshold, 0.8) // untouched fields keep defaults
}

func TestLoadMissingFile(t *testing.T) {
	is := is.New(t)

	_, err := Load("/no/such/file.yaml")
	is.True(err != nil)
}

func TestEnvOverrides(t *testing.T) {
	is := is.New(t)

	t.Setenv("QW_ASR_LISTEN_ADDR", ":7070")
	t.Setenv("QW_ASR_MAX_SESSIONS", "3")
	t.Setenv("QW_ASR_IDLE_TTL", "90s")

	cfg, err := Load("")
	is.NoErr(err)
	is.Equal(cfg.Server.ListenAddr, ":7070")
	is.Equal(cfg.Sessions.Max, 3)
	is.Equal(cfg.Sessions.IdleTTL, 90*time.Second)
}
