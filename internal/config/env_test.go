package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewValidator())
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, BackendONNX, cfg.DetectorBackend)
	assert.Equal(t, "models/best.onnx", cfg.ModelPath)
	assert.Equal(t, "*", cfg.CORSAllowOrigins)
	assert.False(t, cfg.CORSAllowCredentials)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 85, cfg.JPEGQuality)
	assert.Equal(t, 25_000_000, cfg.MaxImagePixels)
	assert.Equal(t, 15*1024*1024, cfg.FileLimit())
	assert.Equal(t, 16*1024*1024, cfg.BodyLimit())

	limits := cfg.Limits()
	assert.Equal(t, 160, limits.MinInputSize)
	assert.Equal(t, 640, limits.MaxInputSize)
	assert.False(t, limits.AllowList.Active())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("IMGSZ_MIN", "192")
	t.Setenv("IMGSZ_MAX", "384")
	t.Setenv("IMGSZ_DEFAULT", "320")
	t.Setenv("CLASS_ALLOW_LIST", "person, car")
	t.Setenv("JPEG_QUALITY", "99")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("MAX_IMAGE_PIXELS", "4000000")

	cfg, err := Load(NewValidator())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 90, cfg.JPEGQuality)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4_000_000, cfg.MaxImagePixels)

	limits := cfg.Limits()
	assert.Equal(t, 192, limits.MinInputSize)
	assert.Equal(t, 384, limits.MaxInputSize)
	assert.Equal(t, 320, limits.DefaultInputSize)
	assert.Equal(t, []string{"car", "person"}, limits.AllowList.Names())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string][2]string{
		"inverted imgsz range":      {"IMGSZ_MIN", "640"},
		"zero pool":                 {"DETECTOR_POOL_SIZE", "0"},
		"zero pixel cap":            {"MAX_IMAGE_PIXELS", "0"},
		"non numeric port":          {"APP_PORT", "http"},
		"credentials with wildcard": {"CORS_ALLOW_CREDENTIALS", "true"},
		"unknown backend":           {"DETECTOR_BACKEND", "tensorrt"},
		"remote without url":        {"DETECTOR_BACKEND", "remote"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if kv[0] == "IMGSZ_MIN" {
				t.Setenv("IMGSZ_MAX", "320")
			}
			_, err := Load(NewValidator())
			assert.Error(t, err)
		})
	}
}

func TestLoadRemoteBackend(t *testing.T) {
	t.Setenv("DETECTOR_BACKEND", "Remote")
	t.Setenv("REMOTE_DETECTOR_URL", "ws://inference:8000/detect/ws")

	cfg, err := Load(NewValidator())
	require.NoError(t, err)

	assert.Equal(t, BackendRemote, cfg.DetectorBackend)
	assert.Equal(t, "ws://inference:8000/detect/ws", cfg.RemoteDetectorURL)
}
