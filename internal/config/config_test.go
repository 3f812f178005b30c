package config

import (
	"os"
	"testing"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENVIRONMENT", "KEY_ID", "PRIVATE_KEY_PATH", "PRIVATE_KEY_B64",
		"RESEARCH_API_KEY", "SYNTHESIZER_BACKEND", "RUN_LIVE_API", "MARKETEDGE_DATA_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, EnvironmentDemo, cfg.Environment)
	assert.Equal(t, SynthesizerMock, cfg.SynthesizerBackend)
	assert.False(t, cfg.RunLiveAPI)
	assert.False(t, cfg.Authenticated())
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	clearEnv(t)
	os.Setenv("ENVIRONMENT", "staging")
	defer os.Unsetenv("ENVIRONMENT")
	_, err := Load(t.TempDir())
	require.Error(t, err)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "ENVIRONMENT", ve.Field)
}

func TestValidateRejectsMutuallyExclusiveKeys(t *testing.T) {
	clearEnv(t)
	os.Setenv("KEY_ID", "abc")
	os.Setenv("PRIVATE_KEY_PATH", "/tmp/key.pem")
	os.Setenv("PRIVATE_KEY_B64", "c29tZWtleQ==")
	defer func() {
		os.Unsetenv("KEY_ID")
		os.Unsetenv("PRIVATE_KEY_PATH")
		os.Unsetenv("PRIVATE_KEY_B64")
	}()
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestAuthenticated(t *testing.T) {
	clearEnv(t)
	os.Setenv("KEY_ID", "abc")
	os.Setenv("PRIVATE_KEY_B64", "c29tZWtleQ==")
	defer func() {
		os.Unsetenv("KEY_ID")
		os.Unsetenv("PRIVATE_KEY_B64")
	}()
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.Authenticated())
}
