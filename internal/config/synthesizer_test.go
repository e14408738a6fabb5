package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")

	s := NewSynthesizer(path, "development")
	require.NoError(t, s.Synthesize(false))
	assert.Equal(t, 2, s.GetGeneratedCount())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Auth.JWT.Secret, "dev-"))
	assert.Len(t, c.Auth.JWT.Secret, len("dev-")+64)
	assert.Len(t, c.Database.Password, 24)
	require.NoError(t, NewSecretValidator(c).Validate())
	first := c.Auth.JWT.Secret

	t.Run("rerun keeps secrets", func(t *testing.T) {
		s := NewSynthesizer(path, "development")
		require.NoError(t, s.Synthesize(false))
		assert.Zero(t, s.GetGeneratedCount())
		c, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, first, c.Auth.JWT.Secret)
	})

	t.Run("rotate replaces secrets", func(t *testing.T) {
		s := NewSynthesizer(path, "development")
		require.NoError(t, s.Synthesize(true))
		assert.Equal(t, 2, s.GetGeneratedCount())
		c, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.NotEqual(t, first, c.Auth.JWT.Secret)
	})
}

func TestSynthesizeKeepsOtherSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	require.NoError(t, NewSynthesizer(path, "production").Synthesize(false))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "production", c.App.Env)
	assert.False(t, strings.HasPrefix(c.Auth.JWT.Secret, "dev-"))
}

func TestGenerateSecret(t *testing.T) {
	s := NewSynthesizer("unused", "")
	hex, err := s.GenerateSecret(SecretTypeHex, 32)
	require.NoError(t, err)
	assert.Len(t, hex, 32)

	pw, err := s.GenerateSecret(SecretTypePassword, 4)
	require.NoError(t, err)
	assert.Len(t, pw, 12)

	_, err = s.GenerateSecret("bogus", 8)
	assert.Error(t, err)
}
