package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
services: [Accueil, Comptabilité]
service_intervenants: [Informatique]
categories:
  informatique: [Réseau, Poste de travail]
users:
  - username: admin
    password: changeme
    permissions: [AdminAccess]
  - username: bruno
    password: secret1
    default_service: accueil
    permissions: [InformatiqueTicket]
`

func TestSeed(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	f, err := LoadSeedFile(path)
	require.NoError(t, err)

	res, err := a.Seed(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{Services: 2, ServiceIntervenants: 1, Categories: 2, Users: 2}, res)

	bruno, err := a.Repos.Users.GetByUsername(ctx, "bruno")
	require.NoError(t, err)
	require.NotNil(t, bruno.DefaultServiceID)

	t.Run("rerun creates nothing", func(t *testing.T) {
		res, err := a.Seed(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, &SeedResult{}, res)
	})

	t.Run("unknown service intervenant", func(t *testing.T) {
		_, err := a.Seed(ctx, &SeedFile{Categories: map[string][]string{"Jardin": {"Tonte"}}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown service intervenant")
	})

	t.Run("unknown default service", func(t *testing.T) {
		_, err := a.Seed(ctx, &SeedFile{Users: []SeedUser{{Username: "zoe", Password: "secret1", DefaultService: "Nulle part"}}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown service")
	})
}
