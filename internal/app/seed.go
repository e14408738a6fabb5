package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/service"
)

// SeedFile describes the reference data loaded by `bdt seed`.
//
//	services: [Accueil, Comptabilité]
//	service_intervenants: [Informatique, Technique]
//	categories:
//	  Informatique: [Réseau, Poste de travail]
//	users:
//	  - username: admin
//	    password: changeme
//	    default_service: Accueil
//	    permissions: [AdminAccess]
type SeedFile struct {
	Services            []string   `yaml:"services"`
	ServiceIntervenants []string            `yaml:"service_intervenants"`
	Categories          map[string][]string `yaml:"categories"`
	Users               []SeedUser          `yaml:"users"`
}

type SeedUser struct {
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Site           string   `yaml:"site"`
	DefaultService string   `yaml:"default_service"`
	Locked         bool     `yaml:"locked"`
	Permissions    []string `yaml:"permissions"`
}

// SeedResult counts the rows created by a seed run.
type SeedResult struct {
	Services            int
	ServiceIntervenants int
	Categories          int
	Users               int
}

// LoadSeedFile reads a seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// Seed creates the services, service intervenants, categories and users of
// f that do not exist yet. Existing rows are left untouched so a seed can be rerun.
func (a *App) Seed(ctx context.Context, f *SeedFile) (*SeedResult, error) {
	res := &SeedResult{}

	services, err := a.seedLookup(ctx, a.Services, f.Services, &res.Services)
	if err != nil {
		return res, fmt.Errorf("services: %w", err)
	}
	// Users come last: permission tags are validated against the service
	// intervenant names.
	intervenants, err := a.seedLookup(ctx, a.ServiceIntervenants, f.ServiceIntervenants, &res.ServiceIntervenants)
	if err != nil {
		return res, fmt.Errorf("service intervenants: %w", err)
	}

	for serviceName, names := range f.Categories {
		id, ok := intervenants[strings.ToLower(strings.TrimSpace(serviceName))]
		if !ok {
			return res, fmt.Errorf("categories: unknown service intervenant %q", serviceName)
		}
		for _, name := range names {
			_, err := a.Categories.Create(ctx, SystemActor, &models.CategoryRequest{Name: name, ServiceIntervenantID: id})
			if errors.Is(err, service.ErrConflict) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("category %s: %w", name, err)
			}
			res.Categories++
		}
	}

	for _, su := range f.Users {
		_, err := a.Repos.Users.GetByUsername(ctx, su.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return res, err
		}
		req := &models.CreateUserRequest{
			Username:    su.Username,
			Password:    su.Password,
			Site:        su.Site,
			IsLock:      su.Locked,
			Permissions: su.Permissions,
		}
		if su.DefaultService != "" {
			id, ok := services[strings.ToLower(su.DefaultService)]
			if !ok {
				return res, fmt.Errorf("user %s: unknown service %q", su.Username, su.DefaultService)
			}
			req.DefaultServiceID = &id
		}
		if _, err := a.Users.Create(ctx, SystemActor, req); err != nil {
			return res, fmt.Errorf("user %s: %w", su.Username, err)
		}
		res.Users++
	}
	return res, nil
}

type lookupCreator interface {
	All(ctx context.Context) ([]*models.Service, error)
	Create(ctx context.Context, actor *models.User, name string) (*models.Service, error)
}

// seedLookup creates the missing names and returns every id by lower-cased
// name.
func (a *App) seedLookup(ctx context.Context, l lookupCreator, names []string, created *int) (map[string]int64, error) {
	rows, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(rows)+len(names))
	for _, r := range rows {
		ids[strings.ToLower(r.Name)] = r.ID
	}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := ids[key]; ok || key == "" {
			continue
		}
		row, err := l.Create(ctx, SystemActor, name)
		if err != nil {
			return nil, err
		}
		ids[key] = row.ID
		*created++
	}
	return ids, nil
}
