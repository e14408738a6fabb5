package config

import (
	"fmt"
	"strings"
)

const exampleJWTSecret = "CHANGE_THIS_SECRET_KEY_BEFORE_USE"

// SecretValidator checks that secrets are safe for the configured
// environment.
type SecretValidator struct {
	config   *Config
	errors   []string
	warnings []string
}

func NewSecretValidator(cfg *Config) *SecretValidator {
	return &SecretValidator{
		config:   cfg,
		errors:   []string{},
		warnings: []string{},
	}
}

// Validate returns an error listing every blocking problem. Problems are
// only blocking in production; elsewhere they are reported by Warnings.
func (v *SecretValidator) Validate() error {
	isProduction := v.config.App.IsProduction()

	v.validateJWTSecret(isProduction)
	v.validateDatabasePassword(isProduction)

	if len(v.errors) > 0 {
		return fmt.Errorf("secret validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

// Warnings returns the non-blocking findings of the last Validate call.
func (v *SecretValidator) Warnings() []string {
	return v.warnings
}

func (v *SecretValidator) validateJWTSecret(isProduction bool) {
	secret := v.config.Auth.JWT.Secret

	if secret == "" {
		v.addError("auth.jwt.secret is not set", isProduction)
		return
	}
	if secret == exampleJWTSecret {
		v.addError("auth.jwt.secret is using the default example value", isProduction)
		return
	}
	if !isProduction && (strings.HasPrefix(secret, "dev-") || strings.HasPrefix(secret, "test-")) {
		return
	}
	if len(secret) < 32 {
		v.addError("auth.jwt.secret must be at least 32 characters long", isProduction)
	}
}

func (v *SecretValidator) validateDatabasePassword(isProduction bool) {
	db := v.config.Database
	if db.Driver == "sqlite" || db.Driver == "sqlite3" {
		return
	}
	if db.Password == "" {
		v.addWarning("database.password is not set")
		return
	}
	if db.Password == "bdt" || db.Password == "password" {
		v.addError("database.password is using a well-known value", isProduction)
	}
}

func (v *SecretValidator) addError(msg string, isProduction bool) {
	if isProduction {
		v.errors = append(v.errors, "  ✗ "+msg)
	} else {
		v.warnings = append(v.warnings, "  ⚠ "+msg)
	}
}

func (v *SecretValidator) addWarning(msg string) {
	v.warnings = append(v.warnings, "  ⚠ "+msg)
}
