package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type SecretType string

const (
	SecretTypeHex      SecretType = "hex"
	SecretTypePassword SecretType = "password"
)

// Synthesizer writes a config.yaml overlay holding freshly generated
// secrets. Values already present in the file are kept unless rotated.
type Synthesizer struct {
	outputPath string
	env        string
	generated  int
}

func NewSynthesizer(outputPath, env string) *Synthesizer {
	if env == "" {
		env = "development"
	}
	return &Synthesizer{outputPath: outputPath, env: env}
}

func (s *Synthesizer) GenerateSecret(secretType SecretType, length int) (string, error) {
	switch secretType {
	case SecretTypeHex:
		return s.generateHex(length)
	case SecretTypePassword:
		return s.generatePassword(length)
	default:
		return "", fmt.Errorf("unknown secret type: %s", secretType)
	}
}

func (s *Synthesizer) generateHex(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// generatePassword returns URL-safe base64, free of shell and YAML
// metacharacters.
func (s *Synthesizer) generatePassword(length int) (string, error) {
	if length < 12 {
		length = 12
	}
	bytes := make([]byte, (length*3)/4+1)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	result := base64.RawURLEncoding.EncodeToString(bytes)
	if len(result) > length {
		result = result[:length]
	}
	return result, nil
}

// prefix marks non-production secrets so the SecretValidator accepts them
// outside production only.
func (s *Synthesizer) prefix() string {
	switch s.env {
	case "development", "dev":
		return "dev-"
	case "test", "testing":
		return "test-"
	}
	return ""
}

// Synthesize writes the overlay. With rotate, existing secrets are replaced;
// other keys of an existing file are always preserved.
func (s *Synthesizer) Synthesize(rotate bool) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	jwt, err := s.GenerateSecret(SecretTypeHex, 64)
	if err != nil {
		return err
	}
	dbPassword, err := s.GenerateSecret(SecretTypePassword, 24)
	if err != nil {
		return err
	}

	setPath(doc, []string{"app", "env"}, s.env, false)
	s.put(doc, []string{"auth", "jwt", "secret"}, s.prefix()+jwt, rotate)
	s.put(doc, []string{"database", "password"}, dbPassword, rotate)

	if err := os.MkdirAll(filepath.Dir(s.outputPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	header := "# Generated by 'bdt synthesize'. Keep this file out of version control.\n"
	if err := os.WriteFile(s.outputPath, append([]byte(header), out...), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.outputPath, err)
	}
	return nil
}

func (s *Synthesizer) put(doc map[string]interface{}, path []string, value string, rotate bool) {
	if setPath(doc, path, value, rotate) {
		s.generated++
	}
}

func (s *Synthesizer) load() (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	data, err := os.ReadFile(s.outputPath)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.outputPath, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.outputPath, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

// setPath stores value at path unless a non-empty value is already there
// and overwrite is false. It reports whether the value was written.
func setPath(doc map[string]interface{}, path []string, value string, overwrite bool) bool {
	node := doc
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[key] = child
		}
		node = child
	}
	last := path[len(path)-1]
	if existing, ok := node[last].(string); ok && strings.TrimSpace(existing) != "" && !overwrite {
		return false
	}
	node[last] = value
	return true
}

// GetGeneratedCount returns how many secrets the last Synthesize wrote.
func (s *Synthesizer) GetGeneratedCount() int {
	return s.generated
}
