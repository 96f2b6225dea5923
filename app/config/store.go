package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store keeps the current Settings in memory and mirrors them to a YAML file.
type Store struct {
	path     string
	settings Settings
	mu       sync.RWMutex
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		settings: Defaults(),
	}
}

func Defaults() Settings {
	return Settings{
		PromptTemplate:   DefaultPromptTemplate,
		ExpiryMinutes:    DefaultExpiryMinutes,
		FetchStrategy:    FetchEnhanced,
		DebugMode:        DebugReview,
		MinContentLength: DefaultMinContentLength,
	}
}

// Load reads the settings file. A missing file leaves the defaults in place.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		slog.Debug("Settings file not found, using defaults", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := Defaults()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	normalize(&settings)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings

	slog.Debug("Settings loaded", "path", s.path, "fetch_strategy", settings.FetchStrategy, "expiry_minutes", settings.ExpiryMinutes)

	return nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.settings
	settings.InternalHosts = slices.Clone(s.settings.InternalHosts)
	return settings
}

// Update normalizes and persists new settings. An empty GitHub token in the
// update keeps the stored one.
func (s *Store) Update(settings Settings) (Settings, error) {
	normalize(&settings)

	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.GitHubToken == "" || strings.HasPrefix(settings.GitHubToken, "****") {
		settings.GitHubToken = s.settings.GitHubToken
	}

	if err := s.write(settings); err != nil {
		return Settings{}, err
	}
	s.settings = settings

	return settings, nil
}

func (s *Store) write(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	return nil
}

func normalize(settings *Settings) {
	if settings.ExpiryMinutes == 0 {
		settings.ExpiryMinutes = DefaultExpiryMinutes
	}
	if settings.ExpiryMinutes < MinExpiryMinutes {
		settings.ExpiryMinutes = MinExpiryMinutes
	}

	switch settings.FetchStrategy {
	case FetchEnhanced, FetchCookieFreeOnly, FetchInternalOnly, FetchStandard:
	default:
		settings.FetchStrategy = FetchEnhanced
	}

	switch settings.DebugMode {
	case DebugProduction, DebugReview, DebugVerbose:
	default:
		settings.DebugMode = DebugReview
	}

	if settings.MinContentLength <= 0 {
		settings.MinContentLength = DefaultMinContentLength
	}

	hosts := make([]string, 0, len(settings.InternalHosts))
	for _, host := range settings.InternalHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" && !slices.Contains(hosts, host) {
			hosts = append(hosts, host)
		}
	}
	settings.InternalHosts = hosts

	settings.GitHubToken = strings.TrimSpace(settings.GitHubToken)
}
