// Package config loads the startup configuration: a single JSON config
// keyed by provider type plus a companion models.json, both hot-reloadable
// via an explicit Reload operation. Reads try the given path first and
// fall back to the executable's directory, so a binary run from anywhere
// still finds the files shipped next to it.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/provider"
)

// ProfileSpec is the on-disk shape of one provider profile entry, decoded
// into a provider.Profile by Config.Profiles.
type ProfileSpec struct {
	ID                string             `json:"id"`
	BaseURL           string             `json:"baseUrl,omitempty"`
	APIKeyEnv         string             `json:"apiKeyEnv,omitempty"`
	Priority          int                `json:"priority"`
	AllowedModels     []string           `json:"allowedModels,omitempty"`
	ModelCosts        map[string]float64 `json:"modelCosts,omitempty"`
	AllowedUserGroups []string           `json:"allowedUserGroups,omitempty"`
	EligibilityExpr   string             `json:"eligibilityExpr,omitempty"`
}

// Doc is the top-level shape of config.json.
type Doc struct {
	Providers       map[string][]ProfileSpec  `json:"providers"`
	LoadBalancing   map[string]string         `json:"loadBalancing"`
	DefaultProfiles map[string]string         `json:"defaultProfiles"`
	DefaultModel    string                    `json:"defaultModel"`
	Features        map[string]bool           `json:"features"`
	Currencies      []string                  `json:"currencies"`
	ModelAliases    map[string]string         `json:"modelAliases,omitempty"`
	ContextDefaults map[string]map[string]int `json:"contextDefaults,omitempty"`
}

// ModelInfo is one entry of models.json: display metadata and setting
// ranges for a model.
type ModelInfo struct {
	ID           string         `json:"id"`
	DisplayName  string         `json:"displayName"`
	UpstreamID   string         `json:"upstreamId,omitempty"`
	ContextLimit int            `json:"contextLimit"`
	SettingRange map[string]any `json:"settingRange,omitempty"`
}

// ModelsDoc is the top-level shape of models.json.
type ModelsDoc struct {
	Models []ModelInfo `json:"models"`
}

// Config is the live, hot-reloadable configuration surface. Readers call
// Current()/CurrentModels() to get a consistent snapshot; Reload swaps
// both snapshots through atomic.Value so concurrent readers never observe
// a torn swap.
type Config struct {
	baseDir    string
	configPath string
	modelsPath string
	doc        atomic.Value // *Doc
	models     atomic.Value // *ModelsDoc
	reloadMu   sync.Mutex
}

// Load reads configPath/modelsPath once (relative to baseDir, falling back
// to the executable directory) and returns a Config ready for use.
func Load(baseDir, configPath, modelsPath string) (*Config, error) {
	c := &Config{baseDir: baseDir, configPath: configPath, modelsPath: modelsPath}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads both files from disk and atomically swaps the live
// snapshots.
func (c *Config) Reload() error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	var doc Doc
	if err := c.readJSON(c.configPath, &doc); err != nil {
		return err
	}
	var models ModelsDoc
	if err := c.readJSON(c.modelsPath, &models); err != nil {
		return err
	}
	c.doc.Store(&doc)
	c.models.Store(&models)
	return nil
}

func (c *Config) readJSON(relPath string, target any) error {
	data, err := readWithFallback(c.baseDir, relPath)
	if err != nil {
		return errs.Wrap(err, errs.IoError, "read config file "+relPath)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errs.Wrap(err, errs.Validation, "parse config file "+relPath)
	}
	return nil
}

// readWithFallback tries baseDir/relPath, then falls back to the
// executable's directory.
func readWithFallback(baseDir, relPath string) ([]byte, error) {
	primary := filepath.Join(baseDir, relPath)
	data, err := os.ReadFile(primary)
	if err == nil {
		return data, nil
	}
	exe, exeErr := os.Executable()
	if exeErr != nil {
		return nil, err
	}
	fallback := filepath.Join(filepath.Dir(exe), baseDir, relPath)
	return os.ReadFile(fallback)
}

// Current returns the live config document.
func (c *Config) Current() *Doc {
	return c.doc.Load().(*Doc)
}

// CurrentModels returns the live models document.
func (c *Config) CurrentModels() *ModelsDoc {
	return c.models.Load().(*ModelsDoc)
}

// ModelAliases exposes the configured modelId->upstream-id table for
// provider.ResolveModelID; explicit entries take precedence over the
// built-in legacy fallbacks.
func (c *Config) ModelAliases() map[string]string {
	return c.Current().ModelAliases
}

// Profiles decodes the configured profiles for providerType into
// provider.Profile values ready for Selector.SetProfiles.
func (c *Config) Profiles(providerType string) []provider.Profile {
	specs := c.Current().Providers[providerType]
	out := make([]provider.Profile, 0, len(specs))
	for _, s := range specs {
		out = append(out, provider.Profile{
			ID:                s.ID,
			ProviderType:      providerType,
			Priority:          s.Priority,
			AllowedModels:     s.AllowedModels,
			ModelCosts:        s.ModelCosts,
			AllowedUserGroups: s.AllowedUserGroups,
			EligibilityExpr:   s.EligibilityExpr,
		})
	}
	return out
}

// Strategy returns the configured load-balancing strategy for
// providerType, or empty if unset (the Selector falls back to its own
// default).
func (c *Config) Strategy(providerType string) provider.Strategy {
	return provider.Strategy(c.Current().LoadBalancing[providerType])
}
