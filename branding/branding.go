// Package branding resolves the per-organisation look and feel returned with
// new embed sessions.
package branding

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config is the branding for one organisation. Fields not modelled here are
// carried through unchanged in Extras.
type Config struct {
	LogoURL         string `json:"logoUrl,omitempty"`
	FaviconURL      string `json:"faviconUrl,omitempty"`
	PrimaryColor    string `json:"primaryColor,omitempty"`
	SecondaryColor  string `json:"secondaryColor,omitempty"`
	FontFamily      string `json:"fontFamily,omitempty"`
	CustomTheme     string `json:"customTheme,omitempty"`
	WelcomeTitle    string `json:"welcomeTitle,omitempty"`
	WelcomeSubtitle string `json:"welcomeSubtitle,omitempty"`

	Extras map[string]json.RawMessage `json:"-"`
}

type knownFields Config

var knownKeys = map[string]struct{}{
	"logoUrl":         {},
	"faviconUrl":      {},
	"primaryColor":    {},
	"secondaryColor":  {},
	"fontFamily":      {},
	"customTheme":     {},
	"welcomeTitle":    {},
	"welcomeSubtitle": {},
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var known knownFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range knownKeys {
		delete(all, k)
	}
	*c = Config(known)
	if len(all) > 0 {
		c.Extras = all
	}
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(knownFields(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extras) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(c.Extras)+len(knownKeys))
	for k, v := range c.Extras {
		merged[k] = v
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// Lookup finds the branding of an organisation. A nil Config with a nil error
// means the organisation has no branding.
type Lookup interface {
	GetBrandingByOrgID(ctx context.Context, orgID string) (*Config, error)
}

// Static serves branding from a fixed org id to Config table, seeded once on
// first use.
type Static struct {
	once    sync.Once
	seed    func() (map[string]Config, error)
	configs map[string]Config
	err     error
}

var _ Lookup = (*Static)(nil)

// NewStatic serves the given table.
func NewStatic(configs map[string]Config) *Static {
	return &Static{seed: func() (map[string]Config, error) { return configs, nil }}
}

// NewFromFile serves the table stored as JSON in path. The file is read on the
// first lookup. An empty path yields a lookup with no branding.
func NewFromFile(path string) *Static {
	return &Static{seed: func() (map[string]Config, error) {
		if path == "" {
			return nil, nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "branding: read %s", path)
		}
		var configs map[string]Config
		if err := json.Unmarshal(raw, &configs); err != nil {
			return nil, errors.Wrapf(err, "branding: decode %s", path)
		}
		log.Info().Str("path", path).Int("organisations", len(configs)).Msg("Loaded branding")
		return configs, nil
	}}
}

func (s *Static) GetBrandingByOrgID(_ context.Context, orgID string) (*Config, error) {
	s.once.Do(func() {
		s.configs, s.err = s.seed()
	})
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.configs[orgID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
