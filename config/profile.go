package config

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed naver_profile.yaml
var defaultProfileYAML []byte

// Profile is the static description of one crawl target: endpoint, request
// fingerprint, session cookies, region table and output columns. It is never
// mutated after loading; use the With* methods to derive a modified copy.
type Profile struct {
	Endpoint        string            `yaml:"endpoint"`
	Params          map[string]string `yaml:"params"`
	Cookies         map[string]string `yaml:"cookies"`
	Headers         map[string]string `yaml:"headers"`
	ChallengeMarker string            `yaml:"challenge_marker"`

	RegionField    string            `yaml:"region_field"`
	RegionFallback string            `yaml:"region_fallback"`
	RegionMissing  string            `yaml:"region_missing"`
	RegionCodes    map[string]string `yaml:"region_codes"`

	Columns []string `yaml:"columns"`
}

// DefaultProfile returns the embedded Seongdong-gu profile.
func DefaultProfile() (*Profile, error) {
	return ParseProfile(defaultProfileYAML)
}

// LoadProfile reads a profile from path, or the embedded default when path
// is empty.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %q: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that the fields the crawler cannot run without are set.
func (p *Profile) Validate() error {
	if p.Endpoint == "" {
		return fmt.Errorf("profile: endpoint is required")
	}
	if len(p.Columns) == 0 {
		return fmt.Errorf("profile: at least one output column is required")
	}
	if p.RegionField == "" {
		return fmt.Errorf("profile: region_field is required")
	}
	if p.RegionFallback == "" {
		p.RegionFallback = "기타지역(%s)"
	}
	if !validFallback(p.RegionFallback) {
		return fmt.Errorf("profile: region_fallback %q must contain exactly one %%s verb", p.RegionFallback)
	}
	if p.RegionMissing == "" {
		p.RegionMissing = "지역정보없음"
	}
	return nil
}

// validFallback reports whether format takes the region code as its only
// verb. Escaped percent signs are allowed.
func validFallback(format string) bool {
	rest := strings.ReplaceAll(format, "%%", "")
	return strings.Count(rest, "%") == 1 && strings.Count(rest, "%s") == 1
}

// WithCookies returns a copy of the profile whose cookie set is the union of
// the current cookies and c, with c taking precedence.
func (p *Profile) WithCookies(c map[string]string) *Profile {
	cp := p.clone()
	if cp.Cookies == nil {
		cp.Cookies = make(map[string]string, len(c))
	}
	maps.Copy(cp.Cookies, c)
	return cp
}

// Save writes the profile as YAML, creating parent directories.
func (p *Profile) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("profile: create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("profile: write %q: %w", path, err)
	}
	return nil
}

func (p *Profile) clone() *Profile {
	cp := *p
	cp.Params = maps.Clone(p.Params)
	cp.Cookies = maps.Clone(p.Cookies)
	cp.Headers = maps.Clone(p.Headers)
	cp.RegionCodes = maps.Clone(p.RegionCodes)
	cp.Columns = slices.Clone(p.Columns)
	return &cp
}
