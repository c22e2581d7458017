package page

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yml
var defaultProfile []byte

// Profile describes where the host page keeps lists, badges and bookmark cards.
type Profile struct {
	Sidebar           string `yaml:"sidebar"`
	ListLink          string `yaml:"list_link"`
	ListPathSegment   string `yaml:"list_path_segment"`
	ListPage          string `yaml:"list_page"` // {id} is replaced with the list identifier
	ListItem          string `yaml:"list_item"`
	Badge             string `yaml:"badge"`
	Main              string `yaml:"main"`
	Card              string `yaml:"card"`
	ArchivedAttribute string `yaml:"archived_attribute"`
	Stylesheet        string `yaml:"stylesheet"`
}

func DefaultProfile() (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(defaultProfile, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse default profile: %w", err)
	}
	return &profile, nil
}

// LoadProfile reads a profile override from path on top of the embedded defaults.
// An empty path returns the defaults.
func LoadProfile(path string) (*Profile, error) {
	profile, err := DefaultProfile()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}

		if err := yaml.Unmarshal(data, profile); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}

		slog.Debug("Profile loaded", "path", path)
	}

	if err := profile.validate(); err != nil {
		if path == "" {
			return nil, fmt.Errorf("invalid default profile: %w", err)
		}
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	return profile, nil
}

func (p *Profile) validate() error {
	required := map[string]string{
		"sidebar":           p.Sidebar,
		"list_link":         p.ListLink,
		"list_path_segment": p.ListPathSegment,
		"list_page":         p.ListPage,
		"list_item":         p.ListItem,
		"badge":             p.Badge,
		"main":              p.Main,
		"card":              p.Card,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", field)
		}
	}

	if !strings.HasPrefix(p.ListPathSegment, "/") || !strings.HasSuffix(p.ListPathSegment, "/") {
		return fmt.Errorf("list_path_segment must start and end with '/': %q", p.ListPathSegment)
	}
	if !strings.Contains(p.ListPage, "{id}") {
		return fmt.Errorf("list_page must contain {id}: %q", p.ListPage)
	}

	return nil
}
