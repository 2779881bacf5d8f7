package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"buildmatch/internal/domain"
)

// Config models buildmatch.yml.
type Config struct {
	Platform struct {
		ID   string `yaml:"id"`
		Kind string `yaml:"kind"`
	} `yaml:"platform"`
	Stages struct {
		Catalog map[string]StageEntry `yaml:"catalog"`
	} `yaml:"stages"`
	Board struct {
		Statuses []string `yaml:"statuses"`
	} `yaml:"board"`
	Webhooks []Webhook `yaml:"webhooks"`
}

type StageEntry struct {
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with bm config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return fmt.Errorf("config.platform.id is required")
	}
	if c.Platform.Kind != "collaboration-platform" {
		return fmt.Errorf("config.platform.kind must be 'collaboration-platform'")
	}
	for stage, entry := range c.Stages.Catalog {
		if !domain.ValidRIBAStage(stage) {
			return fmt.Errorf("config.stages.catalog references unknown stage %s", stage)
		}
		if entry.Label == "" {
			return fmt.Errorf("stage %s has empty label", stage)
		}
	}
	if len(c.Board.Statuses) > 0 {
		if len(c.Board.Statuses) != len(domain.TaskStatuses) {
			return fmt.Errorf("config.board.statuses must list all %d statuses", len(domain.TaskStatuses))
		}
		seen := map[string]bool{}
		for _, st := range c.Board.Statuses {
			if !domain.ValidTaskStatus(st) {
				return fmt.Errorf("config.board.statuses contains unknown status %s", st)
			}
			if seen[st] {
				return fmt.Errorf("config.board.statuses lists %s twice", st)
			}
			seen[st] = true
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		for _, evt := range hook.Events {
			if evt == "" {
				return fmt.Errorf("webhook %s has empty event filter", hook.URL)
			}
		}
	}
	return nil
}

// StageLabel returns the display label for a stage, falling back to the raw
// identifier when no catalog entry exists.
func (c *Config) StageLabel(stage domain.RIBAStage) string {
	if entry, ok := c.Stages.Catalog[string(stage)]; ok && entry.Label != "" {
		return entry.Label
	}
	return string(stage)
}

// BoardStatuses returns the configured board column order, or the built-in
// order when the config is silent.
func (c *Config) BoardStatuses() []domain.TaskStatus {
	if c == nil || len(c.Board.Statuses) == 0 {
		return domain.TaskStatuses
	}
	out := make([]domain.TaskStatus, 0, len(c.Board.Statuses))
	for _, st := range c.Board.Statuses {
		out = append(out, domain.TaskStatus(st))
	}
	return out
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "buildmatch.yml")
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a platform.
func Default(platformID string) *Config {
	var cfg Config
	cfg.Platform.ID = platformID
	cfg.Platform.Kind = "collaboration-platform"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, platformID))).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(platformID string) string {
	return fmt.Sprintf(defaultTemplate, platformID)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `platform:
  id: %s
  kind: collaboration-platform

stages:
  catalog:
    STAGE_0:
      label: "Strategic Definition"
      description: "Business case and strategic brief"
    STAGE_1:
      label: "Preparation and Briefing"
      description: "Project brief, feasibility, site information"
    STAGE_2:
      label: "Concept Design"
      description: "Architectural concept aligned with the brief"
    STAGE_3:
      label: "Spatial Coordination"
      description: "Spatially coordinated design and planning application"
    STAGE_4:
      label: "Technical Design"
      description: "All information required to manufacture and construct"
    STAGE_5:
      label: "Manufacturing and Construction"
      description: "Works on site through practical completion"
    STAGE_6:
      label: "Handover"
      description: "Building handover and close out"
    STAGE_7:
      label: "Use"
      description: "In use, aftercare and post occupancy evaluation"

board:
  statuses: [BACKLOG, TODO, IN_PROGRESS, REVIEW, DONE]

webhooks: []
`
