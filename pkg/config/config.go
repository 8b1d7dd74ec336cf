package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of a swarm configuration file.
type Config struct {
	Connections []ConnectionConfig `yaml:"connections"`
	Agents      []AgentConfig      `yaml:"agents"`
	Swarm       SwarmConfig        `yaml:"swarm"`
}

type SwarmConfig struct {
	JoinTimeout float64 `yaml:"join_timeout"` // seconds
}

type ConnectionConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"` // openai, gemini, local
	Model string `yaml:"model"`
}

type AgentConfig struct {
	Name                 string            `yaml:"name"`
	LoopDelay            float64           `yaml:"loop_delay"`     // seconds
	FallbackDelay        float64           `yaml:"fallback_delay"` // seconds
	Warmup               float64           `yaml:"warmup"`         // seconds
	Tasks                []TaskConfig      `yaml:"tasks"`
	Feeds                []FeedConfig      `yaml:"feeds"`
	TimeBasedMultipliers *MultiplierConfig `yaml:"time_based_multipliers"`
}

type TaskConfig struct {
	Name       string         `yaml:"name"`
	Connection string         `yaml:"connection"`
	Action     string         `yaml:"action"`
	Weight     float64        `yaml:"weight"`
	Category   string         `yaml:"category"`
	Params     map[string]any `yaml:"params"`
}

type FeedConfig struct {
	Key        string         `yaml:"key"`
	Connection string         `yaml:"connection"`
	Action     string         `yaml:"action"`
	Params     map[string]any `yaml:"params"`
}

type MultiplierConfig struct {
	TweetNightMultiplier    float64 `yaml:"tweet_night_multiplier"`
	EngagementDayMultiplier float64 `yaml:"engagement_day_multiplier"`
}

// Load parses a YAML configuration file, applies defaults, and
// validates cross-references between agents and connections.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in the fields a minimal config leaves out.
func (c *Config) applyDefaults() {
	if c.Swarm.JoinTimeout <= 0 {
		c.Swarm.JoinTimeout = 5
	}
	for i := range c.Agents {
		a := &c.Agents[i]
		if a.LoopDelay <= 0 {
			a.LoopDelay = 30
		}
		if a.FallbackDelay <= 0 {
			a.FallbackDelay = 60
		}
		if a.Warmup < 0 {
			a.Warmup = 0
		}
		if m := a.TimeBasedMultipliers; m != nil {
			if m.TweetNightMultiplier <= 0 {
				m.TweetNightMultiplier = 0.4
			}
			if m.EngagementDayMultiplier <= 0 {
				m.EngagementDayMultiplier = 1.5
			}
		}
	}
}

func (c *Config) validate() error {
	connNames := make(map[string]bool)
	for _, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection without a name")
		}
		if connNames[conn.Name] {
			return fmt.Errorf("duplicate connection name %q", conn.Name)
		}
		connNames[conn.Name] = true
	}

	agentNames := make(map[string]bool)
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent without a name")
		}
		if agentNames[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		agentNames[a.Name] = true

		for _, task := range a.Tasks {
			if task.Weight < 0 {
				return fmt.Errorf("agent %s: task %s has negative weight", a.Name, task.Name)
			}
			if !connNames[task.Connection] {
				return fmt.Errorf("agent %s: task %s references unknown connection %q", a.Name, task.Name, task.Connection)
			}
		}
		for _, feed := range a.Feeds {
			if !connNames[feed.Connection] {
				return fmt.Errorf("agent %s: feed %s references unknown connection %q", a.Name, feed.Key, feed.Connection)
			}
		}
	}
	return nil
}
