package prefabs

import (
	"fmt"

	"github.com/milk9111/navkit/common"
	"gopkg.in/yaml.v3"
)

// ScenarioSpec places agents on a level and gives each a destination.
type ScenarioSpec struct {
	Name   string           `yaml:"name"`
	Level  string           `yaml:"level"`
	Ticks  int              `yaml:"ticks"`
	Agents []AgentBuildSpec `yaml:"agents"`
}

// AgentBuildSpec is one agent in a scenario. Overrides replace fields of the base actor spec
// using the same keys as nav_agent.yaml.
type AgentBuildSpec struct {
	Name      string         `yaml:"name"`
	Spawn     [2]int         `yaml:"spawn"`
	Goal      [2]int         `yaml:"goal"`
	Async     bool           `yaml:"async"`
	Overrides map[string]any `yaml:"overrides"`
}

func (a AgentBuildSpec) SpawnCell() common.Cell { return common.Cell{X: a.Spawn[0], Y: a.Spawn[1]} }

func (a AgentBuildSpec) GoalCell() common.Cell { return common.Cell{X: a.Goal[0], Y: a.Goal[1]} }

func LoadScenarioSpec(filename string) (ScenarioSpec, error) {
	return LoadSpec[ScenarioSpec](filename)
}

// Actor returns base with this agent's overrides applied.
func (a AgentBuildSpec) Actor(base ActorSpec) (ActorSpec, error) {
	if len(a.Overrides) == 0 {
		return base, nil
	}
	out, err := DecodeOnto(base, a.Overrides)
	if err != nil {
		return base, fmt.Errorf("prefabs: agent %s overrides: %w", a.Name, err)
	}
	return out, nil
}

// DecodeOnto re-encodes raw YAML and decodes it over a copy of base, so only keys present in raw
// change.
func DecodeOnto[T any](base T, raw any) (T, error) {
	if raw == nil {
		return base, nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return base, err
	}
	out := base
	if err := yaml.Unmarshal(b, &out); err != nil {
		return base, err
	}
	return out, nil
}
