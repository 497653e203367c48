package prefabs

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/milk9111/navkit/agent"
	"github.com/milk9111/navkit/nav"
	"github.com/milk9111/navkit/physics"
	"gopkg.in/yaml.v3"
)

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// ActorSpec describes a navigating actor. Lengths are in cells, speeds in cells per second.
type ActorSpec struct {
	Name             string  `yaml:"name"`
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	SkinWidth        float64 `yaml:"skin_width"`
	HorizontalRays   int     `yaml:"horizontal_rays"`
	VerticalRays     int     `yaml:"vertical_rays"`
	MaxSlopeAngle    float64 `yaml:"max_slope_angle"`
	Gravity          float64 `yaml:"gravity"`
	MaxFallSpeed     float64 `yaml:"max_fall_speed"`
	PassThroughGrace float64 `yaml:"pass_through_grace"`

	MoveSpeed        float64 `yaml:"move_speed"`
	JumpHeight       float64 `yaml:"jump_height"`
	MaxJumpDistance  float64 `yaml:"max_jump_distance"`
	MaxFallHeight    float64 `yaml:"max_fall_height"`
	ShortHopDistance float64 `yaml:"short_hop_distance"`
	JumpClearance    float64 `yaml:"jump_clearance"`
	ReachDistance    float64 `yaml:"reach_distance"`
	ArriveDistance   float64 `yaml:"arrive_distance"`
	StuckInterval    float64 `yaml:"stuck_interval"`
	StuckDistance    float64 `yaml:"stuck_distance"`
}

func LoadActorSpec() (*ActorSpec, error) {
	spec, err := LoadSpec[ActorSpec]("nav_agent.yaml")
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

func setScaled(dst *float64, v, scale float64) {
	if v != 0 {
		*dst = v * scale
	}
}

// MoverConfig converts the spec for a map with the given cell size. Zero fields keep the
// physics defaults.
func (s *ActorSpec) MoverConfig(cell float64) physics.Config {
	cfg := physics.DefaultConfig(cell)
	setScaled(&cfg.Width, s.Width, cell)
	setScaled(&cfg.Height, s.Height, cell)
	setScaled(&cfg.SkinWidth, s.SkinWidth, cell)
	setScaled(&cfg.Gravity, s.Gravity, cell)
	setScaled(&cfg.MaxFallSpeed, s.MaxFallSpeed, cell)
	setScaled(&cfg.MaxSlopeAngle, s.MaxSlopeAngle, 1)
	setScaled(&cfg.PassThroughGrace, s.PassThroughGrace, 1)
	if s.HorizontalRays > 0 {
		cfg.HorizontalRays = s.HorizontalRays
	}
	if s.VerticalRays > 0 {
		cfg.VerticalRays = s.VerticalRays
	}
	return cfg
}

// Profile is the actor profile the navigation graph is generated for.
func (s *ActorSpec) Profile(cell float64) nav.ActorProfile {
	body := s.MoverConfig(cell)
	ac := s.AgentConfig(cell)
	p := nav.ActorProfile{
		Height:          body.Height,
		Width:           body.Width,
		JumpHeight:      ac.JumpHeight,
		MaxJumpDistance: ac.MaxJumpDistance,
	}
	setScaled(&p.MaxFallHeight, s.MaxFallHeight, cell)
	return p
}

func (s *ActorSpec) AgentConfig(cell float64) agent.Config {
	cfg := agent.DefaultConfig(cell)
	setScaled(&cfg.Speed, s.MoveSpeed, cell)
	setScaled(&cfg.Gravity, s.Gravity, cell)
	setScaled(&cfg.JumpHeight, s.JumpHeight, cell)
	setScaled(&cfg.MaxJumpDistance, s.MaxJumpDistance, cell)
	setScaled(&cfg.ShortHopDistance, s.ShortHopDistance, cell)
	setScaled(&cfg.JumpClearance, s.JumpClearance, cell)
	setScaled(&cfg.ReachDistance, s.ReachDistance, cell)
	setScaled(&cfg.ArriveDistance, s.ArriveDistance, cell)
	setScaled(&cfg.StuckDistance, s.StuckDistance, cell)
	setScaled(&cfg.StuckInterval, s.StuckInterval, 1)
	return cfg
}

type CostSpec struct {
	Walk            float64 `yaml:"walk"`
	Jump            float64 `yaml:"jump"`
	Fall            float64 `yaml:"fall"`
	TransparentJump float64 `yaml:"transparent_jump"`
	TransparentFall float64 `yaml:"transparent_fall"`
	SlopeUp         float64 `yaml:"slope_up"`
	SlopeDown       float64 `yaml:"slope_down"`
}

type DebugSpec struct {
	Walkable    *YAMLColor `yaml:"walkable"`
	Jumpable    *YAMLColor `yaml:"jumpable"`
	Transparent *YAMLColor `yaml:"transparent"`
	Link        *YAMLColor `yaml:"link"`
	Path        *YAMLColor `yaml:"path"`
}

// NavSpec tunes graph generation and planning. Lengths are in cells.
type NavSpec struct {
	NodeOffset      float64   `yaml:"node_offset"`
	WalkTolerance   float64   `yaml:"walk_tolerance"`
	MaxSnapDistance float64   `yaml:"max_snap_distance"`
	Workers         int       `yaml:"workers"`
	Costs           CostSpec  `yaml:"costs"`
	Debug           DebugSpec `yaml:"debug"`
}

func LoadNavSpec() (*NavSpec, error) {
	spec, err := LoadSpec[NavSpec]("nav.yaml")
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// PlannerCosts converts the cost table; zero entries fall back to nav.DefaultCosts.
func (s *NavSpec) PlannerCosts() nav.Costs {
	c := s.Costs
	return nav.Costs{
		Walk:            c.Walk,
		Jump:            c.Jump,
		Fall:            c.Fall,
		TransparentJump: c.TransparentJump,
		TransparentFall: c.TransparentFall,
		SlopeUp:         c.SlopeUp,
		SlopeDown:       c.SlopeDown,
	}
}

func (s *NavSpec) PlannerOptions(cell float64) []nav.Option {
	var opts []nav.Option
	if s.Workers > 0 {
		opts = append(opts, nav.WithWorkers(s.Workers))
	}
	if s.MaxSnapDistance > 0 {
		opts = append(opts, nav.WithMaxSnapDistance(s.MaxSnapDistance*cell))
	}
	return opts
}

// Configure copies the generation settings onto b. b.Map must be set.
func (s *NavSpec) Configure(b *nav.Builder) {
	cell := b.Map.CellSize
	setScaled(&b.NodeOffset, s.NodeOffset, cell)
	setScaled(&b.WalkTolerance, s.WalkTolerance, cell)
}

type YAMLColor struct {
	color.Color
}

// Or returns c, or fallback when c is unset.
func (c *YAMLColor) Or(fallback color.Color) color.Color {
	if c == nil || c.Color == nil {
		return fallback
	}
	return c.Color
}

func (c *YAMLColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}

	s := strings.TrimPrefix(value.Value, "#")

	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	r, err := parse(0)
	if err != nil {
		return err
	}
	g, err := parse(2)
	if err != nil {
		return err
	}
	b, err := parse(4)
	if err != nil {
		return err
	}

	a := uint8(255)
	if len(s) == 8 {
		a, err = parse(6)
		if err != nil {
			return err
		}
	}

	c.Color = color.NRGBA{R: r, G: g, B: b, A: a}
	return nil
}
