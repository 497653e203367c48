package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/levels"
	"github.com/milk9111/navkit/nav"
	"github.com/milk9111/navkit/physics"
	"github.com/milk9111/navkit/prefabs"
	"github.com/milk9111/navkit/sim"
	"github.com/milk9111/navkit/tilemap"
)

const (
	baseWidth  = 1280
	baseHeight = 720
	tps        = 60
)

type Options struct {
	Level    string
	Profile  string
	Watch    bool
	UseSpace bool
	Metrics  *nav.Metrics
}

type Game struct {
	frames int
	opts   Options

	world   *sim.World
	actor   *sim.Actor
	view    *LevelView
	navSpec *prefabs.NavSpec
	watcher *prefabs.Watcher

	showLinks  bool
	showShapes bool
}

func NewGame(opts Options) (*Game, error) {
	g := &Game{opts: opts}
	m, simOpts, err := g.load()
	if err != nil {
		return nil, err
	}
	w, err := sim.NewWorld(m, simOpts)
	if err != nil {
		return nil, err
	}
	a, err := w.Spawn("agent", m.Spawn, simOpts.Actor)
	if err != nil {
		w.Close()
		return nil, err
	}
	g.world, g.actor = w, a
	g.view = NewLevelView(m, g.navSpec)

	if opts.Watch {
		dirs := []string{"prefabs"}
		if isLevelFile(opts.Level) {
			dirs = append(dirs, filepath.Dir(opts.Level))
		}
		watcher, err := prefabs.NewWatcher(dirs...)
		if err != nil {
			log.Printf("game: hot reload disabled: %v", err)
		} else {
			g.watcher = watcher
		}
	}
	ebiten.SetTPS(tps)
	return g, nil
}

// load reads the level and both specs.
func (g *Game) load() (*tilemap.Map, sim.Options, error) {
	var m *tilemap.Map
	var err error
	if isLevelFile(g.opts.Level) {
		m, err = tilemap.Load(g.opts.Level)
	} else {
		m, err = levels.Load(g.opts.Level)
	}
	if err != nil {
		return nil, sim.Options{}, err
	}

	actor, err := prefabs.LoadSpec[prefabs.ActorSpec](g.opts.Profile)
	if err != nil {
		return nil, sim.Options{}, err
	}
	navSpec, err := prefabs.LoadNavSpec()
	if err != nil {
		return nil, sim.Options{}, err
	}
	g.navSpec = navSpec
	return m, sim.Options{Actor: actor, Nav: *navSpec, UseSpace: g.opts.UseSpace, Metrics: g.opts.Metrics}, nil
}

func isLevelFile(name string) bool {
	if !strings.HasSuffix(strings.ToLower(name), ".json") {
		return false
	}
	_, err := os.Stat(name)
	return err == nil
}

func (g *Game) reload(path string) {
	m, opts, err := g.load()
	if err != nil {
		log.Printf("game: reload %s: %v", path, err)
		return
	}
	if err := g.world.Rebuild(m, opts); err != nil {
		log.Printf("game: rebuild after %s: %v", path, err)
		return
	}
	g.actor, _ = g.world.Actor("agent")
	g.view = NewLevelView(m, g.navSpec)
	log.Printf("game: reloaded %s", path)
}

func (g *Game) pollWatcher() {
	if g.watcher == nil {
		return
	}
	for {
		select {
		case path, ok := <-g.watcher.Events:
			if !ok {
				g.watcher = nil
				return
			}
			g.reload(path)
		case err, ok := <-g.watcher.Errors:
			if ok {
				log.Printf("game: watch: %v", err)
			}
		default:
			return
		}
	}
}

func (g *Game) Update() error {
	g.frames++
	g.pollWatcher()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.actor.Agent.SetDestinationAsync(g.cursorWorld())
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		g.actor.Agent.SetDestination(g.cursorWorld())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.actor.Agent.Stop()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		g.actor.Agent.PassThrough()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyL) {
		g.showLinks = !g.showLinks
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.showShapes = !g.showShapes
	}

	g.world.Step(1.0 / tps)
	for _, e := range g.world.Events().Drain() {
		if e.Kind == sim.EventArrived {
			log.Printf("game: %s arrived at tick %d", e.Actor, e.Tick)
		}
	}
	return nil
}

func (g *Game) cursorWorld() cp.Vector {
	x, y := ebiten.CursorPosition()
	return g.view.ToWorld(float64(x), float64(y))
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.view.Draw(screen)
	if sq, ok := g.world.Query.(*physics.SpaceQuery); ok && g.showShapes {
		g.view.DrawSpace(screen, sq)
	}
	g.view.DrawGraph(screen, g.world.Graph, g.showLinks)
	g.view.DrawPath(screen, g.actor.Agent.Path(), g.actor.Agent.Cursor())
	g.view.DrawBody(screen, g.actor.Mover.Bounds(), g.actor.Mover.IsGrounded())

	a := g.actor.Agent
	s := a.Stats()
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"FPS: %.2f  state: %v  nodes: %d  links: %d\nreplans: %d (stuck %d, landing %d)  jumps: %d  abandoned: %d\nLMB async goal  RMB sync goal  S stop  Down drop  L links  C shapes",
		ebiten.ActualFPS(), a.State(), g.world.Graph.Len(), g.world.Graph.ConnectionCount(),
		s.Replans, s.StuckReplans, s.LandingReplans, s.Jumps, s.Abandoned,
	))
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}

func (g *Game) Close() {
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
	g.world.Close()
}
