package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/levels"
	"github.com/milk9111/navkit/nav"
	"github.com/milk9111/navkit/prefabs"
	"github.com/milk9111/navkit/sim"
	"github.com/milk9111/navkit/tilemap"
)

func main() {
	levelName := flag.String("level", "", "embedded level name or path to a level .json")
	profile := flag.String("profile", "nav_agent.yaml", "actor spec in prefabs/")
	scenario := flag.String("scenario", "", "scenario spec in prefabs/ to simulate")
	from := flag.String("from", "", "start cell x,y")
	to := flag.String("to", "", "goal cell x,y")
	ticks := flag.Int("ticks", 0, "simulate an agent from -from to -to for this many ticks")
	useSpace := flag.Bool("space", false, "use the chipmunk space for collision queries")
	flag.Parse()

	actor, err := prefabs.LoadSpec[prefabs.ActorSpec](*profile)
	if err != nil {
		log.Fatal(err)
	}
	navSpec, err := prefabs.LoadNavSpec()
	if err != nil {
		log.Fatal(err)
	}

	var sc prefabs.ScenarioSpec
	if *scenario != "" {
		sc, err = prefabs.LoadScenarioSpec(*scenario)
		if err != nil {
			log.Fatal(err)
		}
		if *levelName == "" {
			*levelName = sc.Level
		}
		if *ticks == 0 {
			*ticks = sc.Ticks
		}
	}

	m, err := loadLevel(*levelName)
	if err != nil {
		log.Fatal(err)
	}
	w, err := sim.NewWorld(m, sim.Options{Actor: actor, Nav: *navSpec, UseSpace: *useSpace})
	if err != nil {
		log.Fatal(err)
	}
	defer w.Close()

	printStats(os.Stdout, w.Graph)

	if *from != "" && *to != "" {
		a, err := parseCell(*from)
		if err != nil {
			log.Fatal(err)
		}
		b, err := parseCell(*to)
		if err != nil {
			log.Fatal(err)
		}
		sc.Agents = append(sc.Agents, prefabs.AgentBuildSpec{
			Name:  "agent",
			Spawn: [2]int{a.X, a.Y},
			Goal:  [2]int{b.X, b.Y},
		})
		printPath(os.Stdout, w, a, b)
	}

	if *ticks > 0 && len(sc.Agents) > 0 {
		if err := simulate(w, actor, sc.Agents, *ticks); err != nil {
			log.Fatal(err)
		}
	}
}

func loadLevel(name string) (*tilemap.Map, error) {
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		if _, err := os.Stat(name); err == nil {
			return tilemap.Load(name)
		}
	}
	return levels.Load(name)
}

func parseCell(s string) (common.Cell, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return common.Cell{}, fmt.Errorf("navgraph: cell %q: want x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return common.Cell{}, fmt.Errorf("navgraph: cell %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return common.Cell{}, fmt.Errorf("navgraph: cell %q: %w", s, err)
	}
	return common.Cell{X: x, Y: y}, nil
}

func printStats(out io.Writer, g *nav.Graph) {
	flags := map[string]int{}
	links := map[nav.ConnectionType]int{}
	for _, n := range g.Nodes() {
		flags[n.Flags.String()]++
		for _, c := range n.Links {
			links[c.Type]++
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "graph\t%d\n", g.Generation())
	fmt.Fprintf(tw, "nodes\t%d\n", g.Len())
	for _, name := range slices.Sorted(maps.Keys(flags)) {
		fmt.Fprintf(tw, "  %s\t%d\n", name, flags[name])
	}
	fmt.Fprintf(tw, "connections\t%d\n", g.ConnectionCount())
	for _, t := range []nav.ConnectionType{nav.Walk, nav.Jump, nav.Fall, nav.TransparentJump, nav.TransparentFall} {
		fmt.Fprintf(tw, "  %s\t%d\n", t, links[t])
	}
	_ = tw.Flush()
}

func printPath(out io.Writer, w *sim.World, from, to common.Cell) {
	p, ok := w.Planner.FindPath(w.CellFeet(from), w.CellFeet(to))
	if !ok {
		fmt.Fprintf(out, "no path from %v to %v\n", from, to)
		return
	}
	fmt.Fprintf(out, "path %v -> %v: %d waypoints, cost %.2f\n", from, to, p.Len(), p.Cost)
	for i, wp := range p.Waypoints {
		fmt.Fprintf(out, "  %2d %-16s %v\n", i, wp.Via, wp.Node.Cell)
	}
}

func simulate(w *sim.World, base prefabs.ActorSpec, agents []prefabs.AgentBuildSpec, ticks int) error {
	for _, spec := range agents {
		actor, err := spec.Actor(base)
		if err != nil {
			return err
		}
		a, err := w.Spawn(spec.Name, spec.SpawnCell(), actor)
		if err != nil {
			return err
		}
		goal := w.CellFeet(spec.GoalCell())
		if spec.Async {
			a.Agent.SetDestinationAsync(goal)
		} else if !a.Agent.SetDestination(goal) {
			log.Printf("navgraph: %s has no path to %v", spec.Name, spec.GoalCell())
		}
	}

	const dt = 1.0 / 60
	for i := 0; i < ticks; i++ {
		w.Step(dt)
		for _, e := range w.Events().Drain() {
			switch e.Kind {
			case sim.EventArrived:
				fmt.Printf("tick %4d  %s arrived\n", e.Tick, e.Actor)
			case sim.EventStateChanged:
				fmt.Printf("tick %4d  %s %v -> %v\n", e.Tick, e.Actor, e.From, e.To)
			case sim.EventReplanned:
				fmt.Printf("tick %4d  %s replanned\n", e.Tick, e.Actor)
			}
		}
	}

	for _, a := range w.Actors() {
		pos := a.Mover.Position()
		s := a.Agent.Stats()
		fmt.Printf("%s: state %v at (%.1f, %.1f) replans %d stuck %d landing %d jumps %d abandoned %d\n",
			a.Name, a.Agent.State(), pos.X, pos.Y, s.Replans, s.StuckReplans, s.LandingReplans, s.Jumps, s.Abandoned)
	}
	return nil
}
