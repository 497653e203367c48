package sim

import (
	"github.com/milk9111/navkit/agent"
	"github.com/milk9111/navkit/common"
)

// AgentSystem steers every agent. It must run before MoverSystem.
type AgentSystem struct{}

func (AgentSystem) Update(w *World, dt float64) {
	for _, a := range w.actors {
		a.Agent.Tick(dt)
	}
}

type MoverSystem struct{}

func (MoverSystem) Update(w *World, dt float64) {
	for _, a := range w.actors {
		a.Mover.Tick(dt)
	}
}

// StateSystem pushes an event whenever an agent changes state or replans.
type StateSystem struct{}

func (StateSystem) Update(w *World, _ float64) {
	for _, a := range w.actors {
		state := a.Agent.State()
		replans := a.Agent.Stats().Replans
		if replans > a.lastReplans && a.lastReplans > 0 {
			w.events.Push(Event{Tick: w.tick, Actor: a.Name, Kind: EventReplanned, From: a.lastState, To: state})
		}
		a.lastReplans = replans
		if state == a.lastState {
			continue
		}
		w.events.Push(Event{Tick: w.tick, Actor: a.Name, Kind: EventStateChanged, From: a.lastState, To: state})
		if state == agent.Stopped && a.arrived() {
			w.events.Push(Event{Tick: w.tick, Actor: a.Name, Kind: EventArrived, From: a.lastState, To: state})
		}
		a.lastState = state
	}
}

// arrived reports whether the actor's feet are within half a cell of its goal.
func (a *Actor) arrived() bool {
	goal, ok := a.Agent.Goal()
	if !ok {
		return false
	}
	pos := a.Mover.Position()
	half := a.cell / 2
	return common.ApproxEqual(pos.X, goal.X, half) && common.ApproxEqual(pos.Y, goal.Y, half)
}
