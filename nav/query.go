package nav

import (
	"fmt"
	"log"
	"time"

	"github.com/jakecoffman/cp"
)

// Result is the outcome of an async request.
type Result struct {
	Seq   uint64
	Path  Path
	Found bool
	Err   error
}

// Query is one consumer's async handoff to a Planner. At most one request is in flight at a time.
// Results travel over a one-slot channel tagged with the request sequence, so a late result from
// a superseded request is recognised and dropped.
//
// Request, Poll, Invalidate and Pending must be called from the owning goroutine (the tick loop).
type Query struct {
	p       *Planner
	results chan Result
	// latest is the only sequence number whose result Poll will deliver.
	latest   uint64
	next     uint64
	inflight uint64
	pending  bool
	done     chan struct{}
}

func (p *Planner) NewQuery() *Query {
	return &Query{
		p:       p,
		results: make(chan Result, 1),
	}
}

// Pending reports whether a request is still being searched.
func (q *Query) Pending() bool {
	if !q.pending {
		return false
	}
	select {
	case <-q.done:
		q.pending = false
	default:
	}
	return q.pending
}

// Request starts an async search. Start and goal are resolved to nodes on the calling goroutine.
// It returns false without doing anything when a request is already pending or the planner is
// closed.
func (q *Query) Request(start, goal cp.Vector) (uint64, bool) {
	if q.Pending() || q.p.closed() {
		return 0, false
	}
	q.drain()

	q.next++
	seq := q.next
	q.latest = seq

	from, okFrom := q.p.Resolve(start)
	to, okTo := q.p.Resolve(goal)
	if !okFrom || !okTo {
		q.p.metrics.observeUnresolved(modeAsync)
		q.results <- Result{Seq: seq, Path: Path{Seq: seq, Start: start, Goal: goal}, Err: ErrUnresolved}
		return seq, true
	}

	q.pending = true
	q.inflight = seq
	done := make(chan struct{})
	q.done = done
	q.p.wg.Add(1)
	go q.run(seq, from, to, start, goal, done)
	return seq, true
}

func (q *Query) run(seq uint64, from, to *Node, start, goal cp.Vector, done chan struct{}) {
	p := q.p
	res := Result{Seq: seq, Path: Path{Seq: seq, Start: start, Goal: goal}}
	defer p.wg.Done()
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("planner: async search %d panicked: %v", seq, r)
			p.metrics.asyncFailure()
			res = Result{Seq: seq, Path: Path{Seq: seq, Start: start, Goal: goal}, Err: fmt.Errorf("nav: async search %d: %v", seq, r)}
		}
		q.results <- res
	}()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		res.Err = ErrPlannerClosed
		return
	}
	defer p.sem.Release(1)

	began := time.Now()
	path, found := p.search(from, to)
	p.metrics.observeSearch(modeAsync, found, time.Since(began))

	path.Seq, path.Start, path.Goal = seq, start, goal
	res.Path, res.Found = path, found
	if !found {
		res.Err = ErrNoPath
	}
}

// Poll returns the result of the latest request if it has arrived. Results from requests that
// were invalidated or superseded are dropped.
func (q *Query) Poll() (Result, bool) {
	select {
	case r := <-q.results:
		if r.Seq == q.inflight {
			q.pending = false
		}
		if r.Seq != q.latest {
			q.p.metrics.staleResult()
			log.Printf("planner: dropped stale result %d (latest %d)", r.Seq, q.latest)
			return Result{}, false
		}
		return r, true
	default:
		return Result{}, false
	}
}

// Invalidate marks the in-flight request stale so its result is never delivered.
func (q *Query) Invalidate() {
	q.next++
	q.latest = q.next
}

// drain discards a result nobody polled.
func (q *Query) drain() {
	select {
	case r := <-q.results:
		if r.Seq != q.latest {
			q.p.metrics.staleResult()
		}
	default:
	}
}
