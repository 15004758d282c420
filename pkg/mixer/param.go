// ABOUTME: Scheduled audio parameter with sample-accurate automation
// ABOUTME: Implements set-at-time and linear ramps evaluated against the graph clock
package mixer

import (
	"sort"
	"sync"
)

// Point is one automation event on a Param's timeline
type Point struct {
	Time  float64 // graph clock seconds
	Value float64
	Ramp  bool // true: linear ramp ending at Time, false: step at Time
}

// Param is a gain-like value that can change on a schedule.
// All methods are safe to call while the graph is rendering.
type Param struct {
	mu     *sync.Mutex
	value  float64
	events []Point
}

func newParam(mu *sync.Mutex, value float64) *Param {
	return &Param{mu: mu, value: value}
}

// SetValue sets the value immediately and drops any pending automation
func (p *Param) SetValue(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.events = p.events[:0]
}

// SetValueAtTime schedules a step to v at time t
func (p *Param) SetValueAtTime(v, t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insert(Point{Time: t, Value: v})
}

// LinearRampToValueAtTime schedules a linear ramp from the previous event to v, ending at t
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insert(Point{Time: t, Value: v, Ramp: true})
}

// ValueAt returns the parameter's value at graph time t
func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAt(t)
}

// Automation returns a copy of the pending timeline
func (p *Param) Automation() []Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Point(nil), p.events...)
}

// insert keeps events ordered by time; equal times keep insertion order (must hold p.mu)
func (p *Param) insert(ev Point) {
	i := sort.Search(len(p.events), func(i int) bool {
		return p.events[i].Time > ev.Time
	})
	p.events = append(p.events, Point{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

// valueAt evaluates the timeline (must hold p.mu)
func (p *Param) valueAt(t float64) float64 {
	prevTime, prevValue := 0.0, p.value
	for _, ev := range p.events {
		if ev.Time <= t {
			prevTime, prevValue = ev.Time, ev.Value
			continue
		}
		if ev.Ramp && ev.Time > prevTime {
			frac := (t - prevTime) / (ev.Time - prevTime)
			if frac < 0 {
				frac = 0
			}
			return prevValue + (ev.Value-prevValue)*frac
		}
		return prevValue
	}
	return prevValue
}

// prune folds events that can no longer influence values at or after t (must hold p.mu)
func (p *Param) prune(t float64) {
	n := 0
	for n < len(p.events) && p.events[n].Time <= t {
		n++
	}
	if n == 0 {
		return
	}
	// The last elapsed event becomes the intrinsic value; later ramps start from it.
	last := p.events[n-1]
	p.value = last.Value
	if n < len(p.events) && p.events[n].Ramp {
		// keep the anchor so an in-flight ramp still interpolates from it
		p.events = append(p.events[:0], p.events[n-1:]...)
		return
	}
	p.events = append(p.events[:0], p.events[n:]...)
}
