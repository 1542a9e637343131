// Package engine runs the game: the tick loop, the queue processor, the
// event bus and the Game aggregate that owns all mutable state.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// pausedPoll is how often a paused engine checks for a speed change.
const pausedPoll = 100 * time.Millisecond

// Engine drives the game clock forward. Every Interval of wall time it
// advances game time by the elapsed wall time times Speed and calls
// OnTick with the new game time.
type Engine struct {
	Interval time.Duration // Wall time between ticks (default 1 second)

	// OnTick is called from the Run goroutine with the current game time.
	OnTick func(now time.Time)

	mu       sync.Mutex
	tick     uint64
	speed    float64
	gameTime time.Time
	running  bool

	clock func() time.Time
}

// NewEngine creates an engine whose game clock starts at start.
func NewEngine(start time.Time) *Engine {
	return &Engine{
		Interval: time.Second,
		speed:    1.0,
		gameTime: start,
		clock:    time.Now,
	}
}

// Run advances the game until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "game_time", e.Now())

	last := e.clock()
	timer := time.NewTimer(e.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return ctx.Err()
		case <-timer.C:
		}

		wall := e.clock()
		elapsed := wall.Sub(last)
		last = wall

		if e.Speed() <= 0 {
			timer.Reset(pausedPoll)
			continue
		}
		e.step(elapsed)

		// Keep the cadence when a tick runs long.
		next := e.Interval - e.clock().Sub(wall)
		if next < 0 {
			next = 0
		}
		timer.Reset(next)
	}
}

// step advances game time by elapsed wall time scaled by speed.
func (e *Engine) step(elapsed time.Duration) {
	e.mu.Lock()
	if elapsed < 0 {
		elapsed = 0
	}
	e.tick++
	e.gameTime = e.gameTime.Add(time.Duration(float64(elapsed) * e.speed))
	now := e.gameTime
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(now)
	}
}

// SetSpeed changes the time multiplier. 0 pauses the game; negative
// values are treated as 0.
func (e *Engine) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	slog.Info("simulation speed changed", "speed", speed)
}

// Speed returns the time multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Tick returns the number of ticks run so far.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Now returns the current game time.
func (e *Engine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameTime
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
