package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe("", func(e Event) { got = append(got, "all:"+string(e.Kind)) })
	b.Subscribe(TradeExecuted, func(e Event) { got = append(got, "trade") })
	unsub := b.Subscribe("", func(e Event) { got = append(got, "late:"+string(e.Kind)) })

	b.Publish(Event{Kind: TradeExecuted}, Event{Kind: OrderPlaced})
	want := []string{"all:trade_executed", "trade", "late:trade_executed", "all:order_placed", "late:order_placed"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}

	unsub()
	got = nil
	b.Publish(Event{Kind: OrderPlaced})
	if len(got) != 1 || got[0] != "all:order_placed" {
		t.Errorf("after unsubscribe got %v", got)
	}
}

func TestBusQueuesPublishFromHandler(t *testing.T) {
	b := NewBus()
	var got []EventKind
	b.Subscribe("", func(e Event) {
		got = append(got, e.Kind)
		if e.Kind == BuildingCompleted {
			b.Publish(Event{Kind: GameUpdated})
		}
	})
	b.Subscribe(BuildingCompleted, func(e Event) { got = append(got, "second") })

	b.Publish(Event{Kind: BuildingCompleted})
	// The nested event waits until every handler has seen the first.
	want := []EventKind{BuildingCompleted, "second", GameUpdated}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	b := NewBus()
	var got []EventKind
	b.Subscribe(TradeExecuted, func(e Event) { panic("boom") })
	b.Subscribe("", func(e Event) { got = append(got, e.Kind) })

	b.Publish(Event{Kind: TradeExecuted})
	b.Publish(Event{Kind: OrderPlaced})

	want := []EventKind{TradeExecuted, OrderPlaced}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEngineStepScalesBySpeed(t *testing.T) {
	e := NewEngine(t0)
	var ticks []time.Time
	e.OnTick = func(now time.Time) { ticks = append(ticks, now) }

	e.step(time.Second)
	e.SetSpeed(60)
	e.step(time.Second)
	e.SetSpeed(-3)
	if e.Speed() != 0 {
		t.Errorf("negative speed stored as %v", e.Speed())
	}

	if len(ticks) != 2 || e.Tick() != 2 {
		t.Fatalf("%d ticks", len(ticks))
	}
	if !ticks[0].Equal(t0.Add(time.Second)) || !ticks[1].Equal(t0.Add(61*time.Second)) {
		t.Errorf("ticks = %v", ticks)
	}
	if !e.Now().Equal(ticks[1]) {
		t.Errorf("now = %v", e.Now())
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e := NewEngine(t0)
	e.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan time.Time, 1)
	e.OnTick = func(now time.Time) {
		select {
		case fired <- now:
		default:
		}
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick")
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if e.Running() {
		t.Error("still running after Run returned")
	}
}

func TestEngineDrivesGame(t *testing.T) {
	g, _ := newTestGame(t)
	id := found(t, g, "pylos")
	e := NewEngine(g.LastUpdate())
	e.OnTick = g.Tick
	e.SetSpeed(3600)

	e.step(time.Second)

	if !g.LastUpdate().Equal(t0.Add(time.Hour)) {
		t.Fatalf("game time = %v", g.LastUpdate())
	}
	res, _ := g.Resources(id)
	if !near(res["gold"], 505) {
		t.Errorf("gold after an accelerated hour = %v", res["gold"])
	}
}
