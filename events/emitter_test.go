package events

import "testing"

func TestEmitDeliversToSubscriber(t *testing.T) {
	e := NewEmitter()
	var got Event
	e.Subscribe(EventBlockCommitted, func(ev Event) { got = ev })

	e.Emit(Event{Type: EventBlockCommitted, Height: 7})

	if got.Height != 7 {
		t.Errorf("height: got %d want 7", got.Height)
	}
}

func TestEmitIgnoresOtherTypes(t *testing.T) {
	e := NewEmitter()
	called := false
	e.Subscribe(EventBlockCommitted, func(Event) { called = true })

	e.Emit(Event{Type: EventBlockSynced, Height: 1})

	if called {
		t.Error("handler for a different event type should not run")
	}
}

func TestEmitRecoversFromPanickingHandler(t *testing.T) {
	e := NewEmitter()
	e.Subscribe(EventBlockCommitted, func(Event) { panic("boom") })

	e.Emit(Event{Type: EventBlockCommitted, Height: 1}) // must not propagate the panic
}
