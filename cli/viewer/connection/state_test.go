package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMachineTransitions(t *testing.T) {
	tests := []struct {
		name      string
		events    []Event
		expected  State
		expectErr bool
	}{
		{name: "Initial state", events: nil, expected: Disconnected},
		{name: "Dial", events: []Event{EventDial}, expected: Connecting},
		{name: "Open", events: []Event{EventDial, EventOpened}, expected: Open},
		{name: "Closed after open", events: []Event{EventDial, EventOpened, EventClosed}, expected: Closed},
		{name: "Errored after open", events: []Event{EventDial, EventOpened, EventFailed}, expected: Errored},
		{name: "Handshake failure", events: []Event{EventDial, EventFailed}, expected: Errored},
		{name: "Cancelled while connecting", events: []Event{EventDial, EventClosed}, expected: Closed},
		{name: "Redial after close", events: []Event{EventDial, EventOpened, EventClosed, EventDial}, expected: Connecting},
		{name: "Redial after error", events: []Event{EventDial, EventFailed, EventDial}, expected: Connecting},
		{name: "Open without dial", events: []Event{EventOpened}, expected: Disconnected, expectErr: true},
		{name: "Second dial while connecting", events: []Event{EventDial, EventDial}, expected: Connecting, expectErr: true},
		{name: "Second dial while open", events: []Event{EventDial, EventOpened, EventDial}, expected: Open, expectErr: true},
		{name: "Close twice", events: []Event{EventDial, EventOpened, EventClosed, EventClosed}, expected: Closed, expectErr: true},
		{name: "Error after close", events: []Event{EventDial, EventOpened, EventClosed, EventFailed}, expected: Closed, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			var err error
			for _, ev := range tt.events {
				if _, err = m.Fire(ev); err != nil {
					break
				}
			}
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, m.State())
		})
	}
}

func TestMachineObservers(t *testing.T) {
	m := NewMachine()

	var seen []string
	m.OnTransition(func(from, to State, ev Event) {
		seen = append(seen, from.String()+" -"+ev.String()+"-> "+to.String())
	})

	_, _ = m.Fire(EventDial)
	_, _ = m.Fire(EventOpened)
	_, _ = m.Fire(EventDial)
	_, _ = m.Fire(EventClosed)

	assert.Equal(t, []string{
		"disconnected -dial-> connecting",
		"connecting -opened-> open",
		"open -closed-> closed",
	}, seen)
}

func TestStateAndEventStrings(t *testing.T) {
	assert.Equal(t, "errored", Errored.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.Equal(t, "failed", EventFailed.String())
	assert.Equal(t, "event(9)", Event(9).String())
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: 100, MaxBackoff: 1000}

	assert.True(t, p.Enabled())
	assert.EqualValues(t, 100, p.Backoff(0))
	assert.EqualValues(t, 200, p.Backoff(1))
	assert.EqualValues(t, 800, p.Backoff(3))
	assert.EqualValues(t, 1000, p.Backoff(4))
	assert.EqualValues(t, 1000, p.Backoff(30))

	assert.False(t, RetryPolicy{}.Enabled())
	assert.EqualValues(t, 400, RetryPolicy{InitialBackoff: 100}.Backoff(2))
}

func TestRetryPolicyBackoffWithoutCapNeverOverflows(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 100, InitialBackoff: time.Second}

	for _, attempt := range []int{10, 40, 63, 64, 1000} {
		d := p.Backoff(attempt)
		assert.True(t, d > 0 && d <= maxBackoff, "attempt %d: %v", attempt, d)
	}
	assert.Equal(t, maxBackoff, p.Backoff(64))
	assert.Equal(t, time.Duration(0), RetryPolicy{MaxAttempts: 1}.Backoff(3))
}
