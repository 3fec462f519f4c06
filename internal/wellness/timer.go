// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wellness

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMeditation is the session length before SetDuration is called.
const DefaultMeditation = 5 * time.Minute

// Timer counts a meditation session down one second at a time. When it
// runs out it stops and rewinds to the full duration.
type Timer struct {
	mu        sync.Mutex
	duration  int // seconds
	remaining int
	tick      time.Duration

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewTimer returns a stopped timer set to DefaultMeditation.
func NewTimer() *Timer {
	secs := int(DefaultMeditation / time.Second)
	return &Timer{duration: secs, remaining: secs, tick: time.Second}
}

// WithTick changes the tick period. Tests use it to run sessions quickly.
func (t *Timer) WithTick(d time.Duration) *Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > 0 {
		t.tick = d
	}
	return t
}

// SetDuration stops the timer and sets a new session length in minutes.
func (t *Timer) SetDuration(minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("meditation length must be positive, got %d", minutes)
	}
	t.Pause()
	t.mu.Lock()
	t.duration = minutes * 60
	t.remaining = t.duration
	t.mu.Unlock()
	return nil
}

// Duration returns the session length in seconds.
func (t *Timer) Duration() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Remaining returns the seconds left in the session.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether the countdown is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start resumes the countdown. onTick, if set, receives the remaining
// seconds after every tick; it runs on the timer goroutine and must not
// call Pause, Toggle or Reset. The returned channel closes when the session
// finishes or is paused.
func (t *Timer) Start(onTick func(remaining int)) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.done
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done, t.tick, onTick)
	return t.done
}

func (t *Timer) loop(stop, done chan struct{}, period time.Duration, onTick func(int)) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining, finished := t.advance()
			if onTick != nil {
				onTick(remaining)
			}
			if finished {
				return
			}
		}
	}
}

// advance moves one second forward. At the last second the timer stops and
// rewinds.
func (t *Timer) advance() (remaining int, finished bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining <= 1 {
		t.remaining = t.duration
		t.running = false
		return t.remaining, true
	}
	t.remaining--
	return t.remaining, false
}

// Pause stops the countdown, keeping the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

// Toggle pauses a running timer or starts a stopped one.
func (t *Timer) Toggle(onTick func(remaining int)) {
	if t.Running() {
		t.Pause()
		return
	}
	t.Start(onTick)
}

// Reset stops the countdown and rewinds to the full duration.
func (t *Timer) Reset() {
	t.Pause()
	t.mu.Lock()
	t.remaining = t.duration
	t.mu.Unlock()
}

// Run counts down until the session ends or ctx is done, in which case the
// timer is paused and ctx's error returned.
func (t *Timer) Run(ctx context.Context, onTick func(remaining int)) error {
	done := t.Start(onTick)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Pause()
		return ctx.Err()
	}
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
