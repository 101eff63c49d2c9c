package match

import (
	"context"
	"time"

	"github.com/ernie/pitchside/internal/domain"
)

// startClockLocked starts the ticking goroutine. Ticks from an older clock
// are ignored by generation.
func (m *Manager) startClockLocked() {
	interval := m.cfg.Tick
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.gen++
	gen := m.gen
	m.running = true
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.onTick(gen)
			}
		}
	}()
}

func (m *Manager) stopClockLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.running = false
}

// onTick advances the clock by one second
func (m *Manager) onTick(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || gen != m.gen {
		return
	}
	m.elapsed++

	if m.cfg.AutoEnd && m.half == domain.HalfSecond && m.remainingLocked() <= 0 {
		m.stopClockLocked()
		m.endMatchLocked("finished")
		return
	}
	m.updateLocked()
}

// Close stops the clock and waits for it to exit
func (m *Manager) Close() {
	m.mu.Lock()
	done := m.done
	m.stopClockLocked()
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}
