package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock - источник текущего времени. Сервисы не вызывают time.Now напрямую,
// чтобы граница дедлайна проверялась в тестах детерминированно.
type Clock interface {
	Now() time.Time
}

type utcClock struct {
	clockwork.Clock
}

func (c utcClock) Now() time.Time { return c.Clock.Now().UTC() }

// Real возвращает системные часы в UTC.
func Real() Clock { return utcClock{Clock: clockwork.NewRealClock()} }

// FakeClock - часы для тестов, время меняется только через Set и Advance.
type FakeClock struct {
	mu sync.Mutex
	*clockwork.FakeClock
}

// Fake создаёт FakeClock с заданным временем.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{FakeClock: clockwork.NewFakeClockAt(initial.UTC())}
}

func (c *FakeClock) Now() time.Time { return c.FakeClock.Now().UTC() }

// Set устанавливает текущее время, в том числе назад.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FakeClock.Advance(t.Sub(c.FakeClock.Now()))
}

// Advance сдвигает время вперёд на d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FakeClock.Advance(d)
}
