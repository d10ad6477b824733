// Package clock abstracts the current time so coordinator stamps and entity
// timestamps can be pinned in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides an abstraction for time operations.
type Clock interface {
	Now() time.Time
	NowUnixMilli() int64
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// MockClock is a controllable, thread-safe clock for tests.
type MockClock struct {
	currentTime time.Time
	mu          sync.Mutex
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *MockClock) NowUnixMilli() int64 {
	return m.Now().UnixMilli()
}

// Set changes the mock clock's current time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the mock clock by d. Negative durations move it backward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// rosarioOffset is Argentina time; the country has not observed DST since 2009.
var rosarioOffset = time.FixedZone("ART", -3*60*60)

var (
	rosarioOnce sync.Once
	rosarioLoc  *time.Location
)

// Rosario returns the location used to render local arrival times. It prefers
// the tz database entry and falls back to a fixed UTC-3 zone when the host has
// no zoneinfo.
func Rosario() *time.Location {
	rosarioOnce.Do(func() {
		loc, err := time.LoadLocation("America/Argentina/Cordoba")
		if err != nil {
			loc = rosarioOffset
		}
		rosarioLoc = loc
	})
	return rosarioLoc
}
