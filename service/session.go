package service

import (
	"sync"
	"time"
)

// VotingSession is open from creation until End is called or its deadline
// passes. A zero duration means no deadline.
type VotingSession struct {
	startTime time.Time
	endTime   time.Time
	isActive  bool
	now       func() time.Time
	mu        sync.RWMutex
}

func NewVotingSession(duration time.Duration) *VotingSession {
	return newVotingSession(duration, time.Now)
}

func newVotingSession(duration time.Duration, now func() time.Time) *VotingSession {
	start := now()
	vs := &VotingSession{
		startTime: start,
		isActive:  true,
		now:       now,
	}
	if duration > 0 {
		vs.endTime = start.Add(duration)
	}
	return vs
}

func (vs *VotingSession) IsActive() bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	if !vs.isActive {
		return false
	}
	return vs.endTime.IsZero() || vs.now().Before(vs.endTime)
}

// Deadline returns the session end time, if one was set.
func (vs *VotingSession) Deadline() (time.Time, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.endTime, !vs.endTime.IsZero()
}

func (vs *VotingSession) StartTime() time.Time {
	return vs.startTime
}

func (vs *VotingSession) End() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.isActive = false
}
