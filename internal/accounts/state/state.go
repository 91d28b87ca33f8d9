// Package state holds the process-wide current-account signal. It is written
// only by the authentication service and the token refresher; everything else
// reads it, either by polling Current or by subscribing.
//
// Subscribers receive last-known-value snapshots: the channel is a cache of
// the most recent state, not a request/response stream, and slow readers see
// newer snapshots overwrite older undelivered ones.
package state

import (
	"sync"

	"github.com/daybookhq/accounts-go/internal/accounts/models"
)

// Snapshot is one observed value of the account state.
type Snapshot struct {
	Account       *models.Account
	Authenticated bool
}

// AccountState is the broadcast primitive. The zero value is not usable;
// call New.
type AccountState struct {
	mu      sync.RWMutex
	current *models.Account
	subs    map[chan Snapshot]struct{}
}

func New() *AccountState {
	return &AccountState{subs: make(map[chan Snapshot]struct{})}
}

// Set publishes account as the current signed-in account.
func (s *AccountState) Set(account *models.Account) {
	s.mu.Lock()
	copied := *account
	s.current = &copied
	s.broadcastLocked()
	s.mu.Unlock()
}

// Clear publishes the signed-out state.
func (s *AccountState) Clear() {
	s.mu.Lock()
	s.current = nil
	s.broadcastLocked()
	s.mu.Unlock()
}

// Current returns the last-known account and whether a user is signed in.
func (s *AccountState) Current() (*models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	copied := *s.current
	return &copied, true
}

// Subscribe registers a listener. The channel is buffered and primed with
// the current snapshot, so a new subscriber learns the state immediately.
func (s *AccountState) Subscribe() chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	ch <- s.snapshotLocked()
	s.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *AccountState) Unsubscribe(ch chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; !ok {
		return
	}
	delete(s.subs, ch)
	close(ch)
}

func (s *AccountState) snapshotLocked() Snapshot {
	if s.current == nil {
		return Snapshot{}
	}
	copied := *s.current
	return Snapshot{Account: &copied, Authenticated: true}
}

// broadcastLocked replaces any undelivered snapshot with the newest one.
func (s *AccountState) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
