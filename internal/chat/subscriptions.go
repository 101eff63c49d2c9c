package chat

import (
	"sort"
	"sync"
)

// Directory answers channel existence questions for the subscription store
type Directory interface {
	Has(name string) bool
	Default() string
}

// Subscriptions tracks which channels each user listens to and which
// channel they are currently posting into.
//
// A user with no entry is treated as subscribed to the default channel only.
type Subscriptions struct {
	mu      sync.RWMutex
	dir     Directory
	subs    map[string]map[string]struct{}
	active  map[string]string // channel the user posts into
	toggled map[string]string // last channel the user joined or left
	parked  map[string]string // active pointer cleared by a toggle-off
}

// NewSubscriptions creates an empty store backed by dir
func NewSubscriptions(dir Directory) *Subscriptions {
	return &Subscriptions{
		dir:     dir,
		subs:    make(map[string]map[string]struct{}),
		active:  make(map[string]string),
		toggled: make(map[string]string),
		parked:  make(map[string]string),
	}
}

// Subscribe adds a channel to a user's set
func (s *Subscriptions) Subscribe(user, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribeLocked(user, channel)
}

func (s *Subscriptions) subscribeLocked(user, channel string) {
	set, ok := s.subs[user]
	if !ok {
		set = make(map[string]struct{})
		s.subs[user] = set
	}
	set[channel] = struct{}{}
}

// Unsubscribe removes a channel from a user's set. Removing the last
// channel drops the entry so the user falls back to the default channel.
func (s *Subscriptions) Unsubscribe(user, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked(user, channel)
}

func (s *Subscriptions) unsubscribeLocked(user, channel string) {
	set, ok := s.subs[user]
	if !ok {
		return
	}
	delete(set, channel)
	if len(set) == 0 {
		delete(s.subs, user)
	}
}

// Toggle flips explicit membership of channel and returns the new state.
// Leaving the channel the user was posting into clears the pointer; joining
// it again restores that pointer.
func (s *Subscriptions) Toggle(user, channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toggled[user] = channel
	if _, member := s.subs[user][channel]; member {
		s.unsubscribeLocked(user, channel)
		if s.active[user] == channel {
			delete(s.active, user)
			s.parked[user] = channel
		}
		return false
	}

	s.subscribeLocked(user, channel)
	if s.parked[user] == channel {
		s.active[user] = channel
	}
	delete(s.parked, user)
	return true
}

// IsSubscribed reports whether user receives channel traffic
func (s *Subscriptions) IsSubscribed(user, channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.subs[user]
	if !ok {
		return channel == s.dir.Default()
	}
	_, member := set[channel]
	return member
}

// Channels returns the user's subscriptions in sorted order
func (s *Subscriptions) Channels(user string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelsLocked(user)
}

func (s *Subscriptions) channelsLocked(user string) []string {
	set, ok := s.subs[user]
	if !ok {
		return []string{s.dir.Default()}
	}
	out := make([]string, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// ActiveChannel resolves the channel a user posts into: the pointer when it
// references an existing channel, else the first existing subscription, else
// the default channel.
func (s *Subscriptions) ActiveChannel(user string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ch, ok := s.active[user]; ok && s.dir.Has(ch) {
		return ch
	}
	if set, ok := s.subs[user]; ok {
		for _, ch := range s.channelsLocked(user) {
			if _, member := set[ch]; member && s.dir.Has(ch) {
				return ch
			}
		}
	}
	return s.dir.Default()
}

// SetActive points a user at a channel
func (s *Subscriptions) SetActive(user, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[user] = channel
	delete(s.parked, user)
}

// LastToggled returns the last channel the user joined or left
func (s *Subscriptions) LastToggled(user string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ch, ok := s.toggled[user]; ok && s.dir.Has(ch) {
		return ch
	}
	return s.dir.Default()
}

// Subscribers filters users down to those subscribed to channel
func (s *Subscriptions) Subscribers(channel string, users []string) []string {
	var out []string
	for _, u := range users {
		if s.IsSubscribed(u, channel) {
			out = append(out, u)
		}
	}
	return out
}

// Prune removes channels that no longer exist. A user left with nothing is
// subscribed to the default channel.
func (s *Subscriptions) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	def := s.dir.Default()
	for _, set := range s.subs {
		for ch := range set {
			if !s.dir.Has(ch) {
				delete(set, ch)
			}
		}
		if len(set) == 0 {
			set[def] = struct{}{}
		}
	}
	for user, ch := range s.active {
		if !s.dir.Has(ch) {
			delete(s.active, user)
		}
	}
	for user, ch := range s.parked {
		if !s.dir.Has(ch) {
			delete(s.parked, user)
		}
	}
}
