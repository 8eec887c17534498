// Package presence tracks which portal users are working in which
// collection, for the "who is here" roster.
//
// The server records an Activity for every authorized request that names a
// user. A background reaper marks users away after a period of silence and
// eventually forgets them.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/portal/internal/model"
)

// Entry is one user's presence as reported by Roster.
type Entry struct {
	User         string     `json:"user"`
	Role         model.Role `json:"role,omitempty"`
	Resource     string     `json:"resource"`    // collection of the last request
	LastAction   string     `json:"last_action"` // e.g. "list", "update"
	LastSeen     time.Time  `json:"last_seen"`
	FirstSeen    time.Time  `json:"first_seen"`
	IdleSecs     float64    `json:"idle_secs"`
	RequestCount int64      `json:"request_count"`
	Away         bool       `json:"away,omitempty"`
	AwaySince    time.Time  `json:"away_since,omitzero"`
}

// Activity is one request as the tracker sees it.
type Activity struct {
	User     string
	Role     model.Role
	Resource string
	Action   string
}

// ReaperConfig configures the background away-marker.
type ReaperConfig struct {
	// AwayAfter is how long a user must be idle before being marked away.
	// Default: 10 minutes.
	AwayAfter time.Duration

	// ForgetAfter is how long an away user stays on the roster.
	// Default: 1 hour.
	ForgetAfter time.Duration

	// SweepInterval is how often the reaper scans the roster.
	// Default: 30 seconds.
	SweepInterval time.Duration

	// OnAway is called for each user newly marked away, outside the lock.
	OnAway func(user, resource string)
}

// Tracker maintains an in-memory roster of active users.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]*userState
	now   func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type userState struct {
	role         model.Role
	resource     string
	action       string
	firstSeen    time.Time
	lastSeen     time.Time
	requestCount int64
	away         bool
	awaySince    time.Time
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		users: make(map[string]*userState),
		now:   time.Now,
	}
}

// Record notes a request. Anonymous requests are ignored.
func (t *Tracker) Record(a Activity) {
	if a.User == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.users[a.User]
	if !ok {
		state = &userState{firstSeen: now}
		t.users[a.User] = state
	}
	if state.away {
		slog.Debug("presence: user back", "user", a.User, "resource", a.Resource)
		state.away = false
		state.awaySince = time.Time{}
	}

	state.lastSeen = now
	state.requestCount++
	if a.Role != "" {
		state.role = a.Role
	}
	if a.Resource != "" {
		state.resource = a.Resource
	}
	if a.Action != "" {
		state.action = a.Action
	}
}

// Roster returns the tracked users, most recently active first. resource,
// when set, keeps only users whose last request was in that collection.
// stale, when positive, drops users idle for longer.
func (t *Tracker) Roster(resource string, stale time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.users))
	for user, state := range t.users {
		if resource != "" && state.resource != resource {
			continue
		}
		idle := now.Sub(state.lastSeen)
		if stale > 0 && idle > stale {
			continue
		}
		entries = append(entries, Entry{
			User:         user,
			Role:         state.role,
			Resource:     state.resource,
			LastAction:   state.action,
			LastSeen:     state.lastSeen,
			FirstSeen:    state.firstSeen,
			IdleSecs:     idle.Seconds(),
			RequestCount: state.requestCount,
			Away:         state.away,
			AwaySince:    state.awaySince,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].LastSeen.After(entries[j].LastSeen)
		}
		return entries[i].User < entries[j].User
	})
	return entries
}

// StartReaper launches the background goroutine that marks idle users away.
// Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.AwayAfter == 0 {
		cfg.AwayAfter = 10 * time.Minute
	}
	if cfg.ForgetAfter == 0 {
		cfg.ForgetAfter = time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"away_after", cfg.AwayAfter,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()

	type awayUser struct{ user, resource string }
	var newlyAway []awayUser

	t.mu.Lock()
	for user, state := range t.users {
		if state.away {
			if now.Sub(state.awaySince) > cfg.ForgetAfter {
				delete(t.users, user)
			}
			continue
		}
		if now.Sub(state.lastSeen) > cfg.AwayAfter {
			state.away = true
			state.awaySince = now
			newlyAway = append(newlyAway, awayUser{user, state.resource})
		}
	}
	t.mu.Unlock()

	for _, a := range newlyAway {
		slog.Info("presence: user away", "user", a.user, "resource", a.resource)
		if cfg.OnAway != nil {
			cfg.OnAway(a.user, a.resource)
		}
	}
}
