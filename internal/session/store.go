package session

import (
	"sync"
	"time"

	"fashion-fit-bot/internal/fitting"
)

// Menu names the keyboard currently shown on a studio panel.
type Menu string

const (
	MenuMain       Menu = "main"
	MenuModelType  Menu = "type"
	MenuRace       Menu = "race"
	MenuPose       Menu = "pose"
	MenuBackground Menu = "bg"
	MenuAspect     Menu = "ar"
)

// Session is one user's studio in one chat. The request state is owned here;
// the generation client never sees it.
type Session struct {
	Styling fitting.StylingConfig
	Request fitting.RequestState

	PhotoFileID string
	MessageID   int

	Menu          Menu
	AwaitingPhoto bool

	UpdatedAt time.Time
}

func (s Session) HasPhoto() bool {
	return s.PhotoFileID != ""
}

type Options struct {
	IdleTTL time.Duration
}

type Store struct {
	mu      sync.Mutex
	m       map[key]*Session
	idleTTL time.Duration
	now     func() time.Time
}

type key struct {
	ChatID int64
	UserID int64
}

func NewStore(opts Options) *Store {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		m:       make(map[key]*Session),
		idleTTL: ttl,
		now:     time.Now,
	}
}

func (s *Store) Get(chatID, userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.getOrCreateLocked(chatID, userID)
}

func (s *Store) Update(chatID, userID int64, fn func(*Session)) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID, userID)
	if fn != nil {
		fn(sess)
	}
	sess.UpdatedAt = s.now()
	return *sess
}

// Transition runs fn on a copy of the session and stores the copy only when
// fn succeeds, so a rejected state change leaves nothing half applied.
func (s *Store) Transition(chatID, userID int64, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID, userID)
	next := *sess
	if err := fn(&next); err != nil {
		return *sess, err
	}
	next.UpdatedAt = s.now()
	*sess = next
	return next, nil
}

// Reset drops the photo, result and options. The panel message is kept so it
// can be edited in place. A session with a generation in flight is left alone.
func (s *Store) Reset(chatID, userID int64) (Session, error) {
	return s.Transition(chatID, userID, func(sess *Session) error {
		if err := sess.Request.Reset(); err != nil {
			return err
		}
		msgID := sess.MessageID
		*sess = defaultSession()
		sess.MessageID = msgID
		return nil
	})
}

// Prune forgets sessions idle for longer than the TTL. Sessions with a
// generation in flight are kept.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	for k, sess := range s.m {
		if sess.Request.InFlight() || sess.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.m, k)
		removed++
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Store) getOrCreateLocked(chatID, userID int64) *Session {
	k := key{ChatID: chatID, UserID: userID}
	if sess, ok := s.m[k]; ok {
		return sess
	}
	sess := defaultSession()
	sess.UpdatedAt = s.now()
	s.m[k] = &sess
	return s.m[k]
}

func defaultSession() Session {
	return Session{
		Styling:       fitting.DefaultStyling(),
		Menu:          MenuMain,
		AwaitingPhoto: true,
	}
}
