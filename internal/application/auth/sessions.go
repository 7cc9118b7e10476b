package auth

import (
	"sync"
	"time"
)

// registrationSession is an in-flight registration challenge. Only the bcrypt
// hash of the code is held; the plain code lives nowhere after dispatch.
type registrationSession struct {
	AadhaarNumber string
	CodeHash      string
	ExpiresAt     time.Time
	Attempts      int
}

// RegistrationStore holds pending registration challenges in process memory,
// keyed by mobile number. A restart wipes in-flight challenges; callers simply
// request a new code. Expired sessions are removed lazily on access, there is
// no background sweep.
type RegistrationStore struct {
	mu       sync.Mutex
	sessions map[string]*registrationSession
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistrationStore(ttl time.Duration, now func() time.Time) *RegistrationStore {
	if now == nil {
		now = time.Now
	}
	return &RegistrationStore{
		sessions: make(map[string]*registrationSession),
		ttl:      ttl,
		now:      now,
	}
}

// Begin records a fresh challenge for the mobile number. Any previous session
// for the same number is overwritten, which invalidates its code.
func (s *RegistrationStore) Begin(mobile, aadhaar, codeHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[mobile] = &registrationSession{
		AadhaarNumber: aadhaar,
		CodeHash:      codeHash,
		ExpiresAt:     s.now().Add(s.ttl),
		Attempts:      0,
	}
}

// Get returns a copy of the session for the mobile number. expired reports
// that a session existed but was past its deadline; it is discarded before
// returning.
func (s *RegistrationStore) Get(mobile string) (sess registrationSession, ok, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.sessions[mobile]
	if !found {
		return registrationSession{}, false, false
	}
	if !p.ExpiresAt.After(s.now()) {
		delete(s.sessions, mobile)
		return registrationSession{}, false, true
	}
	return *p, true, false
}

// Fail increments the attempt counter for the session and returns the new
// count. Returns 0 when no session exists.
func (s *RegistrationStore) Fail(mobile string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.sessions[mobile]
	if !found {
		return 0
	}
	p.Attempts++
	return p.Attempts
}

// Discard removes the session for the mobile number, if any.
func (s *RegistrationStore) Discard(mobile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, mobile)
}
