package auth

import (
	"sync"
	"time"
)

// Source hands out the token for a single API key.
//
// By default a Source issues exactly one credential, at construction, and
// keeps returning it after it expires. WithRefresh makes it reissue lazily
// when the current credential is close to expiry.
type Source struct {
	apiKey  string
	refresh bool
	skew    time.Duration
	now     func() time.Time

	mu      sync.Mutex
	current *Credential
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithRefresh enables lazy reissue once the current credential is within
// skew of its expiry.
func WithRefresh(skew time.Duration) SourceOption {
	return func(s *Source) {
		s.refresh = true
		s.skew = skew
	}
}

// WithClock overrides the time source. Mostly useful in tests.
func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		s.now = now
	}
}

// NewSource issues the first credential for apiKey, so a malformed key is
// reported here rather than on first use.
func NewSource(apiKey string, opts ...SourceOption) (*Source, error) {
	s := &Source{
		apiKey: apiKey,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cred, err := IssueAt(apiKey, s.now())
	if err != nil {
		return nil, err
	}
	s.current = cred
	return s, nil
}

// Credential returns the credential to use for the next request.
func (s *Source) Credential() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh {
		now := s.now()
		if s.current.Expired(now.Add(s.skew)) {
			// The key was validated in NewSource, so reissue cannot fail.
			if cred, err := IssueAt(s.apiKey, now); err == nil {
				s.current = cred
			}
		}
	}
	return s.current
}

// Token returns the serialized token of Credential.
func (s *Source) Token() string {
	return s.Credential().Token()
}
