package feed

import "context"

// SearchToken identifies one in-flight fetch attempt. Tokens are ordered
// generations: issuing a new one irrevocably invalidates every earlier one,
// so a stale result can be recognized no matter when it resolves.
type SearchToken uint64

// searchState owns at most one live search at a time. It pairs the token
// generation with the context the search's network work runs under, so
// superseding a search both marks it stale and cancels its I/O.
//
// Not safe for concurrent use; all access happens on the program's event
// loop.
type searchState struct {
	current SearchToken
	active  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Start supersedes any in-flight search and issues a fresh token along with
// the context the new search must run under.
func (s *searchState) Start() (SearchToken, context.Context) {
	s.Cancel()
	s.current++
	s.active = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s.current, s.ctx
}

// Cancel irrevocably invalidates the live search, if any. Its result, if it
// ever arrives, is permanently inert.
func (s *searchState) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.ctx = nil
	}
	if s.active {
		// Burn the generation so the outstanding token can never match again.
		s.current++
		s.active = false
	}
}

// Finish marks the search idle, but only if token is still the current one.
// Finishing a stale token is a no-op. Returns whether the token was current.
func (s *searchState) Finish(token SearchToken) bool {
	if token != s.current {
		return false
	}
	s.active = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.ctx = nil
	}
	return true
}

// IsStale reports whether a newer token has been issued since this one.
func (s *searchState) IsStale(token SearchToken) bool {
	return token != s.current
}

// Resume returns the live context for a follow-up fetch under the same
// token (the feedback fallback), or false if the token has been superseded.
func (s *searchState) Resume(token SearchToken) (context.Context, bool) {
	if token != s.current || s.ctx == nil {
		return nil, false
	}
	return s.ctx, true
}

// Searching reports whether a search is currently in flight.
func (s *searchState) Searching() bool {
	return s.active
}
