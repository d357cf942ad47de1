// Package session holds the state of one user session: the current job
// description and the tailored resume produced for it.
package session

import (
	"errors"
	"sync"

	"github.com/jonathan/apply-agent/internal/jobdesc"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

// ErrNoResume is returned by WithResume when nothing has been tailored yet.
var ErrNoResume = errors.New("no tailored resume in this session")

// Session is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	jd     *types.JobDescription
	resume *tailoring.TailoredResume

	// work serialises reads and mutations of the resume object itself.
	work sync.Mutex
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// SetJobDescription replaces the current JD. A different JD drops the resume tailored for the old one.
func (s *Session) SetJobDescription(jd *types.JobDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jd != jd {
		s.resume = nil
	}
	s.jd = jd
}

// LoadDetected validates a detected JD and makes it current. On error the session is unchanged.
func (s *Session) LoadDetected(d types.DetectedJD) (*types.JobDescription, error) {
	jd, err := jobdesc.FromDetection(d)
	if err != nil {
		return nil, err
	}
	s.SetJobDescription(jd)
	return jd, nil
}

// LoadPasted validates a manually pasted JD and makes it current. On error the session is unchanged.
func (s *Session) LoadPasted(title, text string) (*types.JobDescription, error) {
	jd, err := jobdesc.FromPaste(title, text)
	if err != nil {
		return nil, err
	}
	s.SetJobDescription(jd)
	return jd, nil
}

// JobDescription returns the current JD, or nil.
func (s *Session) JobDescription() *types.JobDescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jd
}

// SetResume stores a freshly tailored resume.
func (s *Session) SetResume(r *tailoring.TailoredResume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume = r
}

// SetResumeFor stores r only while jd is still the current JD. It reports whether r was kept.
func (s *Session) SetResumeFor(jd *types.JobDescription, r *tailoring.TailoredResume) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jd != jd {
		return false
	}
	s.resume = r
	return true
}

// Resume returns the current tailored resume, or nil. Use WithResume to read or
// change its fields while other goroutines may be doing the same.
func (s *Session) Resume() *tailoring.TailoredResume {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resume
}

// WithResume runs fn with exclusive access to the current resume and JD.
func (s *Session) WithResume(fn func(r *tailoring.TailoredResume, jd *types.JobDescription) error) error {
	s.work.Lock()
	defer s.work.Unlock()

	s.mu.RLock()
	r, jd := s.resume, s.jd
	s.mu.RUnlock()

	if r == nil {
		return ErrNoResume
	}
	return fn(r, jd)
}

// Reset discards the JD and resume.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jd = nil
	s.resume = nil
}
