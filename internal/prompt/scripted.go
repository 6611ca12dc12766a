package prompt

import (
	"context"
	"fmt"
	"sync"
)

// Scripted replays canned answers in order. It records every question and
// option list so tests can assert on what was asked.
type Scripted struct {
	mu sync.Mutex

	Confirms   []bool
	Selections []int
	Asked      []string
	Offered    [][]string
}

func (s *Scripted) Confirm(_ context.Context, question string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, question)
	if len(s.Confirms) == 0 {
		return false, fmt.Errorf("unscripted confirm: %q", question)
	}
	answer := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return answer, nil
}

// Select returns the next scripted index. A negative index cancels.
func (s *Scripted) Select(_ context.Context, title string, options []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, title)
	s.Offered = append(s.Offered, append([]string(nil), options...))
	if len(s.Selections) == 0 {
		return -1, fmt.Errorf("unscripted select: %q", title)
	}
	i := s.Selections[0]
	s.Selections = s.Selections[1:]
	if i < 0 {
		return -1, ErrCancelled
	}
	if i >= len(options) {
		return -1, fmt.Errorf("scripted selection %d out of range for %d options", i, len(options))
	}
	return i, nil
}
