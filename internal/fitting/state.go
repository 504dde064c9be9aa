package fitting

import (
	"errors"
	"fmt"
)

type Status int

const (
	StatusIdle Status = iota
	StatusGenerating
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusGenerating:
		return "generating"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var (
	ErrAlreadyGenerating = errors.New("a generation is already in progress")
	ErrInvalidTransition = errors.New("invalid request state transition")
)

// RequestState tracks a single generation request as seen by its owner.
// ResultURL is set only in StatusSucceeded and Message only in StatusFailed.
// The zero value is Idle.
type RequestState struct {
	Status    Status
	ResultURL string
	Message   string
}

func (s *RequestState) Submit() error {
	switch s.Status {
	case StatusIdle:
		*s = RequestState{Status: StatusGenerating}
		return nil
	case StatusGenerating:
		return ErrAlreadyGenerating
	default:
		return s.invalid("submit")
	}
}

func (s *RequestState) Retry() error {
	switch s.Status {
	case StatusFailed:
		*s = RequestState{Status: StatusGenerating}
		return nil
	case StatusGenerating:
		return ErrAlreadyGenerating
	default:
		return s.invalid("retry")
	}
}

func (s *RequestState) Succeed(resultURL string) error {
	if s.Status != StatusGenerating {
		return s.invalid("succeed")
	}
	*s = RequestState{Status: StatusSucceeded, ResultURL: resultURL}
	return nil
}

func (s *RequestState) Fail(message string) error {
	if s.Status != StatusGenerating {
		return s.invalid("fail")
	}
	*s = RequestState{Status: StatusFailed, Message: message}
	return nil
}

func (s *RequestState) Reset() error {
	switch s.Status {
	case StatusIdle, StatusSucceeded, StatusFailed:
		*s = RequestState{}
		return nil
	default:
		return s.invalid("reset")
	}
}

func (s *RequestState) InFlight() bool {
	return s.Status == StatusGenerating
}

func (s *RequestState) invalid(event string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, s.Status)
}
