package epic

import "github.com/aretw0/ripple/pkg/domain"

// Bracket describes the start/result/end convention around an asynchronous operation.
// Name must be stable so consumers can tell overlapping operations apart.
// The constructors default to domain.LoadingStart, domain.LoadingEnd and domain.Failed.
type Bracket struct {
	Name  string
	Start func(name string) domain.Action
	End   func(name string) domain.Action
	Error func(name string, err error) domain.Action
}

func (b Bracket) start() domain.Action {
	if b.Start != nil {
		return b.Start(b.Name)
	}
	return domain.LoadingStart(b.Name)
}

func (b Bracket) end() domain.Action {
	if b.End != nil {
		return b.End(b.Name)
	}
	return domain.LoadingEnd(b.Name)
}

func (b Bracket) fail(err error) domain.Action {
	if b.Error != nil {
		return b.Error(b.Name, err)
	}
	return domain.Failed(b.Name, err)
}

// openBracket is guarded by the run's gate.
type openBracket struct {
	b      Bracket
	closed bool
}
