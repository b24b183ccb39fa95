// Package stage implements resumable computations that report their progress.
//
// A long computation is split into a Stepper whose Step method performs a
// bounded amount of work and returns. The caller owns pacing: it may interleave
// steps with other work, report progress to a user, or stop calling Step
// altogether to abandon the computation.
package stage

import (
	"context"
	"io"
)

// Progress is reported after every step of a computation.
type Progress struct {
	// Message is a human readable description of the running stage.
	Message string
	// Fraction of the running stage completed, in [0,1].
	Fraction float64
}

// Stepper is a resumable computation. Step performs a bounded amount of
// work and returns the progress made. Once the computation is finished
// Step returns io.EOF. Any other error aborts the computation and later
// calls to Step should not be made.
type Stepper interface {
	Step() (Progress, error)
}

// Func is an adapter to use an ordinary function as a Stepper.
type Func func() (Progress, error)

// Step calls f.
func (f Func) Step() (Progress, error) { return f() }

// Loop returns a Stepper that calls body for every i in [0, n), running
// at most every iterations per step.
func Loop(msg string, n, every int, body func(i int) error) Stepper {
	if every <= 0 {
		every = 1
	}
	return &loop{msg: msg, n: n, every: every, body: body}
}

type loop struct {
	msg      string
	n, every int
	i        int
	body     func(int) error
}

func (l *loop) Step() (Progress, error) {
	if l.i >= l.n {
		return Progress{}, io.EOF
	}
	end := l.i + l.every
	if end > l.n {
		end = l.n
	}
	for ; l.i < end; l.i++ {
		if err := l.body(l.i); err != nil {
			return Progress{}, err
		}
	}
	return Progress{Message: l.msg, Fraction: float64(l.i) / float64(l.n)}, nil
}

// Do returns a Stepper that runs fn in a single step.
func Do(msg string, fn func() error) Stepper {
	done := false
	return Func(func() (Progress, error) {
		if done {
			return Progress{}, io.EOF
		}
		done = true
		if err := fn(); err != nil {
			return Progress{}, err
		}
		return Progress{Message: msg, Fraction: 1}, nil
	})
}

// Fail returns a Stepper whose every step fails with err.
func Fail(err error) Stepper {
	return Func(func() (Progress, error) { return Progress{}, err })
}

// Lazy defers building a Stepper until its first step. Stages that depend
// on the results of an earlier stage are built this way. A nil Stepper
// returned by build is an empty computation.
func Lazy(build func() Stepper) Stepper {
	return &lazy{build: build}
}

type lazy struct {
	build func() Stepper
	s     Stepper
	built bool
}

func (l *lazy) Step() (Progress, error) {
	if !l.built {
		l.s = l.build()
		l.built = true
	}
	if l.s == nil {
		return Progress{}, io.EOF
	}
	return l.s.Step()
}

// Sequence runs steppers one after the other.
func Sequence(steps ...Stepper) Stepper {
	return &sequence{steps: steps}
}

type sequence struct {
	steps []Stepper
}

func (s *sequence) Step() (Progress, error) {
	for len(s.steps) > 0 {
		p, err := s.steps[0].Step()
		if err == io.EOF {
			s.steps = s.steps[1:]
			continue
		}
		return p, err
	}
	return Progress{}, io.EOF
}

// Run drives s to completion, calling report after every step if report
// is not nil. It stops early with the context's error if ctx is done.
// Run does not return io.EOF.
func Run(ctx context.Context, s Stepper, report func(Progress)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := s.Step()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if report != nil {
			report(p)
		}
	}
}
