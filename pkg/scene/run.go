package scene

import (
	"github.com/matzehuels/detour/pkg/router"
)

// Rejected is an operation the router refused to queue.
type Rejected struct {
	Index int
	Op    Op
	Err   error
}

// Apply queues every operation of the step on r without committing.
// Operations the router rejects are returned and skipped; the rest of the
// step is still queued.
func (s *Step) Apply(r *router.Router) []Rejected {
	var rejected []Rejected
	for i := range s.Ops {
		if err := s.Ops[i].Apply(r); err != nil {
			rejected = append(rejected, Rejected{Index: i, Op: s.Ops[i], Err: err})
		}
	}
	return rejected
}

// StepResult describes one committed step.
type StepResult struct {
	Index    int
	Name     string
	Rejected []Rejected
	Report   *router.Report
}

// Failures returns the number of rejected or failed operations.
func (res *StepResult) Failures() int {
	return len(res.Rejected) + len(res.Report.ItemErrors())
}

// RunStep queues and commits step i of s on r.
func RunStep(s *Scene, i int, r *router.Router) StepResult {
	step := &s.Steps[i]
	res := StepResult{Index: i, Name: step.Name}
	res.Rejected = step.Apply(r)
	res.Report = r.ProcessTransaction()
	return res
}

// Run queues and commits every step of s on r in order, calling fn after
// each commit. A non-nil error from fn stops the run and is returned.
func Run(s *Scene, r *router.Router, fn func(StepResult) error) error {
	for i := range s.Steps {
		res := RunStep(s, i, r)
		if fn == nil {
			continue
		}
		if err := fn(res); err != nil {
			return err
		}
	}
	return nil
}

// NewRouter builds a router with the parameters of s merged over base.
func NewRouter(s *Scene, base router.Parameters, opts ...router.Option) (*router.Router, error) {
	params, err := s.Params.Apply(base)
	if err != nil {
		return nil, err
	}
	return router.New(params, opts...)
}
