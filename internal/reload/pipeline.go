// Package reload re-applies configuration to running components in
// dependency order.
package reload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrCycle         = errors.New("reload stages form a cycle")
	ErrUnknownStage  = errors.New("unknown reload stage")
	ErrDuplicateName = errors.New("duplicate reload stage")
)

// Stage is one step of a reload
type Stage struct {
	Name  string
	After []string
	Run   func(ctx context.Context) error
}

// Pipeline runs registered stages in topological order. Only one reload
// runs at a time.
type Pipeline struct {
	mu     sync.Mutex
	run    sync.Mutex
	stages map[string]Stage
	order  []string
	log    zerolog.Logger
}

func NewPipeline(log zerolog.Logger) *Pipeline {
	return &Pipeline{
		stages: make(map[string]Stage),
		log:    log.With().Str("component", "reload").Logger(),
	}
}

// Register adds a stage. The order is recomputed on the next Run.
func (p *Pipeline) Register(s Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stages[s.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, s.Name)
	}
	p.stages[s.Name] = s
	p.order = nil
	return nil
}

// Order returns stage names in execution order
func (p *Pipeline) Order() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.order != nil {
		return append([]string(nil), p.order...), nil
	}

	order, err := topoSort(p.stages)
	if err != nil {
		return nil, err
	}
	p.order = order
	return append([]string(nil), order...), nil
}

// Run executes every stage, stopping at the first failure
func (p *Pipeline) Run(ctx context.Context) error {
	p.run.Lock()
	defer p.run.Unlock()

	order, err := p.Order()
	if err != nil {
		return err
	}

	start := time.Now()
	for _, name := range order {
		p.mu.Lock()
		stage := p.stages[name]
		p.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stage.Run(ctx); err != nil {
			p.log.Error().Err(err).Str("stage", name).Msg("Reload stage failed")
			return fmt.Errorf("reload %s: %w", name, err)
		}
		p.log.Debug().Str("stage", name).Msg("Reload stage done")
	}
	p.log.Info().Int("stages", len(order)).Dur("took", time.Since(start)).Msg("Reload complete")
	return nil
}

// topoSort orders stages so each runs after its dependencies. Ties are
// broken by name for a stable order.
func topoSort(stages map[string]Stage) ([]string, error) {
	indegree := make(map[string]int, len(stages))
	dependents := make(map[string][]string)
	for name, s := range stages {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range s.After {
			if _, ok := stages[dep]; !ok {
				return nil, fmt.Errorf("%w: %s (needed by %s)", ErrUnknownStage, dep, name)
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(stages))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		next := dependents[name]
		sort.Strings(next)
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(stages) {
		return nil, ErrCycle
	}
	return order, nil
}
