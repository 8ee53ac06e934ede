package scoring

import "pricinglab/pkg/contracts/domain"

// EventKind classifies an Observer event.
type EventKind string

const (
	EventRowsDropped   EventKind = "rows_dropped"
	EventPlaceholder   EventKind = "placeholder_chart"
	EventIndeterminate EventKind = "indeterminate"
	EventUniformScores EventKind = "uniform_scores"
)

// Event describes a degraded or noteworthy path taken during a run.
type Event struct {
	Engine domain.AnalysisType
	Kind   EventKind
	Detail string
	Count  int
}

// Observer receives events synchronously from the calling goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Option configures a single run.
type Option func(*runConfig)

type runConfig struct {
	observer Observer
}

// WithObserver routes run events to o.
func WithObserver(o Observer) Option {
	return func(c *runConfig) { c.observer = o }
}

func newRunConfig(opts []Option) runConfig {
	var c runConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c runConfig) emit(e Event) {
	if c.observer != nil {
		c.observer.Observe(e)
	}
}
