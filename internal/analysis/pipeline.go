package analysis

import (
	"context"
	"slices"
	"sync"

	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/meal"
)

// State is one of Idle, Loading, Success, Saved or Failed.
type State interface {
	String() string
	isState()
}

// Idle waits for a capture or an analysis of the staged photo.
type Idle struct{}

// Loading means an analysis is running.
type Loading struct{}

// Success holds the meal produced by the last analysis.
type Success struct {
	Meal meal.AnalyzedMeal
}

// Saved holds the record written by the last save.
type Saved struct {
	Record meal.SavedMealRecord
}

// Failed holds a user facing message.
type Failed struct {
	Message string
}

func (Idle) String() string    { return "idle" }
func (Loading) String() string { return "loading" }
func (Success) String() string { return "success" }
func (Saved) String() string   { return "saved" }
func (Failed) String() string  { return "failed" }

func (Idle) isState()    {}
func (Loading) isState() {}
func (Success) isState() {}
func (Saved) isState()   {}
func (Failed) isState()  {}

// MealAnalyzer is implemented by Analyzer.
type MealAnalyzer interface {
	Analyze(ctx context.Context, image []byte) (meal.AnalyzedMeal, error)
}

// MealSaver is implemented by Gateway.
type MealSaver interface {
	Save(ctx context.Context, m meal.AnalyzedMeal) (meal.SavedMealRecord, error)
}

// TransitionFunc observes a state change. It runs after the pipeline lock is released.
type TransitionFunc func(from, to State)

// Pipeline drives one photo through capture, analysis and save. Operations are safe for
// concurrent use; only one analysis or save runs at a time.
type Pipeline struct {
	analyzer MealAnalyzer
	saver    MealSaver
	log      logger.Logger

	mu        sync.Mutex
	state     State
	image     []byte
	busy      bool
	observers []TransitionFunc
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

func WithPipelineLogger(log logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithMetrics records every transition.
func WithMetrics(m Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.observers = append(p.observers, func(from, to State) {
				m.RecordStateTransition(from.String(), to.String())
			})
		}
	}
}

// NewPipeline creates a pipeline in the Idle state.
func NewPipeline(analyzer MealAnalyzer, saver MealSaver, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		analyzer: analyzer,
		saver:    saver,
		log:      GetLogger(),
		state:    Idle{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// HasImage reports whether a photo is staged.
func (p *Pipeline) HasImage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.image) > 0
}

// OnTransition registers fn to be called after every state change.
func (p *Pipeline) OnTransition(fn TransitionFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Capture stages image for analysis and returns to Idle.
func (p *Pipeline) Capture(image []byte) error {
	p.mu.Lock()
	if p.busy {
		state := p.state
		p.mu.Unlock()
		return stateError(ErrBusy, "capture", state)
	}
	p.image = slices.Clone(image)
	notify := p.setLocked(Idle{})
	p.mu.Unlock()

	notify()
	return nil
}

// Analyze runs the analyzer on the staged photo. It is allowed from Idle and Failed.
func (p *Pipeline) Analyze(ctx context.Context) (meal.AnalyzedMeal, error) {
	p.mu.Lock()
	if p.busy {
		state := p.state
		p.mu.Unlock()
		return meal.AnalyzedMeal{}, stateError(ErrBusy, "analyze", state)
	}
	switch p.state.(type) {
	case Idle, Failed:
	default:
		state := p.state
		p.mu.Unlock()
		return meal.AnalyzedMeal{}, stateError(ErrInvalidTransition, "analyze", state)
	}
	if len(p.image) == 0 {
		notify := p.setLocked(Failed{Message: MessageNoImage})
		p.mu.Unlock()
		notify()
		return meal.AnalyzedMeal{}, stateError(ErrNoImage, "analyze", Failed{})
	}

	image := p.image
	p.busy = true
	notify := p.setLocked(Loading{})
	p.mu.Unlock()
	notify()

	result, err := p.analyzer.Analyze(ctx, image)

	p.mu.Lock()
	p.busy = false
	if err != nil {
		p.log.Warn("analysis failed", logger.Error(err))
		notify = p.setLocked(Failed{Message: FailureMessage(err)})
	} else {
		notify = p.setLocked(Success{Meal: result})
	}
	p.mu.Unlock()
	notify()

	return result, err
}

// Save persists the meal from the Success state.
func (p *Pipeline) Save(ctx context.Context) (meal.SavedMealRecord, error) {
	p.mu.Lock()
	if p.busy {
		state := p.state
		p.mu.Unlock()
		return meal.SavedMealRecord{}, stateError(ErrBusy, "save", state)
	}
	success, ok := p.state.(Success)
	if !ok {
		state := p.state
		p.mu.Unlock()
		return meal.SavedMealRecord{}, stateError(ErrInvalidTransition, "save", state)
	}
	p.busy = true
	p.mu.Unlock()

	record, err := p.saver.Save(ctx, success.Meal)

	p.mu.Lock()
	p.busy = false
	var notify func()
	if err != nil {
		p.log.Warn("save failed", logger.Error(err))
		notify = p.setLocked(Failed{Message: MessageSaveFailed})
	} else {
		notify = p.setLocked(Saved{Record: record})
	}
	p.mu.Unlock()
	notify()

	return record, err
}

// Dismiss leaves the Failed state and keeps the staged photo so it can be analyzed again.
func (p *Pipeline) Dismiss() error {
	p.mu.Lock()
	if _, ok := p.state.(Failed); !ok || p.busy {
		state := p.state
		p.mu.Unlock()
		return stateError(ErrInvalidTransition, "dismiss", state)
	}
	notify := p.setLocked(Idle{})
	p.mu.Unlock()

	notify()
	return nil
}

// Reset returns to Idle and drops the staged photo.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	if p.busy {
		state := p.state
		p.mu.Unlock()
		return stateError(ErrBusy, "reset", state)
	}
	p.image = nil
	notify := p.setLocked(Idle{})
	p.mu.Unlock()

	notify()
	return nil
}

// setLocked changes state and returns a function that notifies observers. Callers hold p.mu
// and call the returned function after unlocking.
func (p *Pipeline) setLocked(to State) func() {
	from := p.state
	p.state = to
	observers := slices.Clone(p.observers)

	p.log.Debug("pipeline transition",
		logger.String("from", from.String()),
		logger.String("to", to.String()))

	return func() {
		for _, fn := range observers {
			fn(from, to)
		}
	}
}
