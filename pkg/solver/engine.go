package solver

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ErrBusy is returned when a new generation is requested while one is being
// built.
var ErrBusy = errors.New("iteration already running")

// SaveFunc persists a freshly built generation.
type SaveFunc func(*Strategy) error

// Engine serves the current generation while newer ones are built in the
// background. Readers always see a complete Strategy; a new generation is
// swapped in only once both of its tables are finished.
type Engine struct {
	current atomic.Pointer[Strategy]
	running atomic.Bool
	save    SaveFunc

	mu        sync.Mutex
	observers map[int]ProgressFunc
	nextID    int
}

// NewEngine creates an engine serving s. save, when non-nil, is called with
// every generation built by Advance.
func NewEngine(s *Strategy, save SaveFunc) *Engine {
	e := &Engine{save: save, observers: make(map[int]ProgressFunc)}
	e.current.Store(s)
	return e
}

// Current returns the generation being served.
func (e *Engine) Current() *Strategy {
	return e.current.Load()
}

// Running reports whether a generation is being built.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Subscribe registers fn for progress of background builds and returns a
// function that removes it.
func (e *Engine) Subscribe(fn ProgressFunc) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.observers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

func (e *Engine) publish(p Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, fn := range e.observers {
		fn(p)
	}
}

// Advance starts building the given number of further generations in the
// background and returns immediately. The returned channel yields the result
// once all generations are built (or saving one fails) and is then closed.
func (e *Engine) Advance(generations int, opts Options) (<-chan error, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	if generations < 1 {
		generations = 1
	}
	user := opts.Progress
	opts.Progress = func(p Progress) {
		if user != nil {
			user(p)
		}
		e.publish(p)
	}

	done := make(chan error, 1)
	go func() {
		err := e.advance(generations, opts)
		e.running.Store(false)
		done <- err
		close(done)
	}()
	return done, nil
}

func (e *Engine) advance(generations int, opts Options) error {
	for i := 0; i < generations; i++ {
		next := e.Current().Iterate(opts)
		e.current.Store(next)
		log.Info().Int("generation", next.N()).Msg("generation-ready")
		if e.save != nil {
			if err := e.save(next); err != nil {
				log.Error().Err(err).Int("generation", next.N()).Msg("checkpoint-failed")
				return err
			}
		}
	}
	return nil
}
