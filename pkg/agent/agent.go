package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boristopalov/apiary/pkg/memory"
	"github.com/boristopalov/apiary/pkg/messaging"
	"github.com/google/uuid"
)

// ActionExecutor performs the side effect behind a task: an API call,
// a post, a text generation. Implemented by connections.Registry.
type ActionExecutor interface {
	Perform(ctx context.Context, connection string, action string, params map[string]any) (any, error)
}

// ProviderLister exposes which configured connections can generate
// text, used to pick a responder for incoming messages.
type ProviderLister interface {
	LLMProviders() []string
}

// Task categories recognized by the time-based weight multipliers.
const (
	CategoryPost   = "post"
	CategoryEngage = "engage"
)

// Task is one weighted action an agent can draw each iteration.
type Task struct {
	Name       string
	Connection string
	Action     string
	Params     map[string]any
	Weight     float64
	Category   string // CategoryPost, CategoryEngage, or ""
}

// Feed is a cached input replenished when its context entry is empty,
// so repeated task executions don't re-fetch every iteration.
type Feed struct {
	Key        string
	Connection string
	Action     string
	Params     map[string]any
}

// Multipliers scales task weights by hour of day: posting is damped at
// night, engagement is boosted during the day.
type Multipliers struct {
	TweetNightMultiplier    float64 // post tasks, hour in [1,5)
	EngagementDayMultiplier float64 // engage tasks, hour in [8,20)
}

const (
	DefaultLoopDelay     = 30 * time.Second
	DefaultFallbackDelay = 60 * time.Second
	DefaultWarmupDelay   = 2 * time.Second
)

// Agent runs one worker's scheduling loop: drain the shared mailbox,
// answer siblings, replenish cached inputs, then draw and execute one
// weighted task. All state is owned by the loop goroutine except the
// stop flag and inbox, which Stop touches.
type Agent struct {
	name          string
	tasks         []Task
	feeds         []Feed
	multipliers   *Multipliers
	loopDelay     time.Duration
	fallbackDelay time.Duration
	warmup        time.Duration
	maxRetries    int
	baseDelay     time.Duration

	bus       messaging.Bus
	executor  ActionExecutor
	providers ProviderLister

	context *memory.Store
	history *memory.History
	inbox   []messaging.Message
	inboxMu sync.Mutex

	running atomic.Bool
	stopped atomic.Bool // latches on Stop, an agent is not reusable
	now     func() time.Time
	rng     *rand.Rand
}

type Params struct {
	Name          string
	Tasks         []Task
	Feeds         []Feed
	Multipliers   *Multipliers
	LoopDelay     time.Duration
	FallbackDelay time.Duration
	Warmup        time.Duration
	MaxRetries    int
	BaseDelay     time.Duration
	Bus           messaging.Bus
	Executor      ActionExecutor
	Providers     ProviderLister
	Now           func() time.Time
	Rand          *rand.Rand
}

type Option func(*Params)

func WithName(name string) Option {
	return func(p *Params) {
		p.Name = name
	}
}

func WithTasks(tasks []Task) Option {
	return func(p *Params) {
		p.Tasks = tasks
	}
}

func WithFeeds(feeds []Feed) Option {
	return func(p *Params) {
		p.Feeds = feeds
	}
}

func WithMultipliers(m *Multipliers) Option {
	return func(p *Params) {
		p.Multipliers = m
	}
}

func WithLoopDelay(d time.Duration) Option {
	return func(p *Params) {
		p.LoopDelay = d
	}
}

func WithFallbackDelay(d time.Duration) Option {
	return func(p *Params) {
		p.FallbackDelay = d
	}
}

func WithWarmup(d time.Duration) Option {
	return func(p *Params) {
		p.Warmup = d
	}
}

// WithRetryBudget sets the per-action retry budget handed to the
// retry invoker.
func WithRetryBudget(maxRetries int, baseDelay time.Duration) Option {
	return func(p *Params) {
		p.MaxRetries = maxRetries
		p.BaseDelay = baseDelay
	}
}

func WithBus(bus messaging.Bus) Option {
	return func(p *Params) {
		p.Bus = bus
	}
}

func WithExecutor(executor ActionExecutor) Option {
	return func(p *Params) {
		p.Executor = executor
	}
}

func WithProviders(providers ProviderLister) Option {
	return func(p *Params) {
		p.Providers = providers
	}
}

// WithClock overrides the time source, used by tests to pin the hour
// bucket for weight multipliers.
func WithClock(now func() time.Time) Option {
	return func(p *Params) {
		p.Now = now
	}
}

// WithRand overrides the sampling source for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(p *Params) {
		p.Rand = rng
	}
}

func defaultParams() *Params {
	return &Params{
		Name:          "agent-" + uuid.New().String(),
		LoopDelay:     DefaultLoopDelay,
		FallbackDelay: DefaultFallbackDelay,
		Warmup:        DefaultWarmupDelay,
		MaxRetries:    3,
		BaseDelay:     1 * time.Second,
		Now:           time.Now,
	}
}

// New creates an agent. A bus and an executor are required.
func New(opts ...Option) (*Agent, error) {
	params := defaultParams()

	for _, opt := range opts {
		opt(params)
	}

	if params.Bus == nil {
		return nil, fmt.Errorf("agent %s: no message bus configured", params.Name)
	}
	if params.Executor == nil {
		return nil, fmt.Errorf("agent %s: no action executor configured", params.Name)
	}
	if params.LoopDelay <= 0 {
		return nil, fmt.Errorf("agent %s: loop delay must be positive", params.Name)
	}
	for _, task := range params.Tasks {
		if task.Weight < 0 {
			return nil, fmt.Errorf("agent %s: task %s has negative weight", params.Name, task.Name)
		}
	}

	rng := params.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Agent{
		name:          params.Name,
		tasks:         params.Tasks,
		feeds:         params.Feeds,
		multipliers:   params.Multipliers,
		loopDelay:     params.LoopDelay,
		fallbackDelay: params.FallbackDelay,
		warmup:        params.Warmup,
		maxRetries:    params.MaxRetries,
		baseDelay:     params.BaseDelay,
		bus:           params.Bus,
		executor:      params.Executor,
		providers:     params.Providers,
		context:       memory.NewStore(),
		history:       memory.NewHistory(100), // short term memory - start with capacity of 100 events
		now:           params.Now,
		rng:           rng,
	}, nil
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) IsRunning() bool {
	return a.running.Load()
}

// Stop requests cooperative shutdown and clears agent-local state. The
// loop notices the flag at its next iteration boundary; an in-flight
// iteration or sleep is never interrupted. Safe to call repeatedly.
func (a *Agent) Stop() {
	a.stopped.Store(true)
	a.running.Store(false)

	a.inboxMu.Lock()
	a.inbox = nil
	a.inboxMu.Unlock()

	a.context.Clear()
}
