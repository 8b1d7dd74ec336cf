package swarm

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/boristopalov/apiary/pkg/agent"
	"github.com/boristopalov/apiary/pkg/messaging"
)

const DefaultJoinTimeout = 5 * time.Second

// Identity names one agent in the swarm plus its per-agent options
// (tasks, delays, multipliers).
type Identity struct {
	Name string
	Opts []agent.Option
}

type worker struct {
	agent *agent.Agent
	done  chan struct{}
}

// SwarmManager owns the shared message bus and a set of agents, runs
// each agent's loop on its own goroutine, and coordinates bulk
// start/stop. A manager is single-use: after StopAll it releases its
// agents and bus and cannot be restarted.
type SwarmManager struct {
	bus         *messaging.MessageBus
	agents      []*agent.Agent
	workers     []worker
	joinTimeout time.Duration
	started     bool
	mu          sync.Mutex
}

type Option func(*SwarmManager)

// WithJoinTimeout bounds how long StopAll waits for each worker.
func WithJoinTimeout(d time.Duration) Option {
	return func(m *SwarmManager) {
		if d > 0 {
			m.joinTimeout = d
		}
	}
}

// NewSwarmManager builds one shared bus and one agent per identity.
// An identity whose agent cannot be constructed is logged and skipped;
// the rest of the swarm still comes up.
func NewSwarmManager(executor agent.ActionExecutor, providers agent.ProviderLister, identities []Identity, opts ...Option) *SwarmManager {
	m := &SwarmManager{
		bus:         messaging.NewBus(),
		joinTimeout: DefaultJoinTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, id := range identities {
		agentOpts := append([]agent.Option{
			agent.WithName(id.Name),
			agent.WithBus(m.bus),
			agent.WithExecutor(executor),
			agent.WithProviders(providers),
		}, id.Opts...)

		a, err := agent.New(agentOpts...)
		if err != nil {
			log.Printf("swarm: skipping agent %s: %v", id.Name, err)
			continue
		}
		m.agents = append(m.agents, a)
	}
	return m
}

// Agents returns the successfully constructed agents.
func (m *SwarmManager) Agents() []*agent.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agents
}

// Bus returns the swarm's shared mailbox.
func (m *SwarmManager) Bus() *messaging.MessageBus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bus
}

// StartAll spawns one goroutine per agent running its loop.
func (m *SwarmManager) StartAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		log.Printf("swarm: already started")
		return
	}
	m.started = true

	for _, a := range m.agents {
		done := make(chan struct{})
		go func(a *agent.Agent, done chan struct{}) {
			defer close(done)
			a.Loop(ctx)
		}(a, done)
		m.workers = append(m.workers, worker{agent: a, done: done})
		log.Printf("swarm: started agent %s", a.Name())
	}
}

// StopAll stops every agent, then joins each worker with a bounded
// timeout. A worker still sleeping through its delay when the timeout
// expires is abandoned, not killed: shutdown is best-effort. Afterwards
// the manager's agents and bus are released.
func (m *SwarmManager) StopAll() {
	m.mu.Lock()
	agents := m.agents
	workers := m.workers
	m.agents = nil
	m.workers = nil
	m.bus = nil
	m.mu.Unlock()

	for _, a := range agents {
		a.Stop()
	}

	for _, w := range workers {
		select {
		case <-w.done:
			log.Printf("swarm: agent %s stopped", w.agent.Name())
		case <-time.After(m.joinTimeout):
			log.Printf("swarm: agent %s did not exit within %v, abandoning worker", w.agent.Name(), m.joinTimeout)
		}
	}
}
