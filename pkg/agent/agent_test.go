package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/boristopalov/apiary/pkg/connections"
	"github.com/boristopalov/apiary/pkg/messaging"
)

// mockExecutor implements ActionExecutor for testing
type mockExecutor struct {
	perform func(connection string, action string, params map[string]any) (any, error)
	calls   []string
	mu      sync.Mutex
}

func (m *mockExecutor) Perform(ctx context.Context, connection string, action string, params map[string]any) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, connection+"/"+action)
	m.mu.Unlock()
	if m.perform == nil {
		return "ok", nil
	}
	return m.perform(connection, action, params)
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// staticProviders implements ProviderLister for testing
type staticProviders []string

func (s staticProviders) LLMProviders() []string {
	return s
}

func newTestAgent(t *testing.T, opts ...Option) *Agent {
	t.Helper()
	base := []Option{
		WithBus(messaging.NewBus()),
		WithExecutor(&mockExecutor{}),
		WithWarmup(0),
		WithLoopDelay(5 * time.Millisecond),
		WithFallbackDelay(5 * time.Millisecond),
		WithRetryBudget(3, time.Millisecond),
	}
	a, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create agent: %v", err)
	}
	return a
}

func TestWeightedSelection(t *testing.T) {
	t.Run("test distribution matches weights", func(t *testing.T) {
		a := newTestAgent(t,
			WithTasks([]Task{
				{Name: "A", Weight: 1},
				{Name: "B", Weight: 3},
			}),
			WithRand(rand.New(rand.NewSource(42))),
		)

		const draws = 10000
		countB := 0
		for i := 0; i < draws; i++ {
			task, ok := a.selectTask()
			if !ok {
				t.Fatal("selectTask returned no task")
			}
			if task.Name == "B" {
				countB++
			}
		}

		got := float64(countB) / draws
		if got < 0.72 || got > 0.78 {
			t.Errorf("B selected %.1f%% of the time, want ~75%%", got*100)
		}
	})

	t.Run("test all-zero weights fall back to uniform", func(t *testing.T) {
		a := newTestAgent(t,
			WithTasks([]Task{
				{Name: "A", Weight: 0},
				{Name: "B", Weight: 0},
			}),
			WithRand(rand.New(rand.NewSource(7))),
		)

		seen := map[string]bool{}
		for i := 0; i < 200; i++ {
			task, ok := a.selectTask()
			if !ok {
				t.Fatal("selectTask returned no task")
			}
			seen[task.Name] = true
		}
		if !seen["A"] || !seen["B"] {
			t.Errorf("Uniform fallback never drew some task: %v", seen)
		}
	})

	t.Run("test no tasks configured", func(t *testing.T) {
		a := newTestAgent(t)
		if _, ok := a.selectTask(); ok {
			t.Error("Expected no task from an agent without tasks")
		}
	})
}

func TestTimeBasedMultipliers(t *testing.T) {
	at := func(hour int) func() time.Time {
		return func() time.Time {
			return time.Date(2025, 6, 1, hour, 0, 0, 0, time.UTC)
		}
	}
	multipliers := &Multipliers{
		TweetNightMultiplier:    0.4,
		EngagementDayMultiplier: 1.5,
	}

	t.Run("test night multiplier on post task", func(t *testing.T) {
		a := newTestAgent(t, WithMultipliers(multipliers), WithClock(at(2)))
		got := a.effectiveWeight(Task{Name: "post-tweet", Weight: 10, Category: CategoryPost})
		if got != 4.0 {
			t.Errorf("effectiveWeight = %v, want 4.0", got)
		}
	})

	t.Run("test day multiplier on engagement task", func(t *testing.T) {
		a := newTestAgent(t, WithMultipliers(multipliers), WithClock(at(12)))
		got := a.effectiveWeight(Task{Name: "reply-to-tweet", Weight: 2, Category: CategoryEngage})
		if got != 3.0 {
			t.Errorf("effectiveWeight = %v, want 3.0", got)
		}
	})

	t.Run("test multipliers outside their window", func(t *testing.T) {
		a := newTestAgent(t, WithMultipliers(multipliers), WithClock(at(6)))
		if got := a.effectiveWeight(Task{Weight: 10, Category: CategoryPost}); got != 10 {
			t.Errorf("Post weight changed outside night window: %v", got)
		}
		if got := a.effectiveWeight(Task{Weight: 10, Category: CategoryEngage}); got != 10 {
			t.Errorf("Engage weight changed outside day window: %v", got)
		}
	})

	t.Run("test uncategorized task unaffected", func(t *testing.T) {
		a := newTestAgent(t, WithMultipliers(multipliers), WithClock(at(2)))
		if got := a.effectiveWeight(Task{Weight: 5}); got != 5 {
			t.Errorf("Uncategorized weight changed: %v", got)
		}
	})
}

func TestStopIdempotent(t *testing.T) {
	a := newTestAgent(t)
	a.inbox = []messaging.Message{{From: "x", Content: "leftover"}}
	a.context.Set("timeline", "cached")

	a.Stop()
	a.Stop()

	if a.IsRunning() {
		t.Error("Expected running=false after Stop")
	}
	if len(a.inbox) != 0 {
		t.Errorf("Expected empty inbox after Stop, got %d messages", len(a.inbox))
	}
	if a.context.Len() != 0 {
		t.Errorf("Expected cleared context after Stop, got %d entries", a.context.Len())
	}
}

func TestRetryClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("test transient failures consume the retry budget", func(t *testing.T) {
		executor := &mockExecutor{
			perform: func(connection, action string, params map[string]any) (any, error) {
				return nil, &connections.ExecutionError{Connection: connection, Action: action, Err: fmt.Errorf("rate limited")}
			},
		}
		a := newTestAgent(t,
			WithExecutor(executor),
			WithTasks([]Task{{Name: "post", Connection: "social", Action: "post", Weight: 1}}),
		)

		if success := a.act(ctx); success {
			t.Error("Expected act to report failure")
		}
		if got := executor.callCount(); got != 3 {
			t.Errorf("Expected 3 attempts, got %d", got)
		}
	})

	t.Run("test not-found is terminal", func(t *testing.T) {
		executor := &mockExecutor{
			perform: func(connection, action string, params map[string]any) (any, error) {
				return nil, fmt.Errorf("%w: %s", connections.ErrActionNotFound, action)
			},
		}
		a := newTestAgent(t,
			WithExecutor(executor),
			WithTasks([]Task{{Name: "post", Connection: "social", Action: "post", Weight: 1}}),
		)

		if success := a.act(ctx); success {
			t.Error("Expected act to report failure")
		}
		if got := executor.callCount(); got != 1 {
			t.Errorf("Expected 1 attempt for terminal error, got %d", got)
		}
	})

	t.Run("test empty result counts as unsuccessful", func(t *testing.T) {
		executor := &mockExecutor{
			perform: func(connection, action string, params map[string]any) (any, error) {
				return "", nil
			},
		}
		a := newTestAgent(t,
			WithExecutor(executor),
			WithTasks([]Task{{Name: "post", Connection: "social", Action: "post", Weight: 1}}),
		)

		if success := a.act(ctx); success {
			t.Error("Expected empty result to count as unsuccessful")
		}
		if got := executor.callCount(); got != 1 {
			t.Errorf("Empty result is not an error and must not be retried, got %d attempts", got)
		}
	})
}

func TestReplenish(t *testing.T) {
	ctx := context.Background()
	executor := &mockExecutor{
		perform: func(connection, action string, params map[string]any) (any, error) {
			return []string{"post 1", "post 2"}, nil
		},
	}
	a := newTestAgent(t,
		WithExecutor(executor),
		WithFeeds([]Feed{{Key: "timeline", Connection: "social", Action: "read-timeline"}}),
	)

	a.replenish(ctx)
	if _, ok := a.context.Get("timeline"); !ok {
		t.Fatal("Expected timeline to be cached after replenish")
	}

	// A second replenish must not re-fetch the cached entry
	a.replenish(ctx)
	if got := executor.callCount(); got != 1 {
		t.Errorf("Expected 1 fetch, got %d", got)
	}
}

func TestIterationSurvivesPanic(t *testing.T) {
	executor := &mockExecutor{
		perform: func(connection, action string, params map[string]any) (any, error) {
			panic("executor blew up")
		},
	}
	a := newTestAgent(t,
		WithExecutor(executor),
		WithTasks([]Task{{Name: "post", Connection: "social", Action: "post", Weight: 1}}),
	)

	success, err := a.runIteration(context.Background())
	if err == nil {
		t.Fatal("Expected iteration to surface the panic as an error")
	}
	if success {
		t.Error("Expected unsuccessful iteration")
	}
}

func TestAgentMessaging(t *testing.T) {
	ctx := context.Background()

	newPair := func(t *testing.T, executor ActionExecutor, providers ProviderLister) (*Agent, *Agent, *messaging.MessageBus) {
		bus := messaging.NewBus()
		a := newTestAgent(t, WithName("A"), WithBus(bus), WithExecutor(executor), WithProviders(providers))
		b := newTestAgent(t, WithName("B"), WithBus(bus), WithExecutor(executor), WithProviders(providers))
		return a, b, bus
	}

	t.Run("test direct message round trip", func(t *testing.T) {
		executor := &mockExecutor{
			perform: func(connection, action string, params map[string]any) (any, error) {
				return "hello back", nil
			},
		}
		a, b, bus := newPair(t, executor, staticProviders{"mock-llm"})

		if err := bus.Publish(messaging.Message{From: "A", To: "B", Content: "hi", Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}

		// B collects the message, A's collect sees nothing
		b.collect()
		if len(b.inbox) != 1 || b.inbox[0].Content != "hi" {
			t.Fatalf("Expected B's inbox to hold the message, got %+v", b.inbox)
		}
		a.collect()
		if len(a.inbox) != 0 {
			t.Errorf("Expected A's inbox to stay empty, got %+v", a.inbox)
		}

		// B answers; the reply lands on the bus addressed to A
		b.handleInbox(ctx)
		if len(b.inbox) != 0 {
			t.Errorf("Expected B's inbox cleared after handling, got %d messages", len(b.inbox))
		}

		replies := bus.Drain()
		if len(replies) != 1 {
			t.Fatalf("Expected 1 reply on the bus, got %d", len(replies))
		}
		if replies[0].From != "B" || replies[0].To != "A" || replies[0].Content != "hello back" {
			t.Errorf("Unexpected reply: %+v", replies[0])
		}
	})

	t.Run("test broadcast reaches only the first drainer", func(t *testing.T) {
		a, b, bus := newPair(t, &mockExecutor{}, nil)

		if err := bus.Publish(messaging.Message{From: "C", Content: "anyone there?"}); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}

		// The bus is consume-once: whoever drains first gets the
		// broadcast and nobody else ever sees it
		a.collect()
		b.collect()
		if len(a.inbox) != 1 {
			t.Errorf("Expected A to receive the broadcast, got %d messages", len(a.inbox))
		}
		if len(b.inbox) != 0 {
			t.Errorf("Expected B to miss the consumed broadcast, got %d messages", len(b.inbox))
		}
	})

	t.Run("test mail addressed elsewhere is dropped", func(t *testing.T) {
		a, b, bus := newPair(t, &mockExecutor{}, nil)

		if err := bus.Publish(messaging.Message{From: "C", To: "nobody", Content: "lost"}); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}

		a.collect()
		b.collect()
		if len(a.inbox) != 0 || len(b.inbox) != 0 {
			t.Error("Message addressed elsewhere should not land in any inbox")
		}
		if bus.Len() != 0 {
			t.Error("Dropped message should not remain on the bus")
		}
	})

	t.Run("test own message not answered", func(t *testing.T) {
		executor := &mockExecutor{
			perform: func(connection, action string, params map[string]any) (any, error) {
				return "should not happen", nil
			},
		}
		a, _, bus := newPair(t, executor, staticProviders{"mock-llm"})

		if err := bus.Publish(messaging.Message{From: "A", Content: "note to self"}); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}

		a.collect()
		a.handleInbox(ctx)
		if executor.callCount() != 0 {
			t.Error("Agent should not generate a reply to its own message")
		}
		if bus.Len() != 0 {
			t.Errorf("Expected no reply on the bus, got %d messages", bus.Len())
		}
	})
}

func TestLoopStops(t *testing.T) {
	executor := &mockExecutor{}
	a := newTestAgent(t,
		WithExecutor(executor),
		WithTasks([]Task{{Name: "post", Connection: "social", Action: "post", Weight: 1}}),
	)

	done := make(chan struct{})
	go func() {
		a.Loop(context.Background())
		close(done)
	}()

	// Let a few iterations run
	deadline := time.After(2 * time.Second)
	for executor.callCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("Timeout waiting for iterations")
		case <-time.After(5 * time.Millisecond):
		}
	}

	a.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not exit after Stop")
	}
	if a.IsRunning() {
		t.Error("Expected running=false after loop exit")
	}
}
