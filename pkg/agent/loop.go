package agent

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/boristopalov/apiary/pkg/connections"
	"github.com/boristopalov/apiary/pkg/messaging"
	"github.com/boristopalov/apiary/pkg/retry"
)

// Loop runs the scheduling loop until Stop is called or ctx expires.
// Cancellation is cooperative: the flag and ctx are checked only at
// iteration boundaries, sleeps are never interrupted mid-flight.
func (a *Agent) Loop(ctx context.Context) {
	if a.stopped.Load() {
		log.Printf("agent %s was stopped and cannot be restarted", a.name)
		return
	}
	if !a.running.CompareAndSwap(false, true) {
		log.Printf("agent %s is already running", a.name)
		return
	}

	log.Printf("agent %s warming up for %v", a.name, a.warmup)
	time.Sleep(a.warmup)

	for a.running.Load() && ctx.Err() == nil {
		success, err := a.runIteration(ctx)
		switch {
		case err != nil:
			log.Printf("agent %s: iteration failed: %v", a.name, err)
			time.Sleep(a.loopDelay)
		case success:
			time.Sleep(a.loopDelay)
		default:
			time.Sleep(a.fallbackDelay)
		}
	}

	log.Printf("agent %s loop exited", a.name)
}

// runIteration performs one pass: collect mail, answer siblings,
// replenish cached inputs, then draw and execute one weighted task.
// A panic out of any step is contained here so the loop survives it.
func (a *Agent) runIteration(ctx context.Context) (success bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iteration panic: %v", r)
		}
	}()

	a.collect()
	a.handleInbox(ctx)
	a.replenish(ctx)
	return a.act(ctx), nil
}

// collect drains the shared bus and keeps messages addressed to this
// agent or to any agent. Mail addressed elsewhere is dropped: the drain
// already removed it from the pool, so no other agent can recover it.
func (a *Agent) collect() {
	for _, msg := range a.bus.Drain() {
		if msg.Broadcast() || msg.To == a.name {
			a.inboxMu.Lock()
			a.inbox = append(a.inbox, msg)
			a.inboxMu.Unlock()
		}
	}
}

// handleInbox answers every message from a sibling with a generated
// reply addressed back to the sender. The inbox is cleared whether or
// not any reply could be produced.
func (a *Agent) handleInbox(ctx context.Context) {
	a.inboxMu.Lock()
	pending := a.inbox
	a.inbox = nil
	a.inboxMu.Unlock()

	for _, msg := range pending {
		if msg.From == a.name {
			continue
		}
		a.history.Add(fmt.Sprintf("%s: %s", msg.From, msg.Content))

		reply := a.respond(ctx, msg)
		if reply == "" {
			continue
		}
		out := messaging.Message{
			From:      a.name,
			To:        msg.From,
			Content:   reply,
			Timestamp: a.now(),
		}
		if err := a.bus.Publish(out); err != nil {
			log.Printf("agent %s: failed to publish reply to %s: %v", a.name, msg.From, err)
			continue
		}
		a.history.Add(fmt.Sprintf("%s: %s", a.name, reply))
	}
}

// respond generates a reply through the first available LLM connection.
// Any failure is a soft one: log it and send nothing.
func (a *Agent) respond(ctx context.Context, msg messaging.Message) string {
	if a.providers == nil {
		return ""
	}
	llms := a.providers.LLMProviders()
	if len(llms) == 0 {
		log.Printf("agent %s: no text-generation connection available to answer %s", a.name, msg.From)
		return ""
	}

	result, err := a.executor.Perform(ctx, llms[0], connections.ActionGenerateText, map[string]any{
		"prompt": a.replyPrompt(msg),
	})
	if err != nil {
		log.Printf("agent %s: failed to generate reply to %s: %v", a.name, msg.From, err)
		return ""
	}
	reply, _ := result.(string)
	return reply
}

func (a *Agent) replyPrompt(msg messaging.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, one agent in a swarm of autonomous agents.\n", a.name)
	if recent := a.history.All(); len(recent) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, line := range recent {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	fmt.Fprintf(&sb, "%s says: %s\nWrite a short reply to %s.", msg.From, msg.Content, msg.From)
	return sb.String()
}

// replenish fetches each configured feed whose context entry is empty
// and caches the result, so task executions don't re-fetch every
// iteration. Fetch failures are soft.
func (a *Agent) replenish(ctx context.Context) {
	for _, feed := range a.feeds {
		if _, ok := a.context.Get(feed.Key); ok {
			continue
		}
		result, err := a.executor.Perform(ctx, feed.Connection, feed.Action, feed.Params)
		if err != nil {
			log.Printf("agent %s: failed to refresh %s: %v", a.name, feed.Key, err)
			continue
		}
		a.context.Set(feed.Key, result)
	}
}

// act draws one weighted task and executes it through the retry
// invoker. Returns the iteration's success bit.
func (a *Agent) act(ctx context.Context) bool {
	task, ok := a.selectTask()
	if !ok {
		return true
	}
	log.Printf("agent %s: executing task %s", a.name, task.Name)

	result, err := retry.Invoke(func() (any, error) {
		return a.executor.Perform(ctx, task.Connection, task.Action, task.Params)
	},
		retry.WithMaxRetries(a.maxRetries),
		retry.WithBaseDelay(a.baseDelay),
		retry.WithRetryable(connections.IsRetryable),
	)
	if err != nil {
		log.Printf("agent %s: task %s failed: %v", a.name, task.Name, err)
		return false
	}
	return resultOK(result)
}

// resultOK derives a success bit from an action result: an empty
// result counts as unsuccessful but not as an error.
func resultOK(result any) bool {
	switch v := result.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	rv := reflect.ValueOf(result)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
