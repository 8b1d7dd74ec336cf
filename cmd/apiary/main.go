package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/boristopalov/apiary/pkg/agent"
	"github.com/boristopalov/apiary/pkg/config"
	"github.com/boristopalov/apiary/pkg/connections"
	"github.com/boristopalov/apiary/pkg/providers"
	"github.com/boristopalov/apiary/pkg/swarm"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "apiary",
		Short: "Apiary runs a swarm of autonomous agents that schedule weighted actions and talk to each other over a shared mailbox.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a swarm from a configuration file",
		RunE:  runSwarm,
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "swarm.yaml", "path to the swarm configuration file")

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.Execute()
}

func runSwarm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	identities := make([]swarm.Identity, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		identities = append(identities, swarm.Identity{
			Name: a.Name,
			Opts: agentOptions(a),
		})
	}

	manager := swarm.NewSwarmManager(registry, registry, identities,
		swarm.WithJoinTimeout(seconds(cfg.Swarm.JoinTimeout)),
	)
	if len(manager.Agents()) == 0 {
		return fmt.Errorf("no agents could be constructed from %s", configPath)
	}

	manager.StartAll(ctx)
	log.Printf("swarm running with %d agents, press Ctrl-C to stop", len(manager.Agents()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down")
	cancel()
	manager.StopAll()
	return nil
}

func buildRegistry(ctx context.Context, cfg *config.Config) (*connections.Registry, error) {
	registry := connections.NewRegistry()
	for _, conn := range cfg.Connections {
		var built connections.Connection
		switch conn.Type {
		case "openai":
			built = connections.NewLLMConnection(conn.Name, conn.Model, providers.OpenAi(ctx))
		case "gemini":
			gemini, err := providers.Gemini(ctx)
			if err != nil {
				return nil, fmt.Errorf("connection %s: %w", conn.Name, err)
			}
			built = connections.NewLLMConnection(conn.Name, conn.Model, gemini)
		case "local":
			built = connections.NewLocalConnection(conn.Name)
		default:
			return nil, fmt.Errorf("connection %s has unknown type %q", conn.Name, conn.Type)
		}
		if err := registry.Register(built); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func agentOptions(a config.AgentConfig) []agent.Option {
	tasks := make([]agent.Task, 0, len(a.Tasks))
	for _, task := range a.Tasks {
		tasks = append(tasks, agent.Task{
			Name:       task.Name,
			Connection: task.Connection,
			Action:     task.Action,
			Params:     task.Params,
			Weight:     task.Weight,
			Category:   task.Category,
		})
	}

	feeds := make([]agent.Feed, 0, len(a.Feeds))
	for _, feed := range a.Feeds {
		feeds = append(feeds, agent.Feed{
			Key:        feed.Key,
			Connection: feed.Connection,
			Action:     feed.Action,
			Params:     feed.Params,
		})
	}

	opts := []agent.Option{
		agent.WithTasks(tasks),
		agent.WithFeeds(feeds),
		agent.WithLoopDelay(seconds(a.LoopDelay)),
		agent.WithFallbackDelay(seconds(a.FallbackDelay)),
		agent.WithWarmup(seconds(a.Warmup)),
	}
	if m := a.TimeBasedMultipliers; m != nil {
		opts = append(opts, agent.WithMultipliers(&agent.Multipliers{
			TweetNightMultiplier:    m.TweetNightMultiplier,
			EngagementDayMultiplier: m.EngagementDayMultiplier,
		}))
	}
	return opts
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
