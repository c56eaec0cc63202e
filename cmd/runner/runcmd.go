package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/agent0/runner/internal/client"
	"github.com/agent0/runner/internal/domain/event"
)

// varFlags collects repeated --var name=value flags.
type varFlags map[string]string

func (v varFlags) String() string { return fmt.Sprint(map[string]string(v)) }

func (v varFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	v[name] = value
	return nil
}

// runRun executes a deployed agent through a running server and prints the
// result, streaming text as it arrives when --stream is set.
func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	baseURL := fs.String("url", envOr("RUNNER_URL", "http://localhost:2223"), "runner base URL")
	apiKey := fs.String("api-key", os.Getenv("RUNNER_API_KEY"), "workspace API key")
	agentID := fs.String("agent", "", "agent id (required)")
	env := fs.String("env", "", "deployment environment (production or staging)")
	stream := fs.Bool("stream", false, "stream events as they arrive")
	asJSON := fs.Bool("json", false, "print the reconstructed messages as JSON")
	vars := varFlags{}
	fs.Var(vars, "var", "template variable name=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agentID == "" || *apiKey == "" {
		return errors.New("--agent and --api-key (or RUNNER_API_KEY) are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*baseURL, *apiKey)
	req := client.RunRequest{AgentID: *agentID, Environment: *env, Variables: vars}

	if !*stream {
		res, err := c.Run(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "run %s\n", res.RunID)
		if *asJSON {
			return printJSON(res.Messages)
		}
		fmt.Println(res.Text)
		return nil
	}

	res, err := c.Stream(ctx, req, func(ev event.Event) error {
		if !*asJSON && ev.Type == event.TextDelta {
			fmt.Print(ev.Text)
		}
		return nil
	})
	if res != nil {
		if !*asJSON {
			fmt.Println()
		}
		fmt.Fprintf(os.Stderr, "run %s: %d events, finish=%s\n", res.RunID, res.Events, res.FinishReason)
		if *asJSON {
			if perr := printJSON(res.Messages); perr != nil {
				return perr
			}
		}
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
