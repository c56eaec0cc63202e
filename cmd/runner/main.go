// Command runner serves the agent run API and offers admin helpers around it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is the normal production case.
	_ = godotenv.Load()

	if err := dispatch(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func dispatch(args []string) error {
	if len(args) == 0 {
		return runServe()
	}
	switch args[0] {
	case "serve":
		return runServe()
	case "credentials":
		return runCredentials(args[1:])
	case "apikey":
		return runAPIKey(args[1:])
	case "migrate":
		return runMigrate(args[1:])
	case "run":
		return runRun(args[1:])
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: runner [command] [options]

Commands:
  serve                  Start the API server (default)
  credentials encrypt    Encrypt provider settings for storage
  apikey create          Create a workspace API key
  migrate up|down|version
                         Manage the database schema
  run                    Run a deployed agent through the API
  help                   Show this help message

Examples:
  runner credentials encrypt --public-key pub.asc < settings.json
  runner apikey create --workspace 6f1c... --name ci
  runner migrate down --steps 1
  runner run --agent 3b9e... --var name=Ada --stream
`)
}
