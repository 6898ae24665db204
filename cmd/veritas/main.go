package main

import (
	"fmt"
	"os"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "ask":
		err = runAsk(os.Args[2:])
	case "sessions":
		err = runSessions(os.Args[2:])
	case "memories":
		err = runMemories(os.Args[2:])
	case "remember":
		err = runRemember(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("veritas %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`veritas %s — Local chat assistant with answer validation

Usage:
  veritas <command> [arguments]

Commands:
  serve               Run the HTTP API server
  mcp                 Run the MCP server over stdio
  ask <question>      Ask one question and print the validated answer
  sessions            List chat sessions
  memories            List long-term memories
  remember <text>     Store a long-term memory
  config              Print the resolved configuration
  version             Print version

Common Flags:
  --config <path>     Config file (default: ~/.veritas/config.yaml)
  --db <path>         Database file (default: ~/.veritas/veritas.db)

Ask Flags:
  --web               Allow web search for this question
  --reason            Run a reasoning pass before validation

Flags:
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
