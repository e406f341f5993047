// ABOUTME: chatsync CLI for talking to a knowledge-retrieval backend
// ABOUTME: Subcommand dispatch and usage output

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

const banner = `
      _           _
  ___| |__   __ _| |_ ___ _   _ _ __   ___
 / __| '_ \ / _' | __/ __| | | | '_ \ / __|
| (__| | | | (_| | |_\__ \ |_| | | | | (__
 \___|_| |_|\__,_|\__|___/\__, |_| |_|\___|
                          |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "ask":
		err = cmdAsk(args)
	case "knowledge":
		err = cmdKnowledge(args)
	case "query":
		err = cmdQuery(args)
	case "models":
		err = cmdModels(args)
	case "agents":
		err = cmdAgents(args)
	case "conversations":
		err = cmdConversations(args)
	case "export":
		err = cmdExport(args)
	case "status":
		err = cmdStatus(args)
	case "init":
		err = cmdInit(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: chatsync <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  ask [flags] <prompt>          Send a prompt and print the answer")
	fmt.Println("  knowledge [flags] <query>     Run a one-shot retrieval query, nothing stored")
	fmt.Println("  query [flags] <query>         Run a structured query showing expansion and retrieval detail")
	fmt.Println("  models                        List models the backend can run")
	fmt.Println("  agents                        List agents the backend can run")
	fmt.Println("  conversations                 List stored conversations")
	fmt.Println("  conversations delete <id>     Delete one conversation")
	fmt.Println("  conversations clear           Delete all conversations")
	fmt.Println("  conversations prune <date>    Delete conversations from a day (YYYY-MM-DD)")
	fmt.Println("  export [flags] [id]           Export a conversation transcript as HTML")
	fmt.Println("  status                        Check backend reachability")
	fmt.Println("  init [flags]                  Write config and endpoint settings")
	fmt.Println()
	yellow.Println("Ask flags:")
	fmt.Println("  -model <name>                 Model to query (default: backend default)")
	fmt.Println("  -system <prompt>              System prompt for a fresh conversation")
	fmt.Println("  -image <path>                 Attach an image to the prompt")
	fmt.Println("  -continue                     Continue the most recent conversation")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  CHATSYNC_CONFIG               Config file path (default: XDG config dir)")
	fmt.Println("  CHATSYNC_URL                  Backend URL, overrides config and settings")
	fmt.Println("  CHATSYNC_TOKEN                Bearer token, overrides config and settings")
}
