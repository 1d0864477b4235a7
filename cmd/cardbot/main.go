package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/hpungsan/cardbot/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "replay": true, "resolve": true, "preview": true,
	"cards": true, "history": true, "lookups": true,
	"serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--config" || arg == "--offline" || arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	title := color.New(color.FgMagenta, color.Bold)
	title.Println(`
   ___ __ _ _ __ __| | |__   ___ | |_
  / __/ _' | '__/ _' | '_ \ / _ \| __|
 | (_| (_| | | | (_| | |_) | (_) | |_
  \___\__,_|_|  \__,_|_.__/ \___/ \__|`)
	fmt.Println()
	fmt.Println("  Replies to {{Card Name}} mentions with card details")
	fmt.Println()
	fmt.Printf("  Usage: %s\n", color.CyanString("cardbot <command> [options]"))
	fmt.Printf("         %s\n", color.CyanString("cardbot --help"))
	fmt.Println()
	fmt.Println("  MCP server mode requires piped input.")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]any{color.RedString("error:")}, args...)...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	env, err := newEnv()
	if err != nil {
		fail("%v", err)
	}
	defer env.Close()

	if isHelpOrVersion() || isCLIMode() {
		if err := newCLIApp(env).Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "%s unknown command %q\n", color.RedString("error:"), os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cardbot --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := env.setup(""); err != nil {
		fail("%v", err)
	}
	if err := serveMCP(env); err != nil {
		fail("%v", err)
	}
}

// serveMCP runs the stdio tool server against the shared environment.
func serveMCP(env *appEnv) error {
	database, err := env.database()
	if err != nil {
		return err
	}
	r, err := env.resolver(env.cfg.Identity)
	if err != nil {
		return err
	}
	return mcp.Run(database, r, env.formatter(), env.cfg, Version)
}
