package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "sources":
		return runSources(args[1:])
	case "run", "run-once":
		return runOnce(args[1:])
	case "schedule":
		return runSchedule(args[1:])
	case "serve":
		return runServe(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "allball CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  allball <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  sources    List or validate the league source catalog")
	fmt.Fprintln(os.Stderr, "  run        Run the ingestion pipeline once")
	fmt.Fprintln(os.Stderr, "  run-once   Alias for run")
	fmt.Fprintln(os.Stderr, "  schedule   Run the pipeline on PIPELINE_INTERVAL until interrupted")
	fmt.Fprintln(os.Stderr, "  serve      Start the read-only article API")
	fmt.Fprintln(os.Stderr, "  articles   List stored articles")
	fmt.Fprintln(os.Stderr, "  runs       List recent pipeline runs")
	fmt.Fprintln(os.Stderr, "  daemon     Manage the systemd unit for allball schedule --serve")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"allball <command> -h\" for command-specific flags.")
}
