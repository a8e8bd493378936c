package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"horse.fit/allball/internal/registry"
)

func runSources(args []string) int {
	if len(args) == 0 {
		return runSourcesList(nil)
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "list":
		return runSourcesList(args[1:])
	case "validate":
		return runSourcesValidate(args[1:])
	case "help", "-h", "--help":
		printSourcesUsage()
		return 0
	default:
		if strings.HasPrefix(args[0], "-") {
			return runSourcesList(args)
		}
		fmt.Fprintf(os.Stderr, "unknown sources action: %s\n\n", args[0])
		printSourcesUsage()
		return 2
	}
}

func runSourcesList(args []string) int {
	fs := flag.NewFlagSet("sources list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "", "Catalog file (default: SOURCES_FILE or the built-in catalog)")
	sport := fs.String("sport", "", "Only list leagues of this sport")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	reg, err := openCatalog(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	wantSport := strings.TrimSpace(strings.ToLower(*sport))
	sources := make([]registry.Source, 0, reg.Len())
	for _, src := range reg.Sources() {
		if wantSport != "" && src.Sport != wantSport {
			continue
		}
		sources = append(sources, src)
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(sources); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		rows = append(rows, []string{
			src.LeagueID,
			src.Sport,
			src.Region,
			strconv.Itoa(len(src.Upstreams)),
			truncateForTable(src.Query, 48),
		})
	}
	if err := writeTable([]string{"league", "sport", "region", "upstreams", "query"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func runSourcesValidate(args []string) int {
	fs := flag.NewFlagSet("sources validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{""}
	}

	invalid := 0
	for _, path := range paths {
		name := path
		if name == "" {
			name = "built-in catalog"
		}
		reg, err := openCatalog(path)
		if err != nil {
			invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", name, err)
			continue
		}
		fmt.Printf("valid %s leagues=%d sports=%s\n", name, reg.Len(), strings.Join(reg.Sports(), ","))
	}

	fmt.Printf("validate scanned=%d valid=%d invalid=%d\n", len(paths), len(paths)-invalid, invalid)
	if invalid > 0 {
		return 1
	}
	return 0
}

// openCatalog loads path, falling back to SOURCES_FILE and then the built-in
// catalog.
func openCatalog(path string) (*registry.Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SOURCES_FILE"))
	}
	if path == "" {
		return registry.Default()
	}
	return registry.Load(path)
}

func printSourcesUsage() {
	fmt.Fprintln(os.Stderr, "allball sources")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  allball sources list [--file path] [--sport name] [--format table|json]")
	fmt.Fprintln(os.Stderr, "  allball sources validate [file ...]")
}
