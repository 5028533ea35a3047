package commands

import (
	"FadNote/internal/config"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Dispatch is the single entry point to execute CLI commands.
// It prints help and usage messages and returns a process exit code.
func Dispatch(ctx context.Context, cfg *config.Config, args []string) int {
	// -h/--help counts only among global flags; note text after the command is left alone
	for _, a := range globalFlags(os.Args[1:], args) {
		if a == "--help" || a == "-h" {
			fmt.Fprint(Out, FormatGlobalUsage())
			return 0
		}
	}

	if !flag.Parsed() {
		flag.Parse()
	}

	if len(args) == 0 {
		fmt.Fprint(Out, FormatGlobalUsage())
		return 2
	}

	name := strings.ToLower(args[0])
	if name == "help" { // fadnote help [command]
		if len(args) == 1 {
			fmt.Fprint(Out, FormatGlobalUsage())
			return 0
		}
		if c, ok := Get(args[1]); ok {
			fmt.Fprintf(Out, "Usage: %s\n", c.Usage())
			return 0
		}
		fmt.Fprintf(Out, "Unknown command: %s\n\n", args[1])
		fmt.Fprint(Out, FormatGlobalUsage())
		return 2
	}

	c, ok := Get(name)
	if !ok {
		fmt.Fprintf(Out, "Unknown command: %s\n\n", name)
		fmt.Fprint(Out, FormatGlobalUsage())
		return 2
	}

	err := c.Run(ctx, cfg, args[1:])
	switch err {
	case nil:
		return 0
	case ErrUsage:
		fmt.Fprintf(Out, "Usage: %s\n", c.Usage())
		return 2
	default:
		fmt.Fprintf(Out, "%s %s error: %v\n", color.RedString("✗"), name, err)
		return 1
	}
}

// globalFlags returns the tokens of argv that precede the command line args.
// If args is not a suffix of argv, there are no global flags to inspect.
func globalFlags(argv, args []string) []string {
	n := len(argv) - len(args)
	if n < 0 {
		return nil
	}
	for i, a := range args {
		if argv[n+i] != a {
			return nil
		}
	}
	return argv[:n]
}
