package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
)

// searchCmd implements the "search" command.
type searchCmd struct {
	limit int
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "searches the asset catalog by symbol or name" }
func (*searchCmd) Usage() string {
	return `assetsearch search [-limit n] <query>

  Loads the asset catalog and prints the best matches for the query.
  Exact symbol matches come first, then symbol prefixes, then any other
  symbol or name match. Queries shorter than two characters match nothing.
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 10, "Maximum number of results")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: a search term is required.")
		return subcommands.ExitUsageError
	}
	query := strings.Join(f.Args(), " ")

	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Log.Sync()

	if err := app.Search(ctx, os.Stdout, query, c.limit); err != nil {
		fmt.Fprintf(os.Stderr, "Error searching assets: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// browseCmd implements the "browse" command.
type browseCmd struct {
	limit int
}

func (*browseCmd) Name() string     { return "browse" }
func (*browseCmd) Synopsis() string { return "lists catalog assets alphabetically" }
func (*browseCmd) Usage() string {
	return `assetsearch browse [-limit n]

  Prints the first n assets of the catalog in symbol order.
`
}

func (c *browseCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 20, "Number of assets to list")
}

func (c *browseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Log.Sync()

	if err := app.Browse(ctx, os.Stdout, c.limit); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// quoteCmd implements the "quote" command.
type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "prints the latest price of an asset" }
func (*quoteCmd) Usage() string {
	return `assetsearch quote <symbol>

  Fetches the latest quote for the symbol. A single attempt is made.
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required.")
		return subcommands.ExitUsageError
	}

	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Log.Sync()

	if err := app.Quote(ctx, os.Stdout, f.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Price unavailable: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// interactiveCmd implements the "interactive" command.
type interactiveCmd struct{}

func (*interactiveCmd) Name() string     { return "interactive" }
func (*interactiveCmd) Synopsis() string { return "drives a search widget from the terminal" }
func (*interactiveCmd) Usage() string {
	return `assetsearch interactive

  Starts a search session. Plain lines are typed into the search box.
  Commands:
    :clear          empty the search box (opens the browse list)
    :up :down       move the highlight
    :enter          select the highlighted suggestion
    :esc            close the suggestions
    :pick <n>       click suggestion n (1-based)
    :focus :blur    focus or leave the search box
    :refresh        re-fetch the catalog
    :stats          show catalog cache stats
    :quit           leave
`
}

func (*interactiveCmd) SetFlags(*flag.FlagSet) {}

func (*interactiveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Log.Sync()

	if err := RunInteractive(ctx, app, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
