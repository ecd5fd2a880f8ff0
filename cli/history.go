package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"hostsweep/output"
)

// history lists stored runs, most recent first, or prints the report of one run as JSON.
func (c *Command) history(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("hostsweep history", flag.ContinueOnError)
	flags.SetOutput(c.Err)
	dbPath := flags.String("db", c.Config.HistoryDB, "SQLite history database")
	limit := flags.Int("n", 20, "runs to list, 0 for all")
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "Usage: hostsweep history [-db FILE] [-n N] [ID]")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(c.Err, "Error: %v\n", err)
		}
		return ExitInvalidInput
	}
	if *dbPath == "" {
		fmt.Fprintln(c.Err, "Error: -db or HOSTSWEEP_HISTORY_DB is required")
		return ExitInvalidInput
	}
	if flags.NArg() > 1 {
		fmt.Fprintf(c.Err, "Error: unexpected arguments: %v\n", flags.Args()[1:])
		return ExitInvalidInput
	}

	history, err := output.OpenHistory(*dbPath)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		return ExitInvalidInput
	}
	defer history.Close()

	if flags.NArg() == 1 {
		id, err := strconv.ParseInt(flags.Arg(0), 10, 64)
		if err != nil || id <= 0 {
			fmt.Fprintf(c.Err, "Error: invalid run id %q\n", flags.Arg(0))
			return ExitInvalidInput
		}
		report, err := history.Report(ctx, id)
		if err != nil {
			fmt.Fprintf(c.Err, "Error: run %d: %v\n", id, err)
			return ExitInvalidInput
		}
		if err := (output.WriterSink{W: c.Out}).Write(ctx, report); err != nil {
			fmt.Fprintf(c.Err, "Error: %v\n", err)
			return ExitSinkFailed
		}
		return ExitOK
	}

	runs, err := history.Runs(ctx, *limit)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		return ExitInvalidInput
	}
	if len(runs) == 0 {
		fmt.Fprintf(c.Out, "No runs recorded in %s\n", *dbPath)
		return ExitOK
	}
	tw := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tHOSTS\tONLINE")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", run.ID, run.CreatedAt.Local().Format(time.DateTime), run.HostCount, run.OnlineCount)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		return ExitSinkFailed
	}
	return ExitOK
}
