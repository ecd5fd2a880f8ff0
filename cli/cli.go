// Package cli implements the one-shot batch scanner: an interactive prompt flow when started
// without arguments and a flag-driven flow otherwise.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"hostsweep/config"
	"hostsweep/logging"
	"hostsweep/output"
	"hostsweep/scanner"
)

// MaxPort is the highest port the CLI accepts.
const MaxPort = 65000

// Exit codes returned by Command.Run.
const (
	ExitOK           = 0
	ExitInvalidInput = 1
	ExitSinkFailed   = 2
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// options holds one batch's parameters, whichever flow collected them.
type options struct {
	hostsFile         string
	hosts             []string
	ports             scanner.PortRange
	threads           int
	outputFile        string
	pingMode          string
	timeout           time.Duration
	hostParallelism   int
	historyDB         string
	skipOfflineLookup bool
	verbose           bool
}

// Command carries the CLI's streams and defaults.
type Command struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Config config.Config

	// Scanner replaces the scanner built from flags when set.
	Scanner *scanner.Scanner
}

// Run executes one batch and returns the process exit code. With no arguments the parameters
// are prompted for on c.In; "history" lists or prints stored runs instead.
// A zero Config is replaced by config.Default().
func (c *Command) Run(ctx context.Context, args []string) int {
	if c.Config == (config.Config{}) {
		c.Config = config.Default()
	}
	if len(args) > 0 && args[0] == "history" {
		return c.history(ctx, args[1:])
	}
	var (
		opts options
		err  error
	)
	if len(args) == 0 {
		opts, err = c.prompt()
	} else {
		opts, err = c.parseFlags(args)
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(c.Err, "Error: %v\n", err)
		}
		return ExitInvalidInput
	}

	if opts.hosts == nil {
		opts.hosts, err = readHosts(opts.hostsFile)
		if err != nil {
			fmt.Fprintf(c.Err, "Error: %v\n", err)
			return ExitInvalidInput
		}
	}
	if len(opts.hosts) == 0 {
		fmt.Fprintf(c.Err, "No valid IP addresses found in %s\n", opts.hostsFile)
	}

	return c.execute(ctx, opts)
}

func (c *Command) execute(ctx context.Context, opts options) int {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.New(c.Err, level)

	sc := c.Scanner
	if sc == nil {
		scanOpts := []scanner.Option{
			scanner.WithProber(scanner.NewTCPProber(opts.timeout)),
			scanner.WithPinger(config.NewPinger(opts.pingMode, 0)),
			scanner.WithLogger(logger),
			scanner.WithMaxPort(MaxPort),
		}
		if opts.skipOfflineLookup {
			scanOpts = append(scanOpts, scanner.WithSkipOfflineLookup())
		}
		sc = scanner.New(scanOpts...)
	}

	var sink scanner.Sink
	if opts.outputFile == "-" {
		sink = output.WriterSink{W: c.Out}
	} else {
		sink = output.NewJSONFileSink(opts.outputFile)
	}
	if opts.historyDB != "" {
		history, err := output.OpenHistory(opts.historyDB)
		if err != nil {
			fmt.Fprintf(c.Err, "Error: %v\n", err)
			return ExitInvalidInput
		}
		defer history.Close()
		sink = output.MultiSink{sink, history}
	}

	runner := scanner.NewRunner(sc, sink,
		scanner.WithHostParallelism(opts.hostParallelism),
		scanner.WithHostStartHook(func(host string) {
			// Stdout carries the report itself when writing to "-".
			if opts.outputFile != "-" {
				fmt.Fprintf(c.Out, "Scanning %s...\n", host)
			}
		}),
	)

	_, err := runner.RunBatch(ctx, opts.hosts, opts.ports, opts.threads)
	switch {
	case errors.Is(err, scanner.ErrInterrupted):
		fmt.Fprintln(c.Err, "Scan interrupted; no results written.")
		return ExitInterrupted
	case errors.Is(err, scanner.ErrSinkFailed):
		fmt.Fprintf(c.Err, "Error writing output file: %v\n", err)
		return ExitSinkFailed
	case err != nil:
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		return ExitInvalidInput
	}

	if opts.outputFile != "-" {
		fmt.Fprintf(c.Out, "Scan results saved to %s\n", opts.outputFile)
	}
	return ExitOK
}

func (c *Command) parseFlags(args []string) (options, error) {
	flags := flag.NewFlagSet("hostsweep", flag.ContinueOnError)
	flags.SetOutput(c.Err)

	opts := options{}
	var ports string
	flags.StringVar(&opts.hostsFile, "hosts", "", "file with one IP address per line (required)")
	flags.StringVar(&ports, "ports", "", "inclusive TCP port range START-END, or a single port (required)")
	flags.IntVar(&opts.threads, "threads", c.Config.Concurrency, "concurrent port probes per host")
	flags.StringVar(&opts.outputFile, "o", "scan_results.json", `output JSON file, "-" for stdout`)
	flags.StringVar(&opts.pingMode, "ping", c.Config.PingMode, "liveness check: exec (system ping) or icmp (raw socket)")
	flags.DurationVar(&opts.timeout, "timeout", c.Config.ProbeTimeout, "per-port connect timeout")
	flags.IntVar(&opts.hostParallelism, "host-parallel", 1, "hosts scanned at once")
	flags.StringVar(&opts.historyDB, "history", c.Config.HistoryDB, "SQLite database that also records the run")
	flags.BoolVar(&opts.skipOfflineLookup, "skip-offline-lookup", false, "do not reverse resolve offline hosts")
	flags.BoolVar(&opts.verbose, "v", false, "debug logging to stderr")
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "Usage: hostsweep -hosts FILE -ports START-END [flags]")
		fmt.Fprintln(flags.Output(), "       hostsweep            (interactive)")
		fmt.Fprintln(flags.Output(), "       hostsweep history [-db FILE] [-n N] [ID]")
		fmt.Fprintln(flags.Output(), "       hostsweep serve      (HTTP API)")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if flags.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}
	if opts.hostsFile == "" {
		return options{}, errors.New("-hosts is required")
	}
	if ports == "" {
		return options{}, errors.New("-ports is required")
	}

	pr, err := scanner.ParsePortRange(ports, MaxPort)
	if err != nil {
		return options{}, err
	}
	opts.ports = pr

	if opts.threads <= 0 {
		return options{}, fmt.Errorf("%w: got %d", scanner.ErrInvalidConcurrency, opts.threads)
	}
	if opts.pingMode != config.PingExec && opts.pingMode != config.PingICMP {
		return options{}, fmt.Errorf("-ping must be %q or %q", config.PingExec, config.PingICMP)
	}
	if opts.outputFile == "" {
		return options{}, errors.New("-o must not be empty")
	}
	return opts, nil
}

// readHosts loads a host list file, keeping unique IP addresses in file order.
func readHosts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s was not found", path)
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return scanner.NormalizeTargets(lines), nil
}
