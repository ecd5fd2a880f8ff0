package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"hostsweep/scanner"
)

// errInputClosed reports that stdin ended before every answer was given.
var errInputClosed = errors.New("input closed before all parameters were entered")

// prompter reads one answer per line, printing each question to out first.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		// A final answer without a trailing newline still counts.
		if line == "" {
			fmt.Fprintln(p.out)
			return "", errInputClosed
		}
	}
	return strings.TrimSpace(line), nil
}

// prompt collects a batch interactively: host file, port range, thread count and output file.
func (c *Command) prompt() (options, error) {
	p := &prompter{in: bufio.NewReader(c.In), out: c.Out}
	opts := options{
		pingMode: c.Config.PingMode,
		timeout:  c.Config.ProbeTimeout,
		// Interactive runs keep the one-host-at-a-time flow.
		hostParallelism: 1,
		historyDB:       c.Config.HistoryDB,
	}

	for {
		path, err := p.ask("Enter the path to the file containing IP addresses: ")
		if err != nil {
			return options{}, err
		}
		hosts, err := readHosts(path)
		if err == nil {
			opts.hostsFile, opts.hosts = path, hosts
			break
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			fmt.Fprintf(p.out, "File %s was not found! Please try again.\n", path)
		} else {
			fmt.Fprintf(p.out, "An error occurred: %v\n", err)
		}
	}

	var start, end int
	for {
		answer, err := p.ask("Enter the start TCP port: ")
		if err != nil {
			return options{}, err
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= MaxPort {
			start = n
			break
		}
		fmt.Fprintf(p.out, "Entry is invalid! Please enter a number from 1 to %d.\n", MaxPort)
	}
	for {
		answer, err := p.ask("Enter the end TCP port: ")
		if err != nil {
			return options{}, err
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= start && n <= MaxPort {
			end = n
			break
		}
		fmt.Fprintf(p.out, "Entry is invalid! Please enter a number from %d to %d.\n", start, MaxPort)
	}
	opts.ports = scanner.PortRange{Start: start, End: end}

	defaultThreads := c.Config.Concurrency
	for {
		answer, err := p.ask(fmt.Sprintf("Enter the number of threads to use (default %d): ", defaultThreads))
		if err != nil {
			return options{}, err
		}
		if answer == "" {
			opts.threads = defaultThreads
			break
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n > 0 {
			opts.threads = n
			break
		}
		fmt.Fprintln(p.out, "Invalid entry! Please enter a valid number or press Enter to use the default.")
	}

	for {
		answer, err := p.ask("Enter the output filename (JSON format): ")
		if err != nil {
			return options{}, err
		}
		if answer != "" {
			opts.outputFile = answer
			break
		}
		fmt.Fprintln(p.out, "Please enter a filename.")
	}

	return opts, nil
}
