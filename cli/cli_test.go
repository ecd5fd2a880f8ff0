package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"hostsweep/config"
	"hostsweep/logging"
	"hostsweep/output"
	"hostsweep/scanner"
)

func fakeScanner() *scanner.Scanner {
	return scanner.New(
		scanner.WithLogger(logging.Discard()),
		scanner.WithMaxPort(MaxPort),
		scanner.WithPinger(scanner.PingerFunc(func(_ context.Context, host string) bool {
			return host == "10.0.0.1"
		})),
		scanner.WithProber(scanner.ProberFunc(func(_ context.Context, _ string, port int) scanner.ProbeOutcome {
			return scanner.ProbeOutcome{Port: port, Open: port == 22}
		})),
		scanner.WithResolver(scanner.ResolverFunc(func(_ context.Context, host string) (string, []string) {
			if host == "10.0.0.1" {
				return "gw.lan", []string{}
			}
			return scanner.UnknownHostname, []string{}
		})),
	)
}

type testCLI struct {
	cmd    *Command
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestCLI(input string) *testCLI {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &testCLI{
		cmd: &Command{
			In:      strings.NewReader(input),
			Out:     stdout,
			Err:     stderr,
			Config:  config.Default(),
			Scanner: fakeScanner(),
		},
		stdout: stdout,
		stderr: stderr,
	}
}

func writeHostsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write hosts file: %v", err)
	}
	return path
}

// decodeReport parses a compat JSON report, keeping host order.
func decodeReport(t *testing.T, data []byte) *scanner.ScanReport {
	t.Helper()
	report := scanner.NewScanReport()
	if err := json.Unmarshal(data, report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, data)
	}
	return report
}

func TestInteractiveFlow(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.2\nrouter\n10.0.0.1\n10.0.0.2\n")
	missing := filepath.Join(t.TempDir(), "nope.txt")
	outPath := filepath.Join(t.TempDir(), "out.json")

	input := strings.Join([]string{
		missing,
		hostsPath,
		"0",     // start port too low
		"abc",   // not a number
		"20",    // start
		"10",    // end below start
		"65001", // end above the CLI maximum
		"25",    // end
		"-4",    // threads must be positive
		"",      // default threads
		"",      // empty filename
		outPath,
	}, "\n") + "\n"

	tc := newTestCLI(input)
	if code := tc.cmd.Run(context.Background(), nil); code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, tc.stderr)
	}

	out := tc.stdout.String()
	for _, want := range []string{
		"File " + missing + " was not found! Please try again.",
		"Entry is invalid! Please enter a number from 1 to 65000.",
		"Entry is invalid! Please enter a number from 20 to 65000.",
		"Enter the number of threads to use (default 100): ",
		"Invalid entry! Please enter a valid number or press Enter to use the default.",
		"Scanning 10.0.0.2...\nScanning 10.0.0.1...\n",
		"Scan results saved to " + outPath,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	report := decodeReport(t, data)
	if !slices.Equal(report.Hosts(), []string{"10.0.0.2", "10.0.0.1"}) {
		t.Fatalf("hosts = %v", report.Hosts())
	}
	online, _ := report.Get("10.0.0.1")
	if online.State != scanner.Online || online.Hostname != "gw.lan" || !slices.Equal(online.OpenPorts, []int{22}) {
		t.Fatalf("unexpected online host: %+v", online)
	}
	offline, _ := report.Get("10.0.0.2")
	if offline.State != scanner.Offline || offline.Hostname != scanner.UnknownHostname || len(offline.OpenPorts) != 0 {
		t.Fatalf("unexpected offline host: %+v", offline)
	}
}

func TestInteractiveInputClosed(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.1\n")
	tc := newTestCLI(hostsPath + "\n22\n")
	if code := tc.cmd.Run(context.Background(), nil); code != ExitInvalidInput {
		t.Fatalf("expected exit %d, got %d", ExitInvalidInput, code)
	}
	if !strings.Contains(tc.stderr.String(), errInputClosed.Error()) {
		t.Fatalf("stderr = %q", tc.stderr)
	}
}

func TestFlagMode(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.1\n10.0.0.3\n")
	outPath := filepath.Join(t.TempDir(), "nested", "report.json")

	tc := newTestCLI("")
	code := tc.cmd.Run(context.Background(), []string{
		"-hosts", hostsPath, "-ports", "20-30", "-threads", "4", "-host-parallel", "2", "-o", outPath,
	})
	if code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, tc.stderr)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	report := decodeReport(t, data)
	if !slices.Equal(report.Hosts(), []string{"10.0.0.1", "10.0.0.3"}) {
		t.Fatalf("hosts = %v", report.Hosts())
	}
	// Four-space indentation is part of the file format.
	if !bytes.Contains(data, []byte("\n    \"10.0.0.1\": {\n        \"State\": \"Online\"")) {
		t.Fatalf("unexpected layout:\n%s", data)
	}
}

func TestFlagModeStdout(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.1\n")
	tc := newTestCLI("")
	if code := tc.cmd.Run(context.Background(), []string{"-hosts", hostsPath, "-ports", "22", "-o", "-"}); code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, tc.stderr)
	}
	report := decodeReport(t, tc.stdout.Bytes())
	if result, ok := report.Get("10.0.0.1"); !ok || !slices.Equal(result.OpenPorts, []int{22}) {
		t.Fatalf("unexpected report: %s", tc.stdout)
	}
}

func TestFlagModeEmptyHostFile(t *testing.T) {
	hostsPath := writeHostsFile(t, "not-an-ip\n\n")
	outPath := filepath.Join(t.TempDir(), "empty.json")

	tc := newTestCLI("")
	if code := tc.cmd.Run(context.Background(), []string{"-hosts", hostsPath, "-ports", "1-10", "-o", outPath}); code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, tc.stderr)
	}
	if !strings.Contains(tc.stderr.String(), "No valid IP addresses found") {
		t.Fatalf("stderr = %q", tc.stderr)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("empty batch must still write the report: %v", err)
	}
	if strings.TrimSpace(string(data)) != "{}" {
		t.Fatalf("expected empty object, got %q", data)
	}
}

func TestFlagModeRejectsInvalidInput(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.1\n")
	missing := filepath.Join(t.TempDir(), "missing.txt")

	cases := []struct {
		name string
		args []string
	}{
		{"missing hosts flag", []string{"-ports", "1-10"}},
		{"missing ports flag", []string{"-hosts", hostsPath}},
		{"port zero", []string{"-hosts", hostsPath, "-ports", "0-10"}},
		{"above cli maximum", []string{"-hosts", hostsPath, "-ports", "1-65001"}},
		{"reversed range", []string{"-hosts", hostsPath, "-ports", "30-20"}},
		{"zero threads", []string{"-hosts", hostsPath, "-ports", "1-10", "-threads", "0"}},
		{"unknown ping mode", []string{"-hosts", hostsPath, "-ports", "1-10", "-ping", "arp"}},
		{"missing host file", []string{"-hosts", missing, "-ports", "1-10"}},
		{"stray argument", []string{"-hosts", hostsPath, "-ports", "1-10", "extra"}},
		{"unknown flag", []string{"-sS"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cli := newTestCLI("")
			if code := cli.cmd.Run(context.Background(), tc.args); code != ExitInvalidInput {
				t.Fatalf("expected exit %d, got %d (stderr %s)", ExitInvalidInput, code, cli.stderr)
			}
			if strings.Contains(cli.stdout.String(), "Scanning") {
				t.Fatal("no host may be scanned on invalid input")
			}
		})
	}
}

func TestSinkFailureExitCode(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.1\n")
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestCLI("")
	code := tc.cmd.Run(context.Background(), []string{
		"-hosts", hostsPath, "-ports", "22", "-o", filepath.Join(blocker, "out.json"),
	})
	if code != ExitSinkFailed {
		t.Fatalf("expected exit %d, got %d", ExitSinkFailed, code)
	}
	if !strings.Contains(tc.stderr.String(), "Error writing output file") {
		t.Fatalf("stderr = %q", tc.stderr)
	}
	if strings.Contains(tc.stdout.String(), "Scan results saved") {
		t.Fatal("success message printed after sink failure")
	}
}

func TestFlagModeInterruptedWritesNothing(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.1\n10.0.0.2\n10.0.0.3\n")
	outPath := filepath.Join(t.TempDir(), "out.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc := newTestCLI("")
	tc.cmd.Scanner = scanner.New(
		scanner.WithLogger(logging.Discard()),
		scanner.WithMaxPort(MaxPort),
		scanner.WithPinger(scanner.PingerFunc(func(_ context.Context, host string) bool {
			// Simulates Ctrl-C arriving while the second host is being pinged.
			if host == "10.0.0.2" {
				cancel()
				return false
			}
			return true
		})),
		scanner.WithProber(scanner.ProberFunc(func(_ context.Context, _ string, port int) scanner.ProbeOutcome {
			return scanner.ProbeOutcome{Port: port, Open: port == 22}
		})),
		scanner.WithResolver(scanner.ResolverFunc(func(context.Context, string) (string, []string) {
			return scanner.UnknownHostname, []string{}
		})),
	)

	code := tc.cmd.Run(ctx, []string{"-hosts", hostsPath, "-ports", "20-25", "-o", outPath})
	if code != ExitInterrupted {
		t.Fatalf("expected exit %d, got %d (stderr %s)", ExitInterrupted, code, tc.stderr)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Fatalf("interrupted run must not write %s: %v", outPath, err)
	}
	if strings.Contains(tc.stdout.String(), "Scan results saved") {
		t.Fatalf("success message printed after interruption:\n%s", tc.stdout)
	}
	if strings.Contains(tc.stdout.String(), "Scanning 10.0.0.3") {
		t.Fatalf("host after interruption was scanned:\n%s", tc.stdout)
	}
	if !strings.Contains(tc.stderr.String(), "Scan interrupted") {
		t.Fatalf("stderr = %q", tc.stderr)
	}
}

func TestHistoryRecordsRun(t *testing.T) {
	hostsPath := writeHostsFile(t, "10.0.0.1\n10.0.0.2\n")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	tc := newTestCLI("")
	code := tc.cmd.Run(context.Background(), []string{
		"-hosts", hostsPath, "-ports", "20-22", "-o", filepath.Join(dir, "out.json"), "-history", dbPath,
	})
	if code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, tc.stderr)
	}

	list := newTestCLI("")
	if code := list.cmd.Run(context.Background(), []string{"history", "-db", dbPath}); code != ExitOK {
		t.Fatalf("history exit code %d, stderr: %s", code, list.stderr)
	}
	lines := strings.Split(strings.TrimSpace(list.stdout.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected listing:\n%s", list.stdout)
	}
	if fields := strings.Fields(lines[1]); len(fields) != 5 || fields[0] != "1" || fields[3] != "2" || fields[4] != "1" {
		t.Fatalf("unexpected run row %q", lines[1])
	}

	show := newTestCLI("")
	if code := show.cmd.Run(context.Background(), []string{"history", "-db", dbPath, "1"}); code != ExitOK {
		t.Fatalf("history show exit code %d, stderr: %s", code, show.stderr)
	}
	report := decodeReport(t, show.stdout.Bytes())
	if !slices.Equal(report.Hosts(), []string{"10.0.0.1", "10.0.0.2"}) {
		t.Fatalf("hosts = %v", report.Hosts())
	}
	if result, _ := report.Get("10.0.0.1"); result.Hostname != "gw.lan" || !slices.Equal(result.OpenPorts, []int{22}) {
		t.Fatalf("unexpected stored result: %+v", result)
	}
}

func TestHistoryRejectsBadInput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	history, err := output.OpenHistory(dbPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	history.Close()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no database", []string{"history"}, "-db"},
		{"unknown run", []string{"history", "-db", dbPath, "7"}, output.ErrRunNotFound.Error()},
		{"non-numeric id", []string{"history", "-db", dbPath, "latest"}, "invalid run id"},
		{"extra argument", []string{"history", "-db", dbPath, "1", "2"}, "unexpected arguments"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cli := newTestCLI("")
			if code := cli.cmd.Run(context.Background(), tc.args); code != ExitInvalidInput {
				t.Fatalf("expected exit %d, got %d", ExitInvalidInput, code)
			}
			if !strings.Contains(cli.stderr.String(), tc.want) {
				t.Fatalf("stderr %q missing %q", cli.stderr, tc.want)
			}
		})
	}

	empty := newTestCLI("")
	if code := empty.cmd.Run(context.Background(), []string{"history", "-db", dbPath}); code != ExitOK {
		t.Fatalf("empty history exit code %d", code)
	}
	if !strings.Contains(empty.stdout.String(), "No runs recorded") {
		t.Fatalf("stdout = %q", empty.stdout)
	}
}
