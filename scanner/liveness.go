package scanner

import (
	"context"
	"os/exec"
	"runtime"
)

// Pinger answers whether a host replies to a single echo probe.
// Implementations never return errors; any failure means the host is treated as offline.
type Pinger interface {
	PingOnce(ctx context.Context, host string) bool
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context, host string) bool

// PingOnce calls f(ctx, host).
func (f PingerFunc) PingOnce(ctx context.Context, host string) bool {
	return f(ctx, host)
}

// ExecPinger shells out to the system ping command with a single echo request.
type ExecPinger struct {
	Command string
	Args    func(host string) []string
}

// NewExecPinger returns a pinger running "ping -c 1 <host>" ("ping -n 1 <host>" on Windows).
func NewExecPinger() *ExecPinger {
	return &ExecPinger{Command: "ping", Args: defaultPingArgs}
}

func defaultPingArgs(host string) []string {
	if runtime.GOOS == "windows" {
		return []string{"-n", "1", host}
	}
	return []string{"-c", "1", host}
}

// PingOnce runs the command and reports whether it exited with status 0.
// Output is discarded. A missing binary, permission problem or non-zero exit all yield false.
func (p *ExecPinger) PingOnce(ctx context.Context, host string) bool {
	args := p.Args
	if args == nil {
		args = defaultPingArgs
	}
	cmd := exec.CommandContext(ctx, p.Command, args(host)...)
	return cmd.Run() == nil
}
