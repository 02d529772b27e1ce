// Package launcher starts remote-desktop sessions to testbenches.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/testbench-tools/taco/internal/logging"
	"github.com/testbench-tools/taco/internal/topology"
)

// Launcher starts an external session process for a resource and returns
// its process id. The process keeps running after Launch returns.
type Launcher interface {
	Launch(ctx context.Context, r topology.Resource) (int, error)
}

// FilePlaceholder is replaced by the path of the generated .rdp file in
// command arguments.
const FilePlaceholder = "{file}"

// Resolver maps a host name to an IPv4 address, or "" if it cannot.
type Resolver func(ctx context.Context, host string) string

// Options configures an RDP launcher. Zero fields take platform defaults.
type Options struct {
	// Command is the client executable (mstsc.exe on Windows, xfreerdp
	// elsewhere).
	Command string
	// Args are the client arguments; FilePlaceholder marks the .rdp file.
	Args []string
	// Dir receives the generated .rdp files (default os.TempDir()).
	Dir string
	// Resolve looks up addresses (default LookupIPv4).
	Resolve Resolver
	Logger  *logging.Logger
}

// RDP launches sessions by writing an .rdp connection file and handing it
// to a remote-desktop client.
type RDP struct {
	command string
	args    []string
	dir     string
	resolve Resolver
	logger  *logging.Logger
}

// NewRDP returns an RDP launcher.
func NewRDP(opts Options) *RDP {
	l := &RDP{
		command: opts.Command,
		args:    opts.Args,
		dir:     opts.Dir,
		resolve: opts.Resolve,
		logger:  opts.Logger,
	}
	if l.command == "" {
		l.command = defaultCommand
	}
	if len(l.args) == 0 {
		l.args = []string{FilePlaceholder}
	}
	if l.dir == "" {
		l.dir = os.TempDir()
	}
	if l.resolve == nil {
		l.resolve = LookupIPv4
	}
	if l.logger == nil {
		l.logger = logging.NopLogger()
	}
	l.logger = l.logger.WithComponent("launcher")
	return l
}

// LookupIPv4 returns the first IPv4 address of host, or "" if resolution
// fails.
func LookupIPv4(ctx context.Context, host string) string {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return ""
	}
	return ips[0].String()
}

// FileContent renders the .rdp settings for a session to addr as loginName.
func FileContent(addr, loginName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "full address:s:%s\n", addr)
	fmt.Fprintf(&b, "username:s:%s\n", loginName)
	b.WriteString("screen mode id:i:2\n") // full screen
	b.WriteString("use multimon:i:0\n")
	return b.String()
}

// WriteFile writes the connection file for r and returns its path.
func (l *RDP) WriteFile(ctx context.Context, r topology.Resource) (string, error) {
	addr := l.resolve(ctx, r.Address)
	if addr == "" {
		l.logger.Warn("address did not resolve", "resource", r.ID, "address", r.Address)
	}
	name := "RDP_" + strings.NewReplacer("/", "_", `\`, "_").Replace(r.ID) + ".rdp"
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, []byte(FileContent(addr, r.LoginName)), 0600); err != nil {
		return "", fmt.Errorf("write rdp file: %w", err)
	}
	return path, nil
}

// Launch writes the connection file and starts the client detached from
// this process. The child is waited on in the background so that its exit
// is observable by pid.
func (l *RDP) Launch(ctx context.Context, r topology.Resource) (int, error) {
	path, err := l.WriteFile(ctx, r)
	if err != nil {
		return 0, err
	}

	args := make([]string, len(l.args))
	for i, a := range l.args {
		args[i] = strings.ReplaceAll(a, FilePlaceholder, path)
	}
	// Not CommandContext: the session outlives the request that started it.
	cmd := exec.Command(l.command, args...)
	detach(cmd)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return 0, fmt.Errorf("remote desktop client %q not found: %w", l.command, err)
		}
		return 0, fmt.Errorf("start remote desktop client: %w", err)
	}
	pid := cmd.Process.Pid
	l.logger.Info("session started", "resource", r.ID, "pid", pid, "command", l.command)

	go func() {
		err := cmd.Wait()
		l.logger.Info("session exited", "resource", r.ID, "pid", pid, "error", err)
	}()
	return pid, nil
}
