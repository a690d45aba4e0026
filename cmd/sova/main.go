package main

import (
	"net"
	"os"
	"strings"

	"sova-cli/internal/cli"

	"github.com/golang/glog"
)

func isServerAddr(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return false
	}
	if strings.HasPrefix(s, "ws://") || strings.HasPrefix(s, "wss://") {
		return true
	}
	host, port, err := net.SplitHostPort(s)
	return err == nil && host != "" && port != ""
}

func rewriteServerShorthandArgs(argv []string) []string {
	// Convenience: `sova <host:port>` works like `sova --server <host:port>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	// Persistent flags may come first (e.g. `sova --config-dir ./x 10.0.0.5:8080`), so look
	// for the first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--server":     true,
		"--config-dir": true,
		"--format":     true,
		"--timeout":    true,
		"-v":           true,
		"--log_dir":    true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}

		// First positional token.
		if isServerAddr(a) {
			out := make([]string, 0, len(argv)+1)
			out = append(out, argv[:i]...)
			out = append(out, "--server", a)
			out = append(out, argv[i+1:]...)
			return out
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteServerShorthandArgs(os.Args)

	cmd := cli.NewRootCmd()
	err := cmd.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
