//go:build !windows

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kush-Singh-26/coiserve/internal/config"
)

const (
	runMainEnv  = "COISERVE_RUN_MAIN"
	mainArgsEnv = "COISERVE_ARGS"
)

// TestRunMain turns the test binary into coiserve when re-executed by the
// tests below. In a normal test run it does nothing.
func TestRunMain(t *testing.T) {
	if os.Getenv(runMainEnv) != "1" {
		return
	}
	os.Args = append([]string{"coiserve"}, strings.Fields(os.Getenv(mainArgsEnv))...)
	main()
}

// installBinary copies the test binary into a fresh directory, next to an
// optional coiserve.yaml, so that directory becomes the serving root.
func installBinary(t *testing.T, yamlBody string) (string, string) {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)

	dir := t.TempDir()
	bin := filepath.Join(dir, "coiserve.test")

	src, err := os.Open(self)
	require.NoError(t, err)
	defer src.Close()
	dst, err := os.OpenFile(bin, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	require.NoError(t, err)
	_, err = io.Copy(dst, src)
	require.NoError(t, err)
	require.NoError(t, dst.Close())

	if yamlBody != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(yamlBody), 0644))
	}
	return dir, bin
}

func mainCommand(ctx context.Context, bin string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, bin, "-test.run=^TestRunMain$")
	cmd.Env = append(os.Environ(), runMainEnv+"=1", mainArgsEnv+"="+strings.Join(args, " "))
	return cmd
}

func TestMain_InterruptExitsCleanly(t *testing.T) {
	dir, bin := installBinary(t, "host: 127.0.0.1\nport: 0\nlogRequests: false\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := mainCommand(ctx, bin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	port := waitForPort(t, lines)

	client := &http.Client{Timeout: 5 * time.Second}
	res, err := client.Get("http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "require-corp", res.Header.Get("Cross-Origin-Embedder-Policy"))
	assert.Equal(t, "same-origin", res.Header.Get("Cross-Origin-Opener-Policy"))

	require.NoError(t, cmd.Process.Signal(os.Interrupt))

	var rest []string
	for line := range lines {
		rest = append(rest, line)
	}
	require.NoError(t, cmd.Wait(), stderr.String())
	assert.Equal(t, 0, cmd.ProcessState.ExitCode())
	assert.Contains(t, strings.Join(rest, "\n"), "Server stopped.")
}

// waitForPort reads the startup banner and returns the port it announces.
func waitForPort(t *testing.T, lines <-chan string) int {
	t.Helper()
	const prefix = "http://localhost:"
	timeout := time.After(15 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("coiserve exited before announcing its address")
			}
			i := strings.Index(line, "Serving at "+prefix)
			if i < 0 {
				continue
			}
			port, err := strconv.Atoi(strings.TrimSpace(line[i+len("Serving at "+prefix):]))
			require.NoError(t, err, line)
			return port
		case <-timeout:
			t.Fatal("coiserve did not announce its address in time")
		}
	}
}

func TestMain_StartupFailuresExitOne(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()
	busyPort := held.Addr().(*net.TCPAddr).Port

	tests := []struct {
		name string
		yaml string
		args []string
	}{
		{"extra argument", "host: 127.0.0.1\nport: 0\n", []string{"extra"}},
		{"port in use", "host: 127.0.0.1\nport: " + strconv.Itoa(busyPort) + "\n", nil},
		{"malformed config", "port: [1, 2\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bin := installBinary(t, tt.yaml)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			cmd := mainCommand(ctx, bin, tt.args...)
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			err := cmd.Run()

			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr, stderr.String())
			assert.Equal(t, 1, exitErr.ExitCode())
			assert.Contains(t, stderr.String(), "coiserve failed")
			assert.NotContains(t, stdout.String(), "Serving at")
		})
	}
}
