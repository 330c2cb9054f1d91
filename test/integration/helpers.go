//go:build integration

// Package integration runs end-to-end workflows against the fetchx CLI binary and,
// when configured, external cache backends.
package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	FetchxPath string
	NATSURL    string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		FetchxPath: getFetchxPath(),
		NATSURL:    os.Getenv("FETCHX_TEST_NATS_URL"),
		Verbose:    os.Getenv("FETCHX_VERBOSE") == "true",
	}
}

// getFetchxPath determines the path to the fetchx binary.
func getFetchxPath() string {
	if path := os.Getenv("FETCHX_BINARY_PATH"); path != "" {
		return path
	}

	// Try common locations
	candidates := []string{
		"../../fetchx",
		"./fetchx",
		"../fetchx",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "fetchx"
}

// SkipIfMissingBinary skips the test when the CLI binary is not available.
func (config *TestConfig) SkipIfMissingBinary(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath(config.FetchxPath); err != nil {
		t.Skipf("fetchx binary not found at %s, skipping integration test", config.FetchxPath)
	}
}

// SkipIfMissingNATS skips the test when no NATS server is configured.
func (config *TestConfig) SkipIfMissingNATS(t *testing.T) {
	t.Helper()

	if config.NATSURL == "" {
		t.Skip("FETCHX_TEST_NATS_URL not set, skipping NATS integration test")
	}
}

// CommandRunner runs fetchx commands against an isolated config file.
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a new command runner with an empty config file.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// ConfigFile returns the config file used by every command.
func (runner *CommandRunner) ConfigFile() string {
	return runner.configFile
}

// Run executes a fetchx command and returns its output.
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a fetchx command with stdin input.
func (runner *CommandRunner) RunWithInput(input string, args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--config", runner.configFile}, args...)

	// #nosec G204
	cmd := exec.Command(runner.config.FetchxPath, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.FetchxPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// DecodeJSON parses command output into T.
func DecodeJSON[T any](t *testing.T, output string) T {
	t.Helper()

	var value T
	if err := json.Unmarshal([]byte(output), &value); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, output)
	}

	return value
}
