package cli

import (
	"bytes"
	"strings"
	"testing"

	"ath-watcher/internal/version"
)

func TestVersionCommand(t *testing.T) {
	t.Setenv("POLL_PERIOD", "30")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		appHandle = nil
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version should succeed: %v", err)
	}
	if !strings.Contains(out.String(), "version: "+version.Version) {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestInvalidPollPeriodFailsStartup(t *testing.T) {
	t.Setenv("POLL_PERIOD", "soon")
	appHandle = nil

	rootCmd.SetArgs([]string{"check"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		appHandle = nil
	})

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("an invalid POLL_PERIOD must abort before any cycle runs")
	}
}

func TestSimulateRequiresValue(t *testing.T) {
	t.Setenv("POLL_PERIOD", "30")
	appHandle = nil
	simulateValue = 0

	rootCmd.SetArgs([]string{"simulate-alert"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		appHandle = nil
	})

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("simulate-alert without --value should fail")
	}
}
