package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

type testFlags struct {
	name    string
	count   int
	verbose bool
	wait    time.Duration
	caps    []string
	level   zapcore.Level
}

func (f *testFlags) opts() []opt {
	return []opt{
		newOpt(&f.name, "name", "default", "name"),
		newOpt(&f.count, "count", 3, "count"),
		newOpt(&f.verbose, "verbose", false, "verbose"),
		newOpt(&f.wait, "wait-for", time.Second, "wait"),
		newOpt(&f.caps, "caps", []string(nil), "caps"),
		newOpt(&f.level, "log-level", zapcore.WarnLevel, "level"),
	}
}

func parse(t *testing.T, args ...string) *testFlags {
	t.Helper()
	var f testFlags
	v := newViper()
	cmd := &cobra.Command{Use: "test"}
	bindOptions(v, cmd, f.opts())
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := loadOptions(v, cmd, f.opts()); err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	return &f
}

func TestOptions_Defaults(t *testing.T) {
	f := parse(t)

	if f.name != "default" || f.count != 3 || f.verbose || f.wait != time.Second || f.caps != nil {
		t.Errorf("defaults = %+v", *f)
	}
	if f.level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", f.level)
	}
}

func TestOptions_Flags(t *testing.T) {
	f := parse(t, "--name", "calc", "--count", "7", "--verbose", "--wait-for", "250ms",
		"--caps", "json,strings", "--log-level", "debug")

	if f.name != "calc" || f.count != 7 || !f.verbose || f.wait != 250*time.Millisecond {
		t.Errorf("flags = %+v", *f)
	}
	if diff := cmp.Diff([]string{"json", "strings"}, f.caps); diff != "" {
		t.Errorf("caps mismatch (-want +got):\n%s", diff)
	}
	if f.level != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", f.level)
	}
}

func TestOptions_Environment(t *testing.T) {
	t.Setenv("TOOLCOMPILE_NAME", "from-env")
	t.Setenv("TOOLCOMPILE_COUNT", "9")
	t.Setenv("TOOLCOMPILE_WAIT_FOR", "2s")
	t.Setenv("TOOLCOMPILE_LOG_LEVEL", "error")

	f := parse(t, "--count", "1")

	if f.name != "from-env" {
		t.Errorf("name = %q, want value from environment", f.name)
	}
	if f.count != 1 {
		t.Errorf("count = %d, flag must win over environment", f.count)
	}
	if f.wait != 2*time.Second {
		t.Errorf("wait = %v", f.wait)
	}
	if f.level != zapcore.ErrorLevel {
		t.Errorf("level = %v, want error", f.level)
	}
}

func TestOptions_BadLevel(t *testing.T) {
	var f testFlags
	v := newViper()
	cmd := &cobra.Command{Use: "test"}
	bindOptions(v, cmd, f.opts())
	if err := cmd.Flags().Parse([]string{"--log-level", "loud"}); err == nil {
		t.Error("Parse() accepted an unknown log level")
	}
}

func TestLevelValue(t *testing.T) {
	var level zapcore.Level
	lv := newLevelValue(zapcore.InfoLevel, &level)

	if lv.String() != "info" || lv.Type() != "Log-Level" {
		t.Errorf("String() = %q, Type() = %q", lv.String(), lv.Type())
	}
	if err := lv.Set("warn"); err != nil {
		t.Fatalf("Set(warn) error = %v", err)
	}
	if level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", level)
	}
	if err := lv.Set("chatty"); err == nil {
		t.Error("Set(chatty) succeeded")
	}
}
