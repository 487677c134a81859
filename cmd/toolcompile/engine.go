package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/exec"
)

// engineFlags are the options shared by commands that build an exec.Exec.
type engineFlags struct {
	isolation      string
	timeout        time.Duration
	capabilities   []string
	rawPaths       bool
	maxOutputBytes int
	maxConcurrent  int
	logLevel       zapcore.Level
}

func (f *engineFlags) opts() []opt {
	return []opt{
		newOpt(&f.isolation, "isolation", string(exec.IsolationNone), "where modules run: none or process"),
		newOpt(&f.timeout, "timeout", exec.DefaultTimeout, "invocation timeout"),
		newOpt(&f.capabilities, "default-caps", []string(nil), "capabilities added to every submission"),
		newOpt(&f.rawPaths, "allow-raw-paths", false, "accept host package paths as capabilities"),
		newOpt(&f.maxOutputBytes, "max-output-bytes", 0, "sink output captured per invocation (0 for default)"),
		newOpt(&f.maxConcurrent, "max-concurrent", exec.DefaultMaxConcurrent, "sessions run in parallel by batch runs"),
		newOpt(&f.logLevel, "log-level", zapcore.WarnLevel, "log level: debug, info, warn, error"),
	}
}

func (f *engineFlags) bind(v *viper.Viper, cmd *cobra.Command) {
	bindOptions(v, cmd, f.opts())
}

func (f *engineFlags) load(v *viper.Viper, cmd *cobra.Command) error {
	return loadOptions(v, cmd, f.opts())
}

func (f *engineFlags) logger() *zap.Logger {
	return newLogger(os.Stderr, f.logLevel)
}

func (f *engineFlags) newExec(logger *zap.Logger, metrics *code.Metrics) (*exec.Exec, error) {
	return exec.New(exec.Options{
		Isolation:           exec.Isolation(f.isolation),
		DefaultTimeout:      f.timeout,
		DefaultCapabilities: f.capabilities,
		AllowRawPaths:       f.rawPaths,
		MaxOutputBytes:      f.maxOutputBytes,
		MaxConcurrent:       f.maxConcurrent,
		Logger:              logger,
		Metrics:             metrics,
	})
}
