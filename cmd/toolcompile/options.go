package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// envPrefix prefixes every environment variable the CLI reads.
const envPrefix = "TOOLCOMPILE"

// opt is a single command-line option that may also come from the
// environment.
type opt struct {
	destP any
	flag  string
	dflt  any
	desc  string
}

func newOpt(destP any, flag string, dflt any, desc string) opt {
	return opt{destP: destP, flag: flag, dflt: dflt, desc: desc}
}

// newViper returns a viper instance reading TOOLCOMPILE_* variables, with
// "-" in flag names mapped to "_".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return v
}

// bindOptions registers opts as flags on cmd and binds them to v.
// Flags take precedence over the environment.
func bindOptions(v *viper.Viper, cmd *cobra.Command, opts []opt) {
	for _, o := range opts {
		switch destP := o.destP.(type) {
		case *string:
			var d string
			if o.dflt != nil {
				d = o.dflt.(string)
			}
			cmd.Flags().StringVar(destP, o.flag, d, o.desc)
		case *int:
			var d int
			if o.dflt != nil {
				d = o.dflt.(int)
			}
			cmd.Flags().IntVar(destP, o.flag, d, o.desc)
		case *bool:
			var d bool
			if o.dflt != nil {
				d = o.dflt.(bool)
			}
			cmd.Flags().BoolVar(destP, o.flag, d, o.desc)
		case *time.Duration:
			var d time.Duration
			if o.dflt != nil {
				d = o.dflt.(time.Duration)
			}
			cmd.Flags().DurationVar(destP, o.flag, d, o.desc)
		case *[]string:
			var d []string
			if o.dflt != nil {
				d = o.dflt.([]string)
			}
			cmd.Flags().StringSliceVar(destP, o.flag, d, o.desc)
		case *zapcore.Level:
			d := zapcore.InfoLevel
			if o.dflt != nil {
				d = o.dflt.(zapcore.Level)
			}
			cmd.Flags().Var(newLevelValue(d, destP), o.flag, o.desc)
		default:
			panic(fmt.Errorf("unknown destination type %T", o.destP))
		}
		if err := v.BindPFlag(o.flag, cmd.Flags().Lookup(o.flag)); err != nil {
			panic(err)
		}
	}
}

// loadOptions copies environment values into opts whose flags were not set
// on the command line.
func loadOptions(v *viper.Viper, cmd *cobra.Command, opts []opt) error {
	for _, o := range opts {
		if cmd.Flags().Changed(o.flag) || !v.IsSet(o.flag) {
			continue
		}
		switch destP := o.destP.(type) {
		case *string:
			*destP = v.GetString(o.flag)
		case *int:
			*destP = v.GetInt(o.flag)
		case *bool:
			*destP = v.GetBool(o.flag)
		case *time.Duration:
			*destP = v.GetDuration(o.flag)
		case *[]string:
			*destP = v.GetStringSlice(o.flag)
		case *zapcore.Level:
			if err := destP.Set(v.GetString(o.flag)); err != nil {
				return fmt.Errorf("%s: %w", o.flag, err)
			}
		}
	}
	return nil
}

type levelValue zapcore.Level

func newLevelValue(val zapcore.Level, p *zapcore.Level) *levelValue {
	*p = val
	return (*levelValue)(p)
}

func (l *levelValue) String() string {
	return zapcore.Level(*l).String()
}

func (l *levelValue) Set(s string) error {
	var level zapcore.Level
	if err := level.Set(s); err != nil {
		return fmt.Errorf("unknown log level; supported levels are debug, info, warn, error")
	}
	*l = levelValue(level)
	return nil
}

func (l *levelValue) Type() string {
	return "Log-Level"
}

var _ pflag.Value = (*levelValue)(nil)
