package code

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Resolver: &mockResolver{},
			Compiler: &mockCompiler{},
			Host:     &mockHost{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing resolver", mutate: func(c *Config) { c.Resolver = nil }, wantErr: "Resolver"},
		{name: "missing compiler", mutate: func(c *Config) { c.Compiler = nil }, wantErr: "Compiler"},
		{name: "missing host", mutate: func(c *Config) { c.Host = nil }, wantErr: "Host"},
		{name: "bad kind", mutate: func(c *Config) { c.DefaultKind = "dll" }, wantErr: "output kind"},
		{name: "negative timeout", mutate: func(c *Config) { c.DefaultTimeout = -time.Second }, wantErr: "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Validate() error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateListsAllMissing(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	for _, field := range []string{"Resolver", "Compiler", "Host"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	if cfg.DefaultKind != OutputLibrary {
		t.Errorf("DefaultKind = %q, want library", cfg.DefaultKind)
	}
	if cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.MaxConcurrent, DefaultMaxConcurrent)
	}
	if cfg.Logger == nil {
		t.Error("Logger should default to a no-op logger")
	}
	if cfg.DefaultTimeout != 0 {
		t.Errorf("DefaultTimeout = %v, want 0", cfg.DefaultTimeout)
	}
}
