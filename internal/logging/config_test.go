package logging

import (
	"testing"

	"github.com/danmuck/bondx/internal/logs"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveProfileDefaults(t *testing.T) {
	rt := Resolve(ProfileRuntime, envMap(nil))
	if rt.Level != logs.InfoLevel || !rt.Timestamp {
		t.Fatalf("unexpected runtime config: %+v", rt)
	}
	tc := Resolve(ProfileTest, envMap(nil))
	if tc.Level != logs.DebugLevel || tc.Timestamp || !tc.NoColor {
		t.Fatalf("unexpected test config: %+v", tc)
	}
}

func TestResolveEnvOverrides(t *testing.T) {
	cfg := Resolve(ProfileRuntime, envMap(map[string]string{
		EnvLogLevel:     " Warning ",
		EnvLogTimestamp: "false",
		EnvLogNoColor:   "1",
		EnvLogBypass:    "true",
	}))
	if cfg.Level != logs.WarnLevel {
		t.Fatalf("level=%v", cfg.Level)
	}
	if cfg.Timestamp || !cfg.NoColor || !cfg.Bypass {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestResolveIgnoresGarbage(t *testing.T) {
	cfg := Resolve(ProfileTest, envMap(map[string]string{
		EnvLogLevel:     "loud",
		EnvLogTimestamp: "maybe",
	}))
	if cfg.Level != logs.DebugLevel || cfg.Timestamp {
		t.Fatalf("garbage should not override: %+v", cfg)
	}
}
