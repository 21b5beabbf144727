package logs

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: WarnLevel, NoColor: true, Out: &buf})
	defer Configure(DefaultConfig())

	Infof("hidden value=%d", 1)
	Warnf("shown value=%d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown value=2") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestBypassWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: DebugLevel, Bypass: true, Out: &buf})
	defer Configure(DefaultConfig())

	Debugf("raw key=%s", "v")
	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"message":"raw key=v"`) {
		t.Fatalf("expected json line, got %q", line)
	}
}

func TestLogfIgnoresLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: ErrorLevel, Bypass: true, Out: &buf})
	defer Configure(DefaultConfig())

	Logf("always")
	if !strings.Contains(buf.String(), "always") {
		t.Fatalf("Logf output missing: %q", buf.String())
	}

	buf.Reset()
	Configure(Config{Level: Disabled, Bypass: true, Out: &buf})
	Logf("never")
	if buf.Len() != 0 {
		t.Fatalf("disabled logger wrote %q", buf.String())
	}
}

func TestConsoleOmitsTimestampColumnWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: InfoLevel, NoColor: true, Out: &buf})
	defer Configure(DefaultConfig())

	Infof("plain line")
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "<nil>") {
		t.Fatalf("timestamp placeholder rendered: %q", line)
	}
	if !strings.HasPrefix(line, "INF") {
		t.Fatalf("expected level first, got %q", line)
	}
}
