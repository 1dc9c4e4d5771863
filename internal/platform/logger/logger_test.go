package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelsRouteToWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut)

	l.Info("hello")
	l.Warnf("low energy %d", 3)
	l.Error("boom")

	if !strings.Contains(out.String(), "[TAPPER-INFO] ") || !strings.Contains(out.String(), "hello") {
		t.Errorf("info line missing from stdout writer: %q", out.String())
	}
	if !strings.Contains(out.String(), "[TAPPER-WARN] ") || !strings.Contains(out.String(), "low energy 3") {
		t.Errorf("warn line missing from stdout writer: %q", out.String())
	}
	if strings.Contains(out.String(), "boom") {
		t.Errorf("error line leaked to stdout writer")
	}
	if !strings.Contains(errOut.String(), "[TAPPER-ERROR] ") || !strings.Contains(errOut.String(), "boom") {
		t.Errorf("error line missing from stderr writer: %q", errOut.String())
	}
}

func TestEventFormat(t *testing.T) {
	var out bytes.Buffer
	l := NewLoggerTo(&out, &out)

	l.Event("TAP_REJECTED", "abc", "energy 0")

	want := "[EVENT:TAP_REJECTED] Session:abc | energy 0"
	if !strings.Contains(out.String(), want) {
		t.Errorf("expected %q in %q", want, out.String())
	}
}

func TestShortfileReportsCaller(t *testing.T) {
	var out bytes.Buffer
	l := NewLoggerTo(&out, &out)

	l.Info("where")

	if !strings.Contains(out.String(), "logger_test.go") {
		t.Errorf("expected caller file in %q", out.String())
	}
}
