package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/pion/logging"
)

func TestConfigureRedirectsExistingLoggers(t *testing.T) {
	l := NewLogger("camrec/test")

	var buf bytes.Buffer
	Configure(&buf, logging.LogLevelDebug)
	defer Configure(nil, logging.LogLevelWarn)

	l.Debug("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected log output to contain hello, got %q", buf.String())
	}

	buf.Reset()
	Configure(nil, logging.LogLevelError)
	l.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("expected no output at error level, got %q", buf.String())
	}
}

func TestNewLoggerWhileConfiguring(t *testing.T) {
	defer Configure(os.Stderr, logging.LogLevelWarn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			NewLogger(fmt.Sprintf("camrec/race%d", i))
		}(i)
		go func() {
			defer wg.Done()
			Configure(io.Discard, logging.LogLevelInfo)
		}()
	}
	wg.Wait()

	var buf bytes.Buffer
	Configure(&buf, logging.LogLevelInfo)
	NewLogger("camrec/late").Info("late")
	if !strings.Contains(buf.String(), "late") {
		t.Errorf("expected a logger created after Configure to use its level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logging.LogLevel{
		"debug":   logging.LogLevelDebug,
		"INFO":    logging.LogLevelInfo,
		"off":     logging.LogLevelDisabled,
		"unknown": logging.LogLevelWarn,
	}
	for name, expected := range cases {
		if got := ParseLevel(name); got != expected {
			t.Errorf("%s: expected %v, got %v", name, expected, got)
		}
	}
}
