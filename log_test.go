package telerelay

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "telerelay.log")

	logger, closer := NewLogger(LogConfig{File: file, Console: &console})
	logger.Info("message forwarded", "destination", -1002)
	logger.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	for name, out := range map[string]string{"console": console.String(), "file": string(data)} {
		if !strings.Contains(out, "message forwarded") || !strings.Contains(out, "destination=-1002") {
			t.Errorf("%s output = %q, want the info record", name, out)
		}
		if strings.Contains(out, "hidden") {
			t.Errorf("%s output contains a debug record without Verbose", name)
		}
	}
}

func TestNewLogger_Verbose(t *testing.T) {
	var console bytes.Buffer

	logger, closer := NewLogger(LogConfig{Console: &console, Verbose: true})
	defer closer.Close()
	logger.Debug("checking message")

	if !strings.Contains(console.String(), "checking message") {
		t.Errorf("console = %q, want the debug record", console.String())
	}
}
