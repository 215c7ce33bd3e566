package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_ProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, false)

	log.Debug().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug line should be filtered in production mode, got %q", buf.String())
	}

	log.Info().Str("component", "test").Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("production output is not JSON: %v (%q)", err, buf.String())
	}
	if line["service"] != "backoffice" {
		t.Errorf("service field mismatch: got %v", line["service"])
	}
	if line["component"] != "test" {
		t.Errorf("component field mismatch: got %v", line["component"])
	}
}

func TestNew_DevModeIncludesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, true)

	log.Debug().Msg("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("debug line missing from dev output: %q", buf.String())
	}
}
