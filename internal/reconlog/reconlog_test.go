package reconlog

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func TestHandler_WritesLinesToAuditWriter(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, false)
	l := &Logger{Logger: slog.New(h)}

	l.Stage("volume_assembler", 12*time.Millisecond, 4096, "assembled volume")

	out := buf.String()
	if !strings.Contains(out, "assembled volume") {
		t.Errorf("audit output missing message: %q", out)
	}
	if !strings.Contains(out, "stage=volume_assembler") {
		t.Errorf("audit output missing stage attr: %q", out)
	}
	if !strings.Contains(out, "size=4096") {
		t.Errorf("audit output missing size attr: %q", out)
	}
}

func TestHandler_WarnIncludesKind(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, false)
	l := &Logger{Logger: slog.New(h)}

	l.Warn("surface_extractor", "StageRecoverable", "decimation unavailable")

	out := buf.String()
	if !strings.Contains(out, "kind=StageRecoverable") {
		t.Errorf("audit output missing kind attr: %q", out)
	}
	if !strings.Contains(out, "WARN") {
		t.Errorf("audit output missing WARN level: %q", out)
	}
}

func TestOpen_WritesGzipCompressedAuditFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log.gz")

	logger, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	logger.Stage("exporter", time.Millisecond, 128, "uploaded mesh")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer gz.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gz); err != nil {
		t.Fatalf("read gzip stream: %v", err)
	}
	if !strings.Contains(buf.String(), "uploaded mesh") {
		t.Errorf("decompressed audit log missing message: %q", buf.String())
	}
}
