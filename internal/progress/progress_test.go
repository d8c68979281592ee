package progress

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewOnNonTerminalIsNoOp(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, ok := New(f).(*NoOpProgress); !ok {
		t.Error("New() on a regular file should return *NoOpProgress")
	}
	if _, ok := New(nil).(*NoOpProgress); !ok {
		t.Error("New(nil) should return *NoOpProgress")
	}
}

func TestCLIProgressLifecycle(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgress(&buf)

	p.Start("Loading products")
	time.Sleep(250 * time.Millisecond)
	p.SetDescription("Loading page 2")
	p.Finish()
	p.Finish() // second Finish is a no-op

	if buf.Len() == 0 {
		t.Error("spinner wrote nothing")
	}
}

func TestCLIProgressError(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgress(&buf)

	p.Start("Loading")
	p.Error(errors.New("request timed out"))

	if !strings.Contains(buf.String(), "Error: request timed out") {
		t.Errorf("output = %q, want error line", buf.String())
	}
}
