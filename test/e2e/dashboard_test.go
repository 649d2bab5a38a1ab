package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

// buildDivya builds the dashboard binary for testing.
func buildDivya(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "divya")

	rootDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// We are in test/e2e.
	rootDir = filepath.Join(rootDir, "..", "..")

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/divya")
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

func TestE2E_Dashboard(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and drives the binary in a pty")
	}
	binPath := buildDivya(t)
	api := fixtureAPI(t)

	homeDir := t.TempDir()
	dataDir := filepath.Join(homeDir, ".divyadrishti")

	cmd := exec.Command(binPath)
	cmd.Env = append(os.Environ(),
		"HOME="+homeDir,
		"DIVYA_DATA_DIR="+dataDir,
		"DIVYA_API_URL="+api.URL,
		"DIVYA_STREAM_TRANSPORT=sse",
	)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		t.Fatalf("failed to start pty: %v", err)
	}
	defer func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
	}()
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: 120, Rows: 40}); err != nil {
		t.Fatalf("failed to set pty size: %v", err)
	}

	var screen bytes.Buffer
	console, err := expect.NewConsole(
		expect.WithStdin(ptmx),
		expect.WithStdout(&screen),
		expect.WithDefaultTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create console: %v", err)
	}
	defer console.Close()

	fail := func(step string, err error) {
		t.Helper()
		dumpLogs(t, dataDir)
		t.Fatalf("%s: %v\nScreen:\n%s", step, err, screen.String())
	}

	// 1. Snapshot renders on the trending view.
	if _, err := console.ExpectString("Fixture Story One"); err != nil {
		fail("snapshot not rendered", err)
	}

	// 2. The live story arrives over the stream and is prepended.
	if _, err := console.ExpectString("Live Story Three"); err != nil {
		fail("live story not rendered", err)
	}

	// 3. Rankings view shows the fetched ranking.
	if _, err := console.Send("3"); err != nil {
		t.Fatalf("failed to send 3: %v", err)
	}
	if _, err := console.ExpectString("Rust adoption"); err != nil {
		fail("rankings not rendered", err)
	}

	// 4. Quit.
	if _, err := console.Send("q"); err != nil {
		t.Fatalf("failed to send q: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Error("process did not exit after 'q'")
	}

	// The event log records the session.
	if _, err := os.Stat(filepath.Join(dataDir, "events.jsonl")); err != nil {
		t.Errorf("event log missing: %v", err)
	}
}
