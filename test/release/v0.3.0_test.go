package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestDraftctlReleaseE2E builds the CLI and exercises the v0.3.0 command
// surface end to end against a stub draft service. No live deployment is
// required.
func TestDraftctlReleaseE2E(t *testing.T) {
	// 1. Build the latest CLI binary
	// We build it to a temp location to avoid messing with the user's install
	tmpBin := "./draftctl_test_bin"
	buildCmd := exec.Command("go", "build", "-o", tmpBin, "../../cmd/draftctl")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build CLI: %v\n%s", err, string(out))
	}
	defer os.Remove(tmpBin)

	// 2. Stand in for the draft service
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			json.NewEncoder(w).Encode(map[string]string{
				"status":  "ok",
				"service": "draft",
				"version": "v0.3.0",
			})
		case r.URL.Path == "/v1/generate" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"task_id":     "task-rel-1",
				"document_id": "doc-rel",
				"started_at":  1700000000000,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	}))
	defer stub.Close()

	// Point HOME at a scratch dir so a real ~/.aleutiandraft config can't
	// leak into the run.
	home := t.TempDir()
	runCLI := func(args ...string) (string, error) {
		cmd := exec.Command(tmpBin, args...)
		cmd.Env = append(os.Environ(), "HOME="+home)
		out, err := cmd.CombinedOutput()
		return string(out), err
	}

	// 3. Help must list the full command surface
	helpOut, err := runCLI("--help")
	if err != nil {
		t.Fatalf("Help command failed: %v\n%s", err, helpOut)
	}
	for _, name := range []string{"generate", "watch", "fix", "snapshot", "doctor"} {
		if !strings.Contains(helpOut, name) {
			t.Errorf("FAIL: help output is missing the %q command:\n%s", name, helpOut)
		}
	}

	// 4. Doctor must come back green against a healthy service
	doctorOut, err := runCLI("doctor", "--json", "--server", stub.URL)
	if err != nil {
		t.Fatalf("Doctor command failed: %v\n%s", err, doctorOut)
	}
	for _, marker := range []string{`"reachable": true`, `"auth_ok": true`, `"compatible": true`} {
		if !strings.Contains(doctorOut, marker) {
			t.Errorf("FAIL: doctor report is missing %s. Output:\n%s", marker, doctorOut)
		}
	}

	// 5. Fire-and-forget generation must surface the task id for later watch
	genOut, err := runCLI("generate", "Summarize the scope of the study.",
		"--document", "doc-rel", "--section", "Scope",
		"--watch=false", "--json", "--server", stub.URL)
	if err != nil {
		t.Fatalf("Generate command failed: %v\n%s", err, genOut)
	}
	if !strings.Contains(genOut, "task-rel-1") {
		t.Errorf("FAIL: generate output does not carry the task id. Output:\n%s", genOut)
	}
}
