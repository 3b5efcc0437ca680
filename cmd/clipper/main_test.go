package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipper/internal/workflow"
)

type cliEnv struct {
	base       string
	configPath string
	workRoot   string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, key := range []string{"ASSEMBLYAI_API_KEY", "VIDEO_CLIPPER_BOT_TOKEN", "VIDEO_CLIPPER_CHAT_ID", "NTFY_TOPIC", "S3_ACCESS_KEY", "S3_SECRET_KEY"} {
		t.Setenv(key, "")
	}

	env := &cliEnv{
		base:       base,
		configPath: filepath.Join(base, "clipper.toml"),
		workRoot:   filepath.Join(base, "work"),
	}
	body := fmt.Sprintf(`[paths]
work_root = %q
log_dir = %q

[transcription]
api_key = "secret-key-1234"

[logging]
level = "error"
`, env.workRoot, filepath.Join(base, "logs"))
	if err := os.WriteFile(env.configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliEnv, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", env.configPath}, args...)
	code := execute(full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func TestVersionCommand(t *testing.T) {
	env := setupCLIEnv(t)
	out, _, code := runCLI(t, env, "version")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	requireContains(t, out, "clipper ")
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLIEnv(t)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, code := runCLI(t, env, "config", "init", "--path", target)
	if code != 0 {
		t.Fatalf("config init exit %d", code)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, stderr, code := runCLI(t, env, "config", "init", "--path", target); code == 0 {
		t.Fatal("second init without --overwrite succeeded")
	} else {
		requireContains(t, stderr, "already exists")
	}

	out, _, code = runCLI(t, env, "config", "show")
	if code != 0 {
		t.Fatalf("config show exit %d", code)
	}
	requireContains(t, out, env.workRoot)
	requireContains(t, out, "****1234")
	if strings.Contains(out, "secret-key") {
		t.Fatalf("api key leaked:\n%s", out)
	}
}

func TestStatusWithoutWorkDirectories(t *testing.T) {
	env := setupCLIEnv(t)
	out, _, code := runCLI(t, env, "status")
	if code != 0 {
		t.Fatalf("status exit %d", code)
	}
	requireContains(t, out, "No work directories")

	_, stderr, code := runCLI(t, env, "status", "missing")
	if code != 1 {
		t.Fatalf("status missing exit %d, want 1", code)
	}
	requireContains(t, stderr, "no work directory")
}

func TestRunArgumentValidation(t *testing.T) {
	env := setupCLIEnv(t)
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{"no source", []string{"run"}, "--local path is required"},
		{"both sources", []string{"run", "abc123", "--local", "talk.mp4"}, "not both"},
		{"two modes", []string{"run", "--local", "talk.mp4", "--draft", "--cut-only"}, "none of the others"},
		{"bad mode", []string{"run", "--local", "talk.mp4", "--mode", "everything"}, "unknown mode"},
		{"negative workers", []string{"run", "--local", "talk.mp4", "--workers", "-1"}, "--workers"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, code := runCLI(t, env, tc.args...)
			if code != 1 {
				t.Fatalf("exit %d, want 1", code)
			}
			requireContains(t, stderr, tc.want)
		})
	}
}

func TestResolveModeFlags(t *testing.T) {
	set, unset := true, false
	opts := &runOptions{modeFlags: map[workflow.Mode]*bool{
		workflow.ModeDraft:      &unset,
		workflow.ModeUploadOnly: &set,
	}}
	mode, err := opts.resolveMode()
	if err != nil || mode != workflow.ModeUploadOnly {
		t.Fatalf("mode = %q, %v", mode, err)
	}

	opts = &runOptions{mode: "cut-only", modeFlags: map[workflow.Mode]*bool{workflow.ModeDraft: &unset}}
	if mode, _ := opts.resolveMode(); mode != workflow.ModeCutOnly {
		t.Fatalf("mode = %q, want cut-only", mode)
	}
}
