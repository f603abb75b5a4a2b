package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/albertocavalcante/sitebake/pkg/config"
)

func TestPlanInit_EmptyDir(t *testing.T) {
	tmpDir := t.TempDir()

	plan, err := planInit(tmpDir)
	if err != nil {
		t.Fatalf("planInit() error = %v", err)
	}

	if plan.configExists || plan.indexExists || plan.gitignoreOK {
		t.Errorf("empty dir should need every file, got %+v", plan)
	}
	if plan.configFile != filepath.Join(tmpDir, config.ConfigFileName) {
		t.Errorf("configFile = %q", plan.configFile)
	}
	if plan.indexFile != filepath.Join(tmpDir, "src", "index.html") {
		t.Errorf("indexFile = %q", plan.indexFile)
	}
	if plan.gitignoreEntry != "out/" {
		t.Errorf("gitignoreEntry = %q, want %q", plan.gitignoreEntry, "out/")
	}
	if !strings.Contains(plan.configContent, "[project]") {
		t.Errorf("config content missing [project] table:\n%s", plan.configContent)
	}
}

func TestPlanInit_ExistingSources(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "src", "home.html"), []byte("<p>hi</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, err := planInit(tmpDir)
	if err != nil {
		t.Fatalf("planInit() error = %v", err)
	}
	if !plan.indexExists {
		t.Error("non-empty source directory should not get a starter page")
	}
}

func TestGitignoreHas(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"out/\n", true},
		{"out\n", true},
		{"/out/\n", true},
		{"node_modules\n  out/  \n", true},
		{"output/\n", false},
		{"", false},
	}

	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), ".gitignore")
		if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
			t.Fatal(err)
		}
		if got := gitignoreHas(path, "out/"); got != tt.want {
			t.Errorf("gitignoreHas(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}

	if gitignoreHas(filepath.Join(t.TempDir(), "missing"), "out/") {
		t.Error("missing .gitignore should not match")
	}
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gitignore")
	if err := os.WriteFile(path, []byte("node_modules"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := appendLine(path, "out/"); err != nil {
		t.Fatalf("appendLine() error = %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "node_modules\nout/\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRunInitDryRun(t *testing.T) {
	tmpDir := t.TempDir()
	plan, err := planInit(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runInitDryRun(&out, plan); err != nil {
		t.Errorf("runInitDryRun() error = %v", err)
	}

	// Files should not be created
	if fileExists(plan.configFile) {
		t.Error("dry run created sitebake.toml")
	}
	if fileExists(plan.indexFile) {
		t.Error("dry run created index.html")
	}
	if !strings.Contains(out.String(), "Would create "+plan.configFile) {
		t.Errorf("dry run output missing config file:\n%s", out.String())
	}
}

func TestRunInitApply(t *testing.T) {
	tmpDir := t.TempDir()
	plan, err := planInit(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runInitApply(&out, plan); err != nil {
		t.Errorf("runInitApply() error = %v", err)
	}

	for _, f := range []string{plan.configFile, plan.indexFile, plan.gitignoreFile} {
		if !fileExists(f) {
			t.Errorf("apply did not create %s", f)
		}
	}

	cfg, err := config.ParseFile(plan.configFile)
	if err != nil {
		t.Fatalf("written config does not parse: %v", err)
	}
	if cfg.Project.Source != config.DefaultSource {
		t.Errorf("source = %q, want %q", cfg.Project.Source, config.DefaultSource)
	}

	// A second plan sees everything in place.
	again, err := planInit(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	var errOut bytes.Buffer
	out.Reset()
	if err := runInitCheck(&out, &errOut, again); err != nil {
		t.Errorf("runInitCheck() after apply error = %v\n%s", err, errOut.String())
	}
}

func TestRunInitApply_ExistingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, config.ConfigFileName)
	if err := os.WriteFile(configFile, []byte("[build]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, err := planInit(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := runInitApply(&out, plan); err != nil {
		t.Errorf("runInitApply() error = %v", err)
	}

	// Files should not be overwritten
	content, _ := os.ReadFile(configFile)
	if string(content) != "[build]\nworkers = 2\n" {
		t.Error("apply overwrote existing sitebake.toml")
	}
}

func TestRunInitCheck_Issues(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, config.ConfigFileName), []byte("[build]\nworkerz = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, err := planInit(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	err = runInitCheck(&out, &errOut, plan)
	if !errors.Is(err, errNotConfigured) {
		t.Fatalf("runInitCheck() error = %v, want errNotConfigured", err)
	}

	for _, want := range []string{"is invalid", "source directory is empty", ".gitignore does not list out/"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("check output missing %q:\n%s", want, errOut.String())
		}
	}
}
