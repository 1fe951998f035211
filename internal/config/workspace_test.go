package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverWorkspace_Found(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte("tracing:\n  enabled: true\n"), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	result, err := DiscoverWorkspace(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != tmpDir {
		t.Errorf("expected %q, got %q", tmpDir, result)
	}
}

func TestDiscoverWorkspace_WalkUp(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte("tracing:\n  enabled: true\n"), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dirs: %v", err)
	}

	result, err := DiscoverWorkspace(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != tmpDir {
		t.Errorf("expected %q, got %q", tmpDir, result)
	}
}

func TestDiscoverWorkspace_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := DiscoverWorkspace(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}

func TestDiscoverWorkspace_MaxDepth(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte("tracing:\n  enabled: true\n"), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	parts := make([]string, MaxSearchDepth+2)
	parts[0] = tmpDir
	for i := 1; i <= MaxSearchDepth+1; i++ {
		parts[i] = "d"
	}
	deepPath := filepath.Join(parts...)
	if err := os.MkdirAll(deepPath, 0755); err != nil {
		t.Fatalf("failed to create deep path: %v", err)
	}

	result, err := DiscoverWorkspace(deepPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string (beyond max depth), got %q", result)
	}
}

func TestLoadWithWorkspace_DefaultsOnly(t *testing.T) {
	cfg, wsDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wsDir != "" {
		t.Errorf("expected empty workspace dir, got %q", wsDir)
	}
	if cfg.Router.DOMNodeCap != 2000 {
		t.Errorf("expected default dom_node_cap, got %d", cfg.Router.DOMNodeCap)
	}
	if cfg.Tracing.Enabled {
		t.Error("expected Tracing.Enabled to be false by default")
	}
}

func TestLoadWithWorkspace_WorkspaceOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
tracing:
  enabled: true
  dir: "traces"
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	cfg, resultDir, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: tmpDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultDir != tmpDir {
		t.Errorf("expected workspace dir %q, got %q", tmpDir, resultDir)
	}
	if !cfg.Tracing.Enabled {
		t.Error("expected Tracing.Enabled to be true from workspace config")
	}
	if cfg.Router.DOMNodeCap != 2000 {
		t.Errorf("expected default dom_node_cap to remain, got %d", cfg.Router.DOMNodeCap)
	}
}

func TestLoadWithWorkspace_ExplicitOverridesWorkspace(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
router:
  dom_node_cap: 1000
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	explicitPath := filepath.Join(tmpDir, "explicit.yaml")
	explicitConfig := `
router:
  dom_node_cap: 5000
`
	if err := os.WriteFile(explicitPath, []byte(explicitConfig), 0644); err != nil {
		t.Fatalf("failed to write explicit config: %v", err)
	}

	cfg, _, err := LoadWithWorkspace(explicitPath, WorkspaceOptions{ExplicitDir: tmpDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Router.DOMNodeCap != 5000 {
		t.Errorf("expected explicit config to override workspace, got %d", cfg.Router.DOMNodeCap)
	}
}

func TestLoadWithWorkspace_PartialYAML(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
router:
  dom_node_cap: 800
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	cfg, _, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: tmpDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Router.DOMNodeCap != 800 {
		t.Errorf("expected overridden dom_node_cap 800, got %d", cfg.Router.DOMNodeCap)
	}
	if cfg.Router.A11yFullThreshold != 0.8 {
		t.Errorf("expected default a11y_full_threshold to remain, got %v", cfg.Router.A11yFullThreshold)
	}
}

func TestLoadWithWorkspace_Disabled(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
tracing:
  enabled: true
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	cfg, resultDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultDir != "" {
		t.Errorf("expected empty workspace dir with Disable, got %q", resultDir)
	}
	if cfg.Tracing.Enabled {
		t.Error("expected Tracing.Enabled to be false when workspace disabled")
	}
}

func TestResolveWorkspacePaths_Relative(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Config{Tracing: TracingConfig{Dir: "traces"}}
	resolved := resolveWorkspacePaths(cfg, tmpDir)

	expected := filepath.Join(tmpDir, "traces")
	if resolved.Tracing.Dir != expected {
		t.Errorf("expected tracing dir %q, got %q", expected, resolved.Tracing.Dir)
	}
}

func TestResolveWorkspacePaths_AbsoluteUntouched(t *testing.T) {
	wsDir := t.TempDir()

	absDir := filepath.Join(string(filepath.Separator), "var", "log", "browserlens-traces")
	cfg := Config{Tracing: TracingConfig{Dir: absDir}}

	resolved := resolveWorkspacePaths(cfg, wsDir)
	if resolved.Tracing.Dir != absDir {
		t.Errorf("expected absolute dir untouched %q, got %q", absDir, resolved.Tracing.Dir)
	}
}

func TestInitWorkspace_Creates(t *testing.T) {
	tmpDir := t.TempDir()

	if err := InitWorkspace(tmpDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	checkDir := func(path string) {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("expected directory %q to exist: %v", path, err)
			return
		}
		if !info.IsDir() {
			t.Errorf("expected %q to be a directory", path)
		}
	}
	checkDir(wsDir)
	checkDir(filepath.Join(wsDir, "data"))

	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config template: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty config template")
	}

	gitignorePath := filepath.Join(wsDir, ".gitignore")
	data, err = os.ReadFile(gitignorePath)
	if err != nil {
		t.Fatalf("failed to read .gitignore: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty .gitignore")
	}
}

func TestInitWorkspace_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()

	if err := InitWorkspace(tmpDir); err != nil {
		t.Fatalf("first init failed: %v", err)
	}

	err := InitWorkspace(tmpDir)
	if err == nil {
		t.Error("expected error when workspace already exists")
	}
}
