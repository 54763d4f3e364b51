package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

func TestBackupUserConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "eventscout")
	configPath := filepath.Join(configDir, "config.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupUserConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath != "" {
			t.Errorf("expected empty backup path for missing config, got %s", backupPath)
		}
	})

	t.Run("backup existing config", func(t *testing.T) {
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}
		content := "version: 1\nlogging:\n  level: debug\n"
		if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		backupPath, err := BackupUserConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath == "" {
			t.Fatal("expected non-empty backup path")
		}

		got, err := os.ReadFile(backupPath)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(got) != content {
			t.Errorf("backup content mismatch:\ngot:  %s\nwant: %s", got, content)
		}
	})
}

func TestListUserConfigBackups(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "eventscout")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	t.Run("no backups exist", func(t *testing.T) {
		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) != 0 {
			t.Errorf("expected 0 backups, got %d", len(backups))
		}
	})

	t.Run("sorted newest first", func(t *testing.T) {
		for _, stamp := range []string{"20260101-100000", "20260101-110000", "20260101-120000"} {
			name := filepath.Join(configDir, "config.yaml.bak."+stamp)
			if err := os.WriteFile(name, []byte("test"), 0o644); err != nil {
				t.Fatalf("failed to create backup: %v", err)
			}
			// Distinct mod times drive the ordering.
			time.Sleep(10 * time.Millisecond)
		}

		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) != 3 {
			t.Fatalf("expected 3 backups, got %d", len(backups))
		}
		for i := 1; i < len(backups); i++ {
			prev, _ := os.Stat(backups[i-1])
			cur, _ := os.Stat(backups[i])
			if prev.ModTime().Before(cur.ModTime()) {
				t.Errorf("backups not sorted newest first: %s before %s", backups[i-1], backups[i])
			}
		}
	})

	t.Run("prunes beyond the cap", func(t *testing.T) {
		if err := os.WriteFile(configPath, []byte("version: 1\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		for i := 0; i < MaxConfigBackups+2; i++ {
			if _, err := BackupUserConfig(); err != nil {
				t.Fatalf("failed to create backup: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
		}

		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) > MaxConfigBackups {
			t.Errorf("expected at most %d backups, got %d", MaxConfigBackups, len(backups))
		}
	})
}

func TestRestoreUserConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "eventscout")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	t.Run("missing backup", func(t *testing.T) {
		err := RestoreUserConfig(filepath.Join(configDir, "does-not-exist.bak"))
		if err == nil {
			t.Fatal("expected error for missing backup")
		}
		if code := eserrors.GetCode(err); code != eserrors.ErrCodeConfigNotFound {
			t.Errorf("expected %s, got %s", eserrors.ErrCodeConfigNotFound, code)
		}
	})

	t.Run("restore replaces the config", func(t *testing.T) {
		backupPath := filepath.Join(configDir, "config.yaml.bak.20260101-100000")
		if err := os.WriteFile(backupPath, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
			t.Fatalf("failed to write backup: %v", err)
		}
		if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if err := RestoreUserConfig(backupPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("failed to read restored config: %v", err)
		}
		if !strings.Contains(string(got), "level: warn") {
			t.Errorf("restored config missing expected content, got: %s", got)
		}

		// The pre-restore config was itself backed up.
		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		found := false
		for _, b := range backups {
			data, _ := os.ReadFile(b)
			if strings.Contains(string(data), "level: debug") {
				found = true
			}
		}
		if !found {
			t.Error("expected the replaced config to be backed up before restore")
		}
	})
}
