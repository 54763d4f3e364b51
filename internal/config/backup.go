package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

const (
	// MaxConfigBackups is how many timestamped backups are kept.
	MaxConfigBackups = 3

	backupSuffix = ".bak"
)

// BackupUserConfig writes a timestamped copy of the user config file and
// prunes backups beyond MaxConfigBackups. Returns the backup path, or an
// empty string when there is no config to back up.
func BackupUserConfig() (string, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return "", nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", eserrors.ConfigError("failed to read config for backup", err)
	}

	stamp := time.Now().Format("20060102-150405")
	backupPath := fmt.Sprintf("%s%s.%s", configPath, backupSuffix, stamp)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", eserrors.ConfigError("failed to write config backup", err)
	}

	// Pruning is best effort; the backup itself already succeeded.
	backups, err := ListUserConfigBackups()
	if err == nil && len(backups) > MaxConfigBackups {
		for _, old := range backups[MaxConfigBackups:] {
			_ = os.Remove(old)
		}
	}

	return backupPath, nil
}

// ListUserConfigBackups returns the backup files for the user config,
// newest first.
func ListUserConfigBackups() ([]string, error) {
	configPath := GetUserConfigPath()
	dir := filepath.Dir(configPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eserrors.ConfigError("failed to list config directory", err)
	}

	prefix := filepath.Base(configPath) + backupSuffix + "."
	type stamped struct {
		path string
		mod  time.Time
	}
	var backups []stamped
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, stamped{
			path: filepath.Join(dir, entry.Name()),
			mod:  info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].mod.After(backups[j].mod)
	})

	paths := make([]string, len(backups))
	for i, b := range backups {
		paths[i] = b.path
	}
	return paths, nil
}

// RestoreUserConfig replaces the user config with a backup. The current
// config, when present, is backed up first.
func RestoreUserConfig(backupPath string) error {
	if !fileExists(backupPath) {
		return eserrors.New(eserrors.ErrCodeConfigNotFound,
			"backup file not found", nil).WithDetail("path", backupPath)
	}

	if UserConfigExists() {
		if _, err := BackupUserConfig(); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return eserrors.ConfigError("failed to read backup", err)
	}

	if err := os.MkdirAll(GetUserConfigDir(), 0o755); err != nil {
		return eserrors.ConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(GetUserConfigPath(), data, 0o644); err != nil {
		return eserrors.ConfigError("failed to write restored config", err)
	}
	return nil
}
