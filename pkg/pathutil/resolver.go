// Package pathutil provides centralized path management for local data files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PathResolver manages paths for the history database, the account policy,
// and saved snapshots.
type PathResolver struct {
	dataRoot     string
	databasePath string
	accountsFile string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataRoot is the root directory for local data (e.g., ./data)
	DataRoot string
	// DatabasePath is the SQLite payment history file
	DatabasePath string
	// AccountsFile is the YAML account policy
	AccountsFile string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {DataRoot}/.history/history.db
// If AccountsFile is empty, it defaults to {DataRoot}/accounts.yaml
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.DataRoot, ".history", "history.db")
	}

	accountsFile := config.AccountsFile
	if accountsFile == "" {
		accountsFile = filepath.Join(config.DataRoot, "accounts.yaml")
	}

	return &PathResolver{
		dataRoot:     config.DataRoot,
		databasePath: dbPath,
		accountsFile: accountsFile,
	}
}

// DataRoot returns the data root directory.
func (p *PathResolver) DataRoot() string {
	return p.dataRoot
}

// DatabasePath returns the history database file path.
func (p *PathResolver) DatabasePath() string {
	return p.databasePath
}

// AccountsFile returns the account policy file path.
func (p *PathResolver) AccountsFile() string {
	return p.accountsFile
}

// SnapshotPath returns where a snapshot taken at t is saved.
// Example: data/snapshots/2024/01/snapshot-20240115-101500.json
func (p *PathResolver) SnapshotPath(t time.Time) string {
	return filepath.Join(p.dataRoot, "snapshots", t.Format("2006"), t.Format("01"),
		fmt.Sprintf("snapshot-%s.json", t.Format("20060102-150405")))
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
