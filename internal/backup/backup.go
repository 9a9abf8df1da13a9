// Package backup archives the keystore so owner keys can be restored elsewhere.
package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelsos/securevault-tui/internal/logger"
)

// keyFilePrefix is the prefix go-ethereum gives encrypted key files.
const keyFilePrefix = "UTC--"

// DefaultBackupDir returns ~/backups, creating it if needed.
func DefaultBackupDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	backupDir := filepath.Join(homeDir, "backups")
	if err := os.MkdirAll(backupDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	return backupDir, nil
}

// CreateKeystoreBackup zips the key files in keystoreDir into backupDir and
// returns the archive path and how many keys it holds. Key files stay
// encrypted; only the passwords protect them.
func CreateKeystoreBackup(keystoreDir, backupDir string) (string, int, error) {
	info, err := os.Stat(keystoreDir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read keystore directory: %w", err)
	}
	if !info.IsDir() {
		return "", 0, fmt.Errorf("%s is not a directory", keystoreDir)
	}

	if backupDir == "" {
		backupDir, err = DefaultBackupDir()
		if err != nil {
			return "", 0, err
		}
	}

	entries, err := os.ReadDir(keystoreDir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to list keystore directory: %w", err)
	}

	var keyFiles []string
	for _, entry := range entries {
		if ShouldIncludeInBackup(entry.Name(), entry.IsDir()) {
			keyFiles = append(keyFiles, entry.Name())
		} else {
			logger.Debug("Skipping %s", entry.Name())
		}
	}
	if len(keyFiles) == 0 {
		return "", 0, fmt.Errorf("no key files found in %s", keystoreDir)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupFile := filepath.Join(backupDir, fmt.Sprintf("vaultdash_keystore_%s.zip", timestamp))

	zipFile, err := os.OpenFile(backupFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create backup file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	for _, name := range keyFiles {
		if err := addToZip(zipWriter, filepath.Join(keystoreDir, name), name); err != nil {
			zipWriter.Close()
			os.Remove(backupFile)
			return "", 0, err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to finish backup: %w", err)
	}

	logger.Info("Keystore backup created: %s (%d keys)", backupFile, len(keyFiles))
	return backupFile, len(keyFiles), nil
}

func addToZip(zipWriter *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create file header: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create file in zip: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	logger.Debug("Added key file to backup: %s", name)
	return nil
}

// ShouldIncludeInBackup reports whether a keystore directory entry is a key file.
func ShouldIncludeInBackup(name string, isDir bool) bool {
	return !isDir && strings.HasPrefix(name, keyFilePrefix)
}
