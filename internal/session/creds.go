package session

import (
	"fmt"
	"os"
	"time"
)

// ArchiveCredentials moves a credential directory aside under a timestamped
// name so a fresh pairing cycle starts clean while the old state is kept for
// inspection. A missing directory is a no-op.
func ArchiveCredentials(dir string) (string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", nil
	}

	archived := fmt.Sprintf("%s_archived_%d", dir, time.Now().UnixMilli())
	if err := os.Rename(dir, archived); err != nil {
		// Rename can fail across filesystems or on locked files; fall back
		// to removal so the re-pair still starts clean.
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return "", fmt.Errorf("session: archive credentials: %w", err)
		}
		return "", nil
	}
	return archived, nil
}

// RemoveCredentials deletes the credential directory. Used on explicit
// logout, where the credentials are invalid and not worth keeping.
func RemoveCredentials(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("session: remove credentials: %w", err)
	}
	return nil
}
