//go:build darwin

package output

import (
	"golang.org/x/sys/unix"
)

const backupExcludeAttr = "com.apple.metadata:com_apple_backup_excludeItem"

// ExcludeFromBackup marks path so Time Machine and device backups skip it
func ExcludeFromBackup(path string) error {
	return unix.Setxattr(path, backupExcludeAttr, []byte("com.apple.backupd"), 0)
}

// IsExcludedFromBackup reports whether path carries the backup exclusion mark
func IsExcludedFromBackup(path string) bool {
	sz, err := unix.Getxattr(path, backupExcludeAttr, nil)
	return err == nil && sz > 0
}
