//go:build !darwin

package output

// ExcludeFromBackup is a no-op on platforms without a backup exclusion mark
func ExcludeFromBackup(path string) error {
	return nil
}

// IsExcludedFromBackup always reports false on platforms without a backup
// exclusion mark
func IsExcludedFromBackup(path string) bool {
	return false
}
