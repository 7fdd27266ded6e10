//go:build !linux && !darwin

package output

func syncDir(string) error { return nil }
