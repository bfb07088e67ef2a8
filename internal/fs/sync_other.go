//go:build !linux

package fs

func syncData(f File, _ uintptr) error {
	return f.Sync()
}
