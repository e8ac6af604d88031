package store

import "os"

// atomicWrite writes data to filePath via a temporary file + rename.
// This prevents partial writes from corrupting the file.
func atomicWrite(filePath string, data []byte, perm os.FileMode) error {
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
