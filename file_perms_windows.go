//go:build windows

package pagecat

import "os"

func preserveFilePermissions(path string, fileInfo os.FileInfo) error {
	return nil
}
