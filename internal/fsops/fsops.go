// Package fsops moves deleted image files out of the image tree.
package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// DeletedFilesFolder is created under the image root to hold backups of
// deleted files. Its layout mirrors the image tree.
const DeletedFilesFolder = "DeletedFiles"

// ErrFileMissing is returned when the file to delete does not exist.
var ErrFileMissing = errors.New("file missing")

// BackupPath returns where a backed-up file is placed.
func BackupPath(root, relPath, file string) string {
	return filepath.Join(root, DeletedFilesFolder, filepath.FromSlash(relPath), file)
}

// MoveToBackup removes root/relPath/file from the image tree. With backup
// set the file is moved to BackupPath, replacing any earlier backup of the
// same path; otherwise it is deleted permanently.
func MoveToBackup(root, relPath, file string, backup bool) error {
	src := filepath.Join(root, filepath.FromSlash(relPath), file)

	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileMissing, src)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if !backup {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("delete %s: %w", src, err)
		}
		return nil
	}

	dst := BackupPath(root, relPath, file)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		// fall back to the top of the backup folder
		dst = filepath.Join(root, DeletedFilesFolder, file)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create backup folder: %w", err)
		}
	}

	return moveFile(src, dst, info.Mode().Perm())
}

func moveFile(src, dst string, mode os.FileMode) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("move %s: %w", src, err)
	}

	if err := CopyFileMode(src, dst, mode); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s across devices: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s after copy: %w", src, err)
	}
	return nil
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
