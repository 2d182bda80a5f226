package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aatumaykin/taskrunner/internal/task"
)

const backupTimeLayout = "20060102_150405"

// Backup copies source_dir recursively into a new backup_<timestamp>
// directory under backup_dir.
type Backup struct {
	now func() time.Time
}

// NewBackup creates the backup action.
func NewBackup() *Backup {
	return &Backup{now: time.Now}
}

// Type returns task.TypeBackup.
func (b *Backup) Type() task.Type {
	return task.TypeBackup
}

// Execute performs the copy. Two runs within the same second get distinct
// directories.
func (b *Backup) Execute(_ context.Context, t task.Task) (string, error) {
	src := t.SourceDir
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("source directory %s does not exist", src)
	}

	if err := os.MkdirAll(t.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	dst, err := claimBackupDir(t.BackupDir, b.now().Format(backupTimeLayout), info.Mode().Perm())
	if err != nil {
		return "", err
	}

	if err := copyTree(src, dst); err != nil {
		return "", fmt.Errorf("copy %s: %w", src, err)
	}

	return fmt.Sprintf("Backup completed: %s -> %s", src, dst), nil
}

// claimBackupDir creates backup_<stamp>, or backup_<stamp>_N for the first
// free N.
func claimBackupDir(root, stamp string, perm fs.FileMode) (string, error) {
	base := filepath.Join(root, "backup_"+stamp)
	for i := 0; ; i++ {
		dir := base
		if i > 0 {
			dir = fmt.Sprintf("%s_%d", base, i)
		}
		err := os.Mkdir(dir, perm|0700)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}
}

// copyTree copies the contents of src into the existing directory dst.
// Modes and modification times are preserved; symlinks are recreated.
func copyTree(src, dst string) error {
	type dirMeta struct {
		path string
		perm fs.FileMode
		mod  time.Time
	}
	var dirs []dirMeta

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if rel != "." {
				if err := os.Mkdir(target, info.Mode().Perm()|0700); err != nil {
					return err
				}
			}
			dirs = append(dirs, dirMeta{path: target, perm: info.Mode().Perm(), mod: info.ModTime()})
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info)
		default:
			return nil
		}
	})
	if err != nil {
		return err
	}

	// Directory metadata is applied last, deepest first, once nothing else
	// is written into them.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := os.Chmod(d.path, d.perm); err != nil {
			return err
		}
		if err := os.Chtimes(d.path, d.mod, d.mod); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
