package smack

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// kernelDispatcher provides the state-dependent system calls smack performs.
// Every method that actually touches the kernel or filesystem is unexported
// and reachable only through this interface, so tests substitute a fake
// instead of driving the real SMACK LSM and filesystem.
type kernelDispatcher interface {
	// loadRule writes a single rule line to the kernel's access table.
	loadRule(line string) error
	// lsetxattr sets xattr name on path to value.
	lsetxattr(path, name, value string) error
	// lstat reports file metadata without following a trailing symlink.
	lstat(path string) (fs.FileInfo, error)
	// stat reports file metadata, following symlinks.
	stat(path string) (fs.FileInfo, error)
	// readlink resolves a symlink target.
	readlink(path string) (string, error)
	// readdir lists the base names of path's directory entries.
	readdir(path string) ([]string, error)
	// open opens path for reading a rule or template file.
	open(path string) (*os.File, error)
	// create creates (or truncates) path at the given mode for writing rules.
	create(path string, mode os.FileMode) (*os.File, error)
	// remove removes path; used to clean up a partially written rule file.
	remove(path string) error
}

// direct implements kernelDispatcher against the real kernel.
type direct struct{}

// loadAccessPath is the smackfs control file accepting "subject object access"
// lines, mirroring smack_accesses_apply's use of /sys/fs/smackfs/load2.
const loadAccessPath = "/sys/fs/smackfs/load2"

func (direct) loadRule(line string) error {
	f, err := os.OpenFile(loadAccessPath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func (direct) lsetxattr(path, name, value string) error {
	return unix.Lsetxattr(path, name, []byte(value), 0)
}

func (direct) lstat(path string) (fs.FileInfo, error) { return os.Lstat(path) }
func (direct) stat(path string) (fs.FileInfo, error)  { return os.Stat(path) }
func (direct) readlink(path string) (string, error)   { return os.Readlink(path) }

func (direct) readdir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
func (direct) open(path string) (*os.File, error)      { return os.Open(path) }

func (direct) create(path string, mode os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
}

func (direct) remove(path string) error { return os.Remove(path) }
