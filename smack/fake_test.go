package smack

import (
	"fmt"
	"io/fs"
	"os"
	"time"
)

// fakeKernel is a kernelDispatcher backed by in-memory fixtures and a rule
// log, so tests never touch the real SMACK LSM or filesystem.
type fakeKernel struct {
	files    map[string]string
	symlink  map[string]string
	modes    map[string]fs.FileMode
	children map[string][]string

	loaded []string
	xattrs map[string]map[string]string

	createdPath string
	tempPath    string
	removed     []string

	failLoad   bool
	failXattr  string // path on which lsetxattr fails
	failCreate bool
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		files:    map[string]string{},
		symlink:  map[string]string{},
		modes:    map[string]fs.FileMode{},
		children: map[string][]string{},
		xattrs:   map[string]map[string]string{},
	}
}

func (k *fakeKernel) loadRule(line string) error {
	if k.failLoad {
		return fmt.Errorf("fake: load2 write refused")
	}
	k.loaded = append(k.loaded, line)
	return nil
}

func (k *fakeKernel) lsetxattr(path, name, value string) error {
	if k.failXattr != "" && path == k.failXattr {
		return fmt.Errorf("fake: lsetxattr refused on %s", path)
	}
	m := k.xattrs[path]
	if m == nil {
		m = map[string]string{}
		k.xattrs[path] = m
	}
	m[name] = value
	return nil
}

type fakeFileInfo struct {
	name string
	mode fs.FileMode
	size int64
}

func (fi fakeFileInfo) Name() string       { return fi.name }
func (fi fakeFileInfo) Size() int64        { return fi.size }
func (fi fakeFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (fi fakeFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fakeFileInfo) Sys() any           { return nil }

func (k *fakeKernel) stat(path string) (fs.FileInfo, error) {
	if target, ok := k.symlink[path]; ok {
		return k.stat(target)
	}
	mode, ok := k.modes[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return fakeFileInfo{name: path, mode: mode, size: int64(len(k.files[path]))}, nil
}

func (k *fakeKernel) lstat(path string) (fs.FileInfo, error) {
	mode, ok := k.modes[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return fakeFileInfo{name: path, mode: mode, size: int64(len(k.files[path]))}, nil
}

func (k *fakeKernel) readdir(path string) ([]string, error) {
	return k.children[path], nil
}

func (k *fakeKernel) readlink(path string) (string, error) {
	target, ok := k.symlink[path]
	if !ok {
		return "", fmt.Errorf("fake: %s is not a symlink", path)
	}
	return target, nil
}

func (k *fakeKernel) open(path string) (*os.File, error) {
	content, ok := k.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return writeTempFile(content)
}

func (k *fakeKernel) create(path string, mode os.FileMode) (*os.File, error) {
	if k.failCreate {
		return nil, fmt.Errorf("fake: create refused")
	}
	f, err := os.CreateTemp("", "smacktest-*")
	if err != nil {
		return nil, err
	}
	k.createdPath = path
	k.tempPath = f.Name()
	return f, nil
}

func (k *fakeKernel) remove(path string) error {
	k.removed = append(k.removed, path)
	return nil
}

func writeTempFile(content string) (*os.File, error) {
	f, err := os.CreateTemp("", "smacktest-src-*")
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(content); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return f, nil
}
