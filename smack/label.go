package smack

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// PathType classifies an ApplicationPath for labeling policy.
type PathType int

const (
	Private PathType = iota
	Public
	PublicReadOnly
)

func (t PathType) String() string {
	switch t {
	case Private:
		return "PRIVATE"
	case Public:
		return "PUBLIC"
	case PublicReadOnly:
		return "PUBLIC_RO"
	default:
		return "PathType(?)"
	}
}

// xattr names written by the labeler.
const (
	xattrAccess    = "security.SMACK64"
	xattrTransmute = "security.SMACK64TRANSMUTE"
	xattrExec      = "security.SMACK64EXEC"
	xattrTizenExec = "security.TIZEN_EXEC_LABEL"
	transmuteValue = "TRUE"
)

// policy describes the labeling rules for one ApplicationPath type.
type policy struct {
	accessLabel       func(pkgLabel string) string
	transmuteOnDirs   bool
	execOnExecutables bool
	execOnLinkedExecs bool
}

var policies = map[PathType]policy{
	Private: {
		accessLabel:       func(pkgLabel string) string { return pkgLabel },
		transmuteOnDirs:   false,
		execOnExecutables: true,
		execOnLinkedExecs: true,
	},
	Public: {
		accessLabel:       func(string) string { return "User" },
		transmuteOnDirs:   true,
		execOnExecutables: false,
		execOnLinkedExecs: false,
	},
	PublicReadOnly: {
		accessLabel:       func(string) string { return "_" },
		transmuteOnDirs:   false,
		execOnExecutables: false,
		execOnLinkedExecs: false,
	},
}

// decision is the predicate outcome evaluated per directory entry.
type decision int

const (
	skip decision = iota
	label
	labelErr
)

// Predicate decides whether a directory entry should be labeled.
type Predicate func(path string, info fs.FileInfo, k kernelDispatcher) decision

// LabelAll always labels.
func LabelAll(string, fs.FileInfo, kernelDispatcher) decision { return label }

// LabelDirs labels only directories.
func LabelDirs(_ string, info fs.FileInfo, _ kernelDispatcher) decision {
	if info.IsDir() {
		return label
	}
	return skip
}

// isOwnerExecutable reports whether m has the owner-execute bit set.
func isOwnerExecutable(m fs.FileMode) bool { return m&0100 != 0 }

// LabelExecs labels regular files with the owner-execute bit set.
func LabelExecs(_ string, info fs.FileInfo, _ kernelDispatcher) decision {
	if info.Mode().IsRegular() && isOwnerExecutable(info.Mode()) {
		return label
	}
	return skip
}

// linksToExecutable follows the symlink at path and reports whether its
// target is a regular file with the owner-execute bit set. The target is
// resolved relative to path's directory when it is not itself absolute.
func linksToExecutable(path string, k kernelDispatcher) (bool, error) {
	target, err := k.readlink(path)
	if err != nil {
		return false, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	ti, err := k.stat(target)
	if err != nil {
		return false, err
	}
	return ti.Mode().IsRegular() && isOwnerExecutable(ti.Mode()), nil
}

// LabelLinksToExecs resolves a symlink's target; if it is a regular file with
// the owner-execute bit set it labels, otherwise it skips. Failure to resolve
// or stat the target is an error.
func LabelLinksToExecs(path string, info fs.FileInfo, k kernelDispatcher) decision {
	if info.Mode()&fs.ModeSymlink == 0 {
		return skip
	}
	execTarget, err := linksToExecutable(path, k)
	if err != nil {
		return labelErr
	}
	if execTarget {
		return label
	}
	return skip
}

// Labeler applies SMACK xattrs over a directory tree.
type Labeler struct {
	k kernelDispatcher
}

// NewLabeler returns a Labeler operating against the real kernel.
func NewLabeler() *Labeler { return &Labeler{k: direct{}} }

// Label walks root (physical, no-chdir, not following symlinks) and applies
// the path-type's policy to every entry matching pred. Any predicate error,
// walk error, failed stat, or lsetxattr failure aborts the entire operation;
// already-applied xattrs on earlier entries are not rolled back — the caller
// must treat root as left in an undefined labeling state.
//
// The walk itself goes through kernelDispatcher (lstat/readdir), not
// filepath.WalkDir directly against the OS, so it can be driven against a
// fake filesystem in tests without touching the real kernel.
func (l *Labeler) Label(pkgID, root string, pt PathType, pred Predicate) error {
	pol, ok := policies[pt]
	if !ok {
		return fmt.Errorf("smack: unknown path type %v", pt)
	}
	pkgLabel, err := DeriveLabel(pkgID)
	if err != nil {
		return err
	}
	accessLabel := pol.accessLabel(pkgLabel)

	var walk func(path string) error
	walk = func(path string) error {
		info, err := l.k.lstat(path)
		if err != nil {
			return fmt.Errorf("smack: stat %q: %w", path, err)
		}

		switch pred(path, info, l.k) {
		case labelErr:
			return fmt.Errorf("smack: predicate error at %q", path)
		case label:
			if err := l.k.lsetxattr(path, xattrAccess, accessLabel); err != nil {
				return fmt.Errorf("smack: set %s on %q: %w", xattrAccess, path, err)
			}

			if info.IsDir() && pol.transmuteOnDirs {
				if err := l.k.lsetxattr(path, xattrTransmute, transmuteValue); err != nil {
					return fmt.Errorf("smack: set %s on %q: %w", xattrTransmute, path, err)
				}
			}

			isExec := info.Mode().IsRegular() && isOwnerExecutable(info.Mode())
			isLinkToExec := false
			if pol.execOnLinkedExecs && info.Mode()&fs.ModeSymlink != 0 {
				resolved, err := linksToExecutable(path, l.k)
				if err != nil {
					return fmt.Errorf("smack: resolve link target of %q: %w", path, err)
				}
				isLinkToExec = resolved
			}
			if (isExec && pol.execOnExecutables) || isLinkToExec {
				if err := l.k.lsetxattr(path, xattrExec, pkgLabel); err != nil {
					return fmt.Errorf("smack: set %s on %q: %w", xattrExec, path, err)
				}
				if err := l.k.lsetxattr(path, xattrTizenExec, pkgLabel); err != nil {
					return fmt.Errorf("smack: set %s on %q: %w", xattrTizenExec, path, err)
				}
			}
		}

		if !info.IsDir() {
			return nil
		}

		children, err := l.k.readdir(path)
		if err != nil {
			return fmt.Errorf("smack: readdir %q: %w", path, err)
		}
		for _, name := range children {
			if err := walk(filepath.Join(path, name)); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(root)
}
