package smack

import (
	"io/fs"
	"testing"
)

func TestLabelPrivateExecutable(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A"] = fs.ModeDir | 0755
	k.modes["/opt/apps/pkg.A/bin"] = 0755 // owner-execute regular file
	k.children["/opt/apps/pkg.A"] = []string{"bin"}

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A", Private, LabelExecs); err != nil {
		t.Fatalf("Label() error = %v", err)
	}

	label, _ := DeriveLabel("pkg.A")
	if got := k.xattrs["/opt/apps/pkg.A/bin"][xattrAccess]; got != label {
		t.Errorf("access label = %q, want %q", got, label)
	}
	if got := k.xattrs["/opt/apps/pkg.A/bin"][xattrExec]; got != label {
		t.Errorf("exec label = %q, want %q", got, label)
	}
	if _, ok := k.xattrs["/opt/apps/pkg.A"]; ok {
		t.Error("directory was labeled under LabelExecs predicate")
	}
}

func TestLabelPublicDirsTransmute(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A/shared"] = fs.ModeDir | 0755
	k.modes["/opt/apps/pkg.A/shared/file"] = 0644
	k.children["/opt/apps/pkg.A/shared"] = []string{"file"}

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A/shared", Public, LabelAll); err != nil {
		t.Fatalf("Label() error = %v", err)
	}

	if got := k.xattrs["/opt/apps/pkg.A/shared"][xattrAccess]; got != "User" {
		t.Errorf("dir access label = %q, want User", got)
	}
	if got := k.xattrs["/opt/apps/pkg.A/shared"][xattrTransmute]; got != transmuteValue {
		t.Errorf("dir transmute = %q, want %q", got, transmuteValue)
	}
	if _, ok := k.xattrs["/opt/apps/pkg.A/shared/file"][xattrTransmute]; ok {
		t.Error("transmute set on non-directory entry")
	}
}

func TestLabelPublicReadOnlyFloor(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A/ro"] = 0644

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A/ro", PublicReadOnly, LabelAll); err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if got := k.xattrs["/opt/apps/pkg.A/ro"][xattrAccess]; got != "_" {
		t.Errorf("access label = %q, want _", got)
	}
}

func TestLabelLinksToExecs(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A/link"] = fs.ModeSymlink
	k.symlink["/opt/apps/pkg.A/link"] = "/opt/apps/pkg.A/real"
	k.modes["/opt/apps/pkg.A/real"] = 0755

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A/link", Private, LabelLinksToExecs); err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if _, ok := k.xattrs["/opt/apps/pkg.A/link"][xattrExec]; !ok {
		t.Error("exec label not applied to symlink targeting an executable")
	}
}

func TestLabelLinksToExecsSkipsNonExecTarget(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A/link"] = fs.ModeSymlink
	k.symlink["/opt/apps/pkg.A/link"] = "/opt/apps/pkg.A/real"
	k.modes["/opt/apps/pkg.A/real"] = 0644 // not executable

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A/link", Private, LabelLinksToExecs); err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if _, ok := k.xattrs["/opt/apps/pkg.A/link"]; ok {
		t.Error("symlink to non-executable target was labeled")
	}
}

func TestLabelAllSkipsExecLabelOnNonExecSymlink(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A/link"] = fs.ModeSymlink
	k.symlink["/opt/apps/pkg.A/link"] = "/opt/apps/pkg.A/data"
	k.modes["/opt/apps/pkg.A/data"] = 0644 // not executable

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A/link", Private, LabelAll); err != nil {
		t.Fatalf("Label() error = %v", err)
	}

	label, _ := DeriveLabel("pkg.A")
	if got := k.xattrs["/opt/apps/pkg.A/link"][xattrAccess]; got != label {
		t.Errorf("access label = %q, want %q", got, label)
	}
	if _, ok := k.xattrs["/opt/apps/pkg.A/link"][xattrExec]; ok {
		t.Error("exec xattr applied to a symlink whose target is not executable")
	}
}

func TestLabelAllSetsExecLabelOnExecSymlink(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A/link"] = fs.ModeSymlink
	k.symlink["/opt/apps/pkg.A/link"] = "/opt/apps/pkg.A/real"
	k.modes["/opt/apps/pkg.A/real"] = 0755

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A/link", Private, LabelAll); err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if _, ok := k.xattrs["/opt/apps/pkg.A/link"][xattrExec]; !ok {
		t.Error("exec xattr not applied to a symlink whose target is executable")
	}
}

func TestLabelAbortsOnXattrFailure(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.modes["/opt/apps/pkg.A/bin"] = 0755
	k.failXattr = "/opt/apps/pkg.A/bin"

	l := &Labeler{k: k}
	if err := l.Label("pkg.A", "/opt/apps/pkg.A/bin", Private, LabelAll); err == nil {
		t.Fatal("Label() error = nil, want failure propagated from lsetxattr")
	}
}
