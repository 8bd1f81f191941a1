package smack

import "testing"

func TestTokenizeRule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rule string
		ok   bool
	}{
		{"~APP~ _ rx", true},
		{"~APP~\t_\trx", true},
		{"~APP~  _   rx  ", true},
		{"~APP~ _ rx extra", false},
		{"~APP~ _", false},
		{"", false},
	}

	for _, c := range cases {
		_, err := tokenizeRule(c.rule)
		if (err == nil) != c.ok {
			t.Errorf("tokenizeRule(%q) error = %v, want ok=%v", c.rule, err, c.ok)
		}
	}
}

func TestDeriveLabel(t *testing.T) {
	t.Parallel()

	l1, err := DeriveLabel("pkg.A")
	if err != nil {
		t.Fatal(err)
	}
	l2, err := DeriveLabel("pkg.A")
	if err != nil {
		t.Fatal(err)
	}
	if l1 != l2 {
		t.Errorf("DeriveLabel not deterministic: %q != %q", l1, l2)
	}

	l3, _ := DeriveLabel("pkg.B")
	if l1 == l3 {
		t.Errorf("DeriveLabel(pkg.A) == DeriveLabel(pkg.B): %q", l1)
	}

	if _, err := DeriveLabel("   "); err == nil {
		t.Error("DeriveLabel(whitespace) error = nil, want failure")
	}

	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	l4, err := DeriveLabel(long)
	if err != nil {
		t.Fatal(err)
	}
	if len(l4) > LabelLen {
		t.Errorf("DeriveLabel result length %d exceeds LabelLen %d", len(l4), LabelLen)
	}
}

func TestExpandTemplate(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.files["/etc/smack/app-rules-template.smack"] = "~APP~ _ rx\n_ ~APP~ w\n"
	rs := &RuleSet{k: k}

	if err := ExpandTemplate(rs, "/etc/smack/app-rules-template.smack", "pkg.A"); err != nil {
		t.Fatalf("ExpandTemplate() error = %v", err)
	}

	label, _ := DeriveLabel("pkg.A")
	rules := rs.Rules()
	if len(rules) != 2 {
		t.Fatalf("Rules() = %d, want 2", len(rules))
	}

	var sawSubject, sawObject bool
	for _, r := range rules {
		if r.Subject == label && r.Object == "_" && r.Access == "rx" {
			sawSubject = true
		}
		if r.Subject == "_" && r.Object == label && r.Access == "w" {
			sawObject = true
		}
	}
	if !sawSubject || !sawObject {
		t.Errorf("expanded rules = %+v", rules)
	}
}

func TestExpandTemplateRejectsDoublePlaceholder(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.files["/etc/smack/app-rules-template.smack"] = "~APP~ ~APP~ rwx\n"
	rs := &RuleSet{k: k}

	if err := ExpandTemplate(rs, "/etc/smack/app-rules-template.smack", "pkg.A"); err == nil {
		t.Fatal("ExpandTemplate() error = nil, want rejection of double placeholder")
	}
	if len(rs.Rules()) != 0 {
		t.Error("ExpandTemplate() added rules despite rejecting the template")
	}
}

func TestExpandTemplateRejectsNoPlaceholder(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.files["/etc/smack/app-rules-template.smack"] = "_ _ rwx\n"
	rs := &RuleSet{k: k}

	if err := ExpandTemplate(rs, "/etc/smack/app-rules-template.smack", "pkg.A"); err == nil {
		t.Fatal("ExpandTemplate() error = nil, want rejection of missing placeholder")
	}
}

func TestExpandTemplateRejectsExtraTokens(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	k.files["/etc/smack/app-rules-template.smack"] = "~APP~ _ rwx extra\n"
	rs := &RuleSet{k: k}

	if err := ExpandTemplate(rs, "/etc/smack/app-rules-template.smack", "pkg.A"); err == nil {
		t.Fatal("ExpandTemplate() error = nil, want rejection of extra tokens")
	}
}
