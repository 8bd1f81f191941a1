package smack

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
)

// accessChars is the set of valid access mode characters.
const accessChars = "rwxatl"

// validAccess reports whether s is a non-empty subset of rwxatl.
func validAccess(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(accessChars, c) {
			return false
		}
	}
	return true
}

// Rule is a single SMACK access triple (GLOSSARY: SMACK rule).
type Rule struct {
	Subject, Object string
	Access          string
}

func (r Rule) line() string { return fmt.Sprintf("%s %s %s", r.Subject, r.Object, r.Access) }

// RuleSet is an owning handle accumulating SMACK rules, mirroring the
// original smack_accesses handle. Construct one with NewRuleSet: the zero
// value has no kernel dispatcher, so only Add and Rules work on it.
type RuleSet struct {
	rules []Rule
	k     kernelDispatcher
}

// NewRuleSet returns an empty RuleSet.
func NewRuleSet() *RuleSet { return &RuleSet{k: direct{}} }

// Add appends a triple to the set. permissions must be a non-empty subset of
// "rwxatl"; Add reports false and does not modify the set otherwise, mirroring
// smack_accesses_add's boolean return.
func (rs *RuleSet) Add(subject, object, permissions string) bool {
	if subject == "" || object == "" || !validAccess(permissions) {
		return false
	}
	rs.rules = append(rs.rules, Rule{subject, object, permissions})
	return true
}

// Rules returns a copy of the accumulated triples, sorted for deterministic
// output (SaveToFile, tests).
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		if out[i].Object != out[j].Object {
			return out[i].Object < out[j].Object
		}
		return out[i].Access < out[j].Access
	})
	return out
}

// Apply pushes the accumulated triples to the kernel. Failure of any single
// rule aborts with false; rules loaded before the failing one stay loaded,
// since there is no partial rollback (the original library offers none
// either).
func (rs *RuleSet) Apply() bool {
	for _, r := range rs.rules {
		if err := rs.k.loadRule(r.line()); err != nil {
			return false
		}
	}
	return true
}

// Clear revokes the accumulated triples from the kernel by reloading them
// with the access string "-", the kernel's convention for removing a rule.
func (rs *RuleSet) Clear() bool {
	for _, r := range rs.rules {
		if err := rs.k.loadRule(fmt.Sprintf("%s %s -", r.Subject, r.Object)); err != nil {
			return false
		}
	}
	return true
}

// SaveToFile writes the rules in the kernel's textual format: one
// "subject object access" line per rule. The file is created at mode 0644,
// truncating any existing file; on error the partial file is removed so no
// partial persistent state survives.
func (rs *RuleSet) SaveToFile(path string) (err error) {
	f, err := rs.k.create(path, 0644)
	if err != nil {
		return err
	}

	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			_ = rs.k.remove(path)
		}
	}()

	w := bufio.NewWriter(f)
	for _, r := range rs.Rules() {
		if _, err = w.WriteString(r.line() + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// LoadFromFile merges rules read from a kernel-format file into rs. Each
// non-empty line must tokenize into exactly three fields (subject, object,
// access); a malformed line fails the whole load, matching tokenizeRule's
// all-or-nothing contract in the original.
func (rs *RuleSet) LoadFromFile(path string) error {
	f, err := rs.k.open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var loaded []Rule
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens, err := tokenizeRule(line)
		if err != nil {
			return err
		}
		if !validAccess(tokens[2]) {
			return fmt.Errorf("smack: invalid access %q in rule %q", tokens[2], line)
		}
		loaded = append(loaded, Rule{tokens[0], tokens[1], tokens[2]})
	}
	if err := sc.Err(); err != nil {
		return err
	}

	rs.rules = append(rs.rules, loaded...)
	return nil
}
