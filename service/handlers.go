package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"git.ophivana.moe/security/privilegectl/smack"
)

// appWithPermission is one row of a GET_APPS_WITH_PERMISSION reply.
// IsPermanent has no backing column in the schema (the persistent flag
// passed to APP_ENABLE_PERMISSIONS is not retained) so it always reports
// true; see the grounding ledger for this scope cut.
type appWithPermission struct {
	AppID       string
	IsEnabled   bool
	IsPermanent bool
}

// setPermissions grants or revokes perms for (pkgID, appType), diffing
// against the persisted set via privilegedb.UpdatePermissions.
// persistent is accepted for wire compatibility with APP_ENABLE_PERMISSIONS
// but, like IsPermanent above, is not persisted.
func (s *Server) setPermissions(pkgID string, appType AppType, perms []string, enable, persistent bool) error {
	if pkgID == "" {
		return statusErr(StatusInputParam, errors.New("empty pkg_id"))
	}

	current, err := s.db.GetAppPermissions(pkgID, pkgID, int(appType))
	if err != nil {
		return err
	}

	var desired []string
	if enable {
		seen := map[string]bool{}
		for _, p := range current {
			seen[p] = true
		}
		desired = append(desired, current...)
		for _, p := range perms {
			if !seen[p] {
				desired = append(desired, p)
				seen[p] = true
			}
		}
	} else {
		drop := map[string]bool{}
		for _, p := range perms {
			drop[p] = true
		}
		for _, p := range current {
			if !drop[p] {
				desired = append(desired, p)
			}
		}
	}

	_, _, err = s.db.UpdatePermissions(pkgID, pkgID, int(appType), desired)
	return err
}

// revokeAllPermissions clears every WGT-type permission for pkgID.
// APP_REVOKE_PERMISSIONS and APP_RESET_PERMISSIONS both reduce to replacing
// the desired set with empty.
func (s *Server) revokeAllPermissions(pkgID string) error {
	if pkgID == "" {
		return statusErr(StatusInputParam, errors.New("empty pkg_id"))
	}
	_, _, err := s.db.UpdatePermissions(pkgID, pkgID, int(AppTypeWGT), nil)
	return err
}

func toSmackPathType(pt PathType) (smack.PathType, error) {
	switch pt {
	case PathTypePrivate:
		return smack.Private, nil
	case PathTypePublic:
		return smack.Public, nil
	case PathTypePublicReadOnly:
		return smack.PublicReadOnly, nil
	default:
		return 0, errors.New("unknown app path type")
	}
}

// setupPath labels root according to pt's policy and records it so
// APP_GET_PATHS can answer later.
func (s *Server) setupPath(pkgID, root string, pt PathType) error {
	if pkgID == "" || root == "" {
		return statusErr(StatusInputParam, errors.New("empty pkg_id or path"))
	}
	smackPt, err := toSmackPathType(pt)
	if err != nil {
		return statusErr(StatusInputParam, err)
	}

	if err := s.labeler.Label(pkgID, root, smackPt, smack.LabelAll); err != nil {
		return statusErr(StatusFileOperation, err)
	}

	s.mu.Lock()
	s.appPaths[pkgID] = append(s.appPaths[pkgID], pathEntry{Path: root, Type: pt})
	s.mu.Unlock()
	return nil
}

// removePath drops path from every package's registered path list.
func (s *Server) removePath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pkgID, entries := range s.appPaths {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Path != path {
				filtered = append(filtered, e)
			}
		}
		s.appPaths[pkgID] = filtered
	}
	return nil
}

// parseRawRule splits a ready-made "subject object access" line, unlike
// smack.ExpandTemplate it performs no ~APP~ substitution: addAdditionalRules
// and addAPIFeature both carry rules the caller has already resolved to
// concrete labels.
func parseRawRule(line string) (subject, object, access string, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return "", "", "", errors.New("smack rule must have exactly 3 tokens")
	}
	return fields[0], fields[1], fields[2], nil
}

// addAdditionalRules appends extra rules to pkgID's persisted rule file and
// applies them immediately.
func (s *Server) addAdditionalRules(pkgID string, rules []string) error {
	if pkgID == "" {
		return statusErr(StatusInputParam, errors.New("empty pkg_id"))
	}
	return s.extendPackageRules(pkgID, rules)
}

// addFriend grants pkgID and friendPkgID mutual "rwxat" access (read, write,
// execute, append, transmute), the SMACK analogue of perm_app_add_friend.
func (s *Server) addFriend(pkgID, friendPkgID string) error {
	if pkgID == "" || friendPkgID == "" {
		return statusErr(StatusInputParam, errors.New("empty pkg_id"))
	}
	label, err := smack.DeriveLabel(pkgID)
	if err != nil {
		return statusErr(StatusInputParam, err)
	}
	friendLabel, err := smack.DeriveLabel(friendPkgID)
	if err != nil {
		return statusErr(StatusInputParam, err)
	}
	rules := []string{
		label + " " + friendLabel + " rwxat",
		friendLabel + " " + label + " rwxat",
	}
	return s.extendPackageRules(pkgID, rules)
}

// extendPackageRules loads pkgID's existing rule file (if any), adds each
// "subject object access" line, applies the combined set to the kernel, and
// persists it.
func (s *Server) extendPackageRules(pkgID string, rawRules []string) error {
	rulePath := filepath.Join(s.cfg.RuleDir, pkgID)
	rs := s.newRuleSet()
	if err := rs.LoadFromFile(rulePath); err != nil && !os.IsNotExist(err) {
		return statusErr(StatusFileOperation, err)
	}

	for _, line := range rawRules {
		subject, object, access, err := parseRawRule(line)
		if err != nil {
			return statusErr(StatusInputParam, err)
		}
		if !rs.Add(subject, object, access) {
			return statusErr(StatusInputParam, errors.New("rejected rule: "+line))
		}
	}

	if !rs.Apply() {
		return statusErr(StatusServerError, errors.New("kernel refused SMACK rule load"))
	}
	if err := rs.SaveToFile(rulePath); err != nil {
		return statusErr(StatusFileOperation, err)
	}
	return nil
}

// addAPIFeature registers a feature's SMACK rules under a feature-scoped
// rule file. db_gids is accepted for wire compatibility with
// perm_add_api_feature but has no corresponding table in this schema, so it
// is not persisted (see the grounding ledger).
func (s *Server) addAPIFeature(appType AppType, feature string, rules []string, _ []uint32) error {
	if feature == "" {
		return statusErr(StatusInputParam, errors.New("empty feature name"))
	}
	return s.extendPackageRules("feature-"+feature, rules)
}

// appIDFromPid resolves the app identity most recently established by pid
// via a successful APP_INSTALL.
func (s *Server) appIDFromPid(pid int32) (string, error) {
	s.mu.Lock()
	appID, ok := s.appIdentity[pid]
	s.mu.Unlock()
	if !ok {
		return "", statusErr(StatusDbNoSuchApp, errors.New("no application identity registered for pid"))
	}
	return appID, nil
}

func (s *Server) appHasPermission(pkgID string, appType AppType, perm string) (bool, error) {
	perms, err := s.db.GetAppPermissions(pkgID, pkgID, int(appType))
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

func (s *Server) getAllPermissions(appType AppType) ([]string, error) {
	return s.db.AllPermissions(int(appType))
}

func (s *Server) getAppsWithPermission(appType AppType, perm string) ([]appWithPermission, error) {
	apps, err := s.db.AppsWithPermission(int(appType), perm)
	if err != nil {
		return nil, err
	}
	out := make([]appWithPermission, len(apps))
	for i, a := range apps {
		out[i] = appWithPermission{AppID: a, IsEnabled: true, IsPermanent: true}
	}
	return out, nil
}

func (s *Server) getAppPaths(pkgID string, pt PathType) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for _, e := range s.appPaths[pkgID] {
		if e.Type == pt {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}
