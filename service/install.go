package service

import (
	"errors"
	"os"
	"path/filepath"

	"git.ophivana.moe/security/privilegectl/smack"
)

// appInstall runs the install sub-flow: register the package, then expand
// and apply its SMACK rule template. Registration runs inside a database
// transaction that is rolled back on failure, so a failure partway through
// unwinds only what already ran. Once the database transaction has committed
// there is nothing left to roll back; a failure expanding or applying the
// rule template still reports SERVER_ERROR but leaves the registered
// application in place.
func (s *Server) appInstall(pkgID string, callerPid int32) error {
	if pkgID == "" {
		return statusErr(StatusInputParam, errors.New("empty pkg_id"))
	}

	if err := s.db.Begin(); err != nil {
		return statusErr(StatusServerError, err)
	}
	committed := false
	defer func() {
		if !committed {
			s.db.Rollback()
		}
	}()

	if _, err := s.db.AddApplication(pkgID, pkgID); err != nil {
		return statusErr(StatusServerError, err)
	}

	if err := s.db.Commit(); err != nil {
		return statusErr(StatusServerError, err)
	}
	committed = true

	rs := s.newRuleSet()
	if err := smack.ExpandTemplate(rs, s.cfg.TemplatePath, pkgID); err != nil {
		return statusErr(StatusServerError, err)
	}
	if !rs.Apply() {
		return statusErr(StatusServerError, errors.New("kernel refused SMACK rule load"))
	}
	if err := rs.SaveToFile(filepath.Join(s.cfg.RuleDir, pkgID)); err != nil {
		return statusErr(StatusServerError, err)
	}

	s.mu.Lock()
	s.appIdentity[callerPid] = pkgID
	s.mu.Unlock()
	return nil
}

// appUninstall reverses appInstall: clear the package's kernel rules, remove
// its persisted rule file, and delete its database rows. Rule removal is
// attempted even if it fails partway, since leaving a stale kernel rule is
// worse than a file-remove error the caller can retry.
func (s *Server) appUninstall(pkgID string) error {
	if pkgID == "" {
		return statusErr(StatusInputParam, errors.New("empty pkg_id"))
	}

	rulePath := filepath.Join(s.cfg.RuleDir, pkgID)
	rs := s.newRuleSet()
	if err := rs.LoadFromFile(rulePath); err == nil {
		rs.Clear()
	}
	if err := os.Remove(rulePath); err != nil && !os.IsNotExist(err) {
		return statusErr(StatusFileOperation, err)
	}

	if err := s.db.Begin(); err != nil {
		return statusErr(StatusServerError, err)
	}
	committed := false
	defer func() {
		if !committed {
			s.db.Rollback()
		}
	}()

	if _, err := s.db.RemoveApplication(pkgID, pkgID); err != nil {
		return statusErr(StatusServerError, err)
	}
	if err := s.db.Commit(); err != nil {
		return statusErr(StatusServerError, err)
	}
	committed = true
	return nil
}
