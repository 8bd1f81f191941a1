package privilegedb

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Db is the exclusive owner of the SQL connection: no other component holds
// a *sql.DB to this file, mirroring PrivilegeDb's ownership of its
// SqlConnection pointer. A single connection is kept open (SetMaxOpenConns(1))
// since SQLite serializes writers anyway and the privilege service's
// transaction gate is the real coordination point above this layer.
type Db struct {
	conn *sql.DB
	path string

	mu    sync.Mutex
	tx    *sql.Tx
	stmts map[queryID]*sql.Stmt
}

// Open opens (creating if absent) the SQLite database at path and ensures
// its schema exists.
func Open(path string) (*Db, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, dbErr("open", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, dbErr("schema", err)
	}

	return &Db{conn: conn, path: path, stmts: map[queryID]*sql.Stmt{}}, nil
}

// Close releases the underlying connection and any cached statements.
func (d *Db) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, stmt := range d.stmts {
		stmt.Close()
	}
	return dbErr("close", d.conn.Close())
}

// Begin opens a transaction. Nesting is not supported: calling Begin while
// one is already open raises DbInternal.
func (d *Db) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx != nil {
		return dbErr("begin", fmt.Errorf("transaction already open"))
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return dbErr("begin", err)
	}
	d.tx = tx
	return nil
}

// Commit commits the open transaction. Calling Commit with no transaction
// open raises DbInternal.
func (d *Db) Commit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return dbErr("commit", fmt.Errorf("no transaction open"))
	}
	err := d.tx.Commit()
	d.tx = nil
	if err != nil {
		return dbErr("commit", err)
	}
	return nil
}

// Rollback rolls back the open transaction, if any. Unlike Commit/Begin,
// rolling back with no open transaction is a silent no-op, since callers use
// it as an unconditional cleanup step on every failure path.
func (d *Db) Rollback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return nil
	}
	err := d.tx.Rollback()
	d.tx = nil
	if err != nil {
		return dbErr("rollback", err)
	}
	return nil
}

// prepared returns the cached statement for id, preparing it against the
// connection on first use, and rebinding it to the open transaction (if any)
// via Tx.Stmt so every query runs inside the caller's transaction without
// re-preparing. A statement first needed while a transaction is open is
// prepared on that transaction and not cached, since the transaction holds
// the only connection.
func (d *Db) prepared(id queryID) (*sql.Stmt, error) {
	stmt, ok := d.stmts[id]
	if !ok {
		if d.tx != nil {
			return d.tx.Prepare(queryText[id])
		}
		var err error
		stmt, err = d.conn.Prepare(queryText[id])
		if err != nil {
			return nil, err
		}
		d.stmts[id] = stmt
	}
	if d.tx != nil {
		return d.tx.Stmt(stmt), nil
	}
	return stmt, nil
}

// PkgIDExists reports whether pkgID already has at least one registered
// application.
func (d *Db) PkgIDExists(pkgID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exists(queryPkgIDExists, pkgID)
}

func (d *Db) exists(id queryID, args ...any) (bool, error) {
	stmt, err := d.prepared(id)
	if err != nil {
		return false, dbErr(queryText[id], err)
	}
	var dummy int
	switch err := stmt.QueryRow(args...).Scan(&dummy); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, dbErr(queryText[id], err)
	}
}

// AddApplication registers (appID, pkgID), reporting whether pkgID had no
// prior applications.
func (d *Db) AddApplication(appID, pkgID string) (pkgIsNew bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pkgExisted, err := d.exists(queryPkgIDExists, pkgID)
	if err != nil {
		return false, err
	}

	stmt, err := d.prepared(queryInsertApplication)
	if err != nil {
		return false, dbErr(queryText[queryInsertApplication], err)
	}
	if _, err := stmt.Exec(appID, pkgID); err != nil {
		return false, dbErr(queryText[queryInsertApplication], err)
	}
	return !pkgExisted, nil
}

// RemoveApplication deletes (appID, pkgID) and its permissions, reporting
// whether pkgID has no applications left.
func (d *Db) RemoveApplication(appID, pkgID string) (pkgIsGone bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	permStmt, err := d.prepared(queryDeletePermissionsForApp)
	if err != nil {
		return false, dbErr(queryText[queryDeletePermissionsForApp], err)
	}
	if _, err := permStmt.Exec(appID, pkgID); err != nil {
		return false, dbErr(queryText[queryDeletePermissionsForApp], err)
	}

	appStmt, err := d.prepared(queryDeleteApplication)
	if err != nil {
		return false, dbErr(queryText[queryDeleteApplication], err)
	}
	if _, err := appStmt.Exec(appID, pkgID); err != nil {
		return false, dbErr(queryText[queryDeleteApplication], err)
	}

	countStmt, err := d.prepared(queryCountApplicationsForPkg)
	if err != nil {
		return false, dbErr(queryText[queryCountApplicationsForPkg], err)
	}
	var remaining int
	if err := countStmt.QueryRow(pkgID).Scan(&remaining); err != nil {
		return false, dbErr(queryText[queryCountApplicationsForPkg], err)
	}
	return remaining == 0, nil
}

// GetAppPermissions returns the permissions currently granted to
// (appID, pkgID, appType).
func (d *Db) GetAppPermissions(appID, pkgID string, appType int) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getAppPermissions(appID, pkgID, appType)
}

func (d *Db) getAppPermissions(appID, pkgID string, appType int) ([]string, error) {
	stmt, err := d.prepared(queryGetAppPermissions)
	if err != nil {
		return nil, dbErr(queryText[queryGetAppPermissions], err)
	}
	rows, err := stmt.Query(appID, pkgID, appType)
	if err != nil {
		return nil, dbErr(queryText[queryGetAppPermissions], err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, dbErr(queryText[queryGetAppPermissions], err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(queryText[queryGetAppPermissions], err)
	}
	return perms, nil
}

// UpdatePermissions replaces the permission set for (appID, pkgID, appType)
// with desired, returning the symmetric difference against the prior set.
// Not atomic across the diff unless the caller has already opened a
// surrounding transaction.
func (d *Db) UpdatePermissions(appID, pkgID string, appType int, desired []string) (added, removed []string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prior, err := d.getAppPermissions(appID, pkgID, appType)
	if err != nil {
		return nil, nil, err
	}

	priorSet := make(map[string]bool, len(prior))
	for _, p := range prior {
		priorSet[p] = true
	}
	desiredSet := make(map[string]bool, len(desired))
	for _, p := range desired {
		desiredSet[p] = true
	}

	insertStmt, err := d.prepared(queryInsertPermission)
	if err != nil {
		return nil, nil, dbErr(queryText[queryInsertPermission], err)
	}
	deleteStmt, err := d.prepared(queryDeletePermission)
	if err != nil {
		return nil, nil, dbErr(queryText[queryDeletePermission], err)
	}

	for _, p := range desired {
		if priorSet[p] {
			continue
		}
		if _, err := insertStmt.Exec(appID, pkgID, appType, p); err != nil {
			return nil, nil, dbErr(queryText[queryInsertPermission], err)
		}
		added = append(added, p)
	}
	for _, p := range prior {
		if desiredSet[p] {
			continue
		}
		if _, err := deleteStmt.Exec(appID, pkgID, appType, p); err != nil {
			return nil, nil, dbErr(queryText[queryDeletePermission], err)
		}
		removed = append(removed, p)
	}
	return added, removed, nil
}

// AllPermissions returns every distinct permission granted to any
// application of the given type.
func (d *Db) AllPermissions(appType int) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stmt, err := d.prepared(queryAllPermissions)
	if err != nil {
		return nil, dbErr(queryText[queryAllPermissions], err)
	}
	rows, err := stmt.Query(appType)
	if err != nil {
		return nil, dbErr(queryText[queryAllPermissions], err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, dbErr(queryText[queryAllPermissions], err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(queryText[queryAllPermissions], err)
	}
	return perms, nil
}

// AppsWithPermission returns the app ids of every application of the given
// type holding perm.
func (d *Db) AppsWithPermission(appType int, perm string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stmt, err := d.prepared(queryAppsWithPermission)
	if err != nil {
		return nil, dbErr(queryText[queryAppsWithPermission], err)
	}
	rows, err := stmt.Query(appType, perm)
	if err != nil {
		return nil, dbErr(queryText[queryAppsWithPermission], err)
	}
	defer rows.Close()

	var apps []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, dbErr(queryText[queryAppsWithPermission], err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(queryText[queryAppsWithPermission], err)
	}
	return apps, nil
}
