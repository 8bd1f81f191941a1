package privilegedb

// queryID enumerates the facade's prepared statements, mirroring the
// source's TQueryType/Queries map: every query is keyed by an id rather than
// inlined at the call site, so statements are prepared once and reused.
type queryID int

const (
	queryPkgIDExists queryID = iota
	queryApplicationExists
	queryInsertApplication
	queryDeleteApplication
	queryCountApplicationsForPkg
	queryDeletePermissionsForApp
	queryGetAppPermissions
	queryInsertPermission
	queryDeletePermission
	queryAllPermissions
	queryAppsWithPermission
)

var queryText = map[queryID]string{
	queryPkgIDExists:             `SELECT 1 FROM application WHERE pkg_id = ? LIMIT 1`,
	queryApplicationExists:       `SELECT 1 FROM application WHERE app_id = ? AND pkg_id = ? LIMIT 1`,
	queryInsertApplication:       `INSERT OR IGNORE INTO application (app_id, pkg_id) VALUES (?, ?)`,
	queryDeleteApplication:       `DELETE FROM application WHERE app_id = ? AND pkg_id = ?`,
	queryCountApplicationsForPkg: `SELECT COUNT(*) FROM application WHERE pkg_id = ?`,
	queryDeletePermissionsForApp: `DELETE FROM app_permission WHERE app_id = ? AND pkg_id = ?`,
	queryGetAppPermissions:       `SELECT permission FROM app_permission WHERE app_id = ? AND pkg_id = ? AND app_type = ?`,
	queryInsertPermission:        `INSERT OR IGNORE INTO app_permission (app_id, pkg_id, app_type, permission) VALUES (?, ?, ?, ?)`,
	queryDeletePermission:        `DELETE FROM app_permission WHERE app_id = ? AND pkg_id = ? AND app_type = ? AND permission = ?`,
	queryAllPermissions:          `SELECT DISTINCT permission FROM app_permission WHERE app_type = ?`,
	queryAppsWithPermission:      `SELECT DISTINCT app_id FROM app_permission WHERE app_type = ? AND permission = ?`,
}

// schema creates the two relations the facade operates over. Schema
// migration is out of scope, so this statement only runs CREATE TABLE IF
// NOT EXISTS, leaving an externally provisioned database with the same
// shape untouched.
const schema = `
CREATE TABLE IF NOT EXISTS application (
	app_id TEXT NOT NULL,
	pkg_id TEXT NOT NULL,
	PRIMARY KEY (app_id, pkg_id)
);

CREATE TABLE IF NOT EXISTS app_permission (
	app_id     TEXT NOT NULL,
	pkg_id     TEXT NOT NULL,
	app_type   INTEGER NOT NULL,
	permission TEXT NOT NULL,
	PRIMARY KEY (app_id, pkg_id, app_type, permission),
	FOREIGN KEY (app_id, pkg_id) REFERENCES application(app_id, pkg_id)
);
`
