package wire

// Action is the unified request tag space (LibprivilegeControlAction in the
// original protocol). The split Modify space below uses the same integer
// values as the mutating subset; the split Get space is numbered from zero
// and maps onto the read-only subset by adding ActionAppIDFromSocket. Both
// convert to Action, so a single decoder table works for every interface
// flavor.
type Action int32

const (
	ActionAppSetPrivilege Action = iota
	ActionAppInstall
	ActionAppUninstall
	ActionAppEnablePermissions
	ActionAppDisablePermissions
	ActionAppSetupPermissions
	ActionAppRevokePermission
	ActionAppResetPermissions
	ActionAppRemovePath
	ActionAppSetupPath
	ActionAppAddFriend
	ActionAddAPIFeature
	ActionAddAdditionalRules
	ActionBegin
	ActionEnd
	ActionRollback

	// read-only actions, split onto the "get" interface
	ActionAppIDFromSocket
	ActionAppHasPermission
	ActionAppGetPermissions
	ActionGetPermissions
	ActionGetAppsWithPermission
	ActionAppGetPaths
)

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "Action(?)"
}

var actionNames = [...]string{
	ActionAppSetPrivilege:       "APP_SET_PRIVILEGE",
	ActionAppInstall:            "APP_INSTALL",
	ActionAppUninstall:          "APP_UNINSTALL",
	ActionAppEnablePermissions:  "APP_ENABLE_PERMISSIONS",
	ActionAppDisablePermissions: "APP_DISABLE_PERMISSIONS",
	ActionAppSetupPermissions:   "APP_SETUP_PERMISSIONS",
	ActionAppRevokePermission:   "APP_REVOKE_PERMISSION",
	ActionAppResetPermissions:   "APP_RESET_PERMISSIONS",
	ActionAppRemovePath:         "APP_REMOVE_PATH",
	ActionAppSetupPath:          "APP_SETUP_PATH",
	ActionAppAddFriend:          "APP_ADD_FRIEND",
	ActionAddAPIFeature:         "ADD_API_FEATURE",
	ActionAddAdditionalRules:    "ADD_ADDITIONAL_RULES",
	ActionBegin:                 "BEGIN",
	ActionEnd:                   "END",
	ActionRollback:              "ROLLBACK",
	ActionAppIDFromSocket:       "APP_ID_FROM_SOCKET",
	ActionAppHasPermission:      "APP_HAS_PERMISSION",
	ActionAppGetPermissions:     "APP_GET_PERMISSIONS",
	ActionGetPermissions:        "GET_PERMISSIONS",
	ActionGetAppsWithPermission: "GET_APPS_WITH_PERMISSION",
	ActionAppGetPaths:           "APP_GET_PATHS",
}

// IsMutating reports whether a is subject to the transaction gate. Begin is itself a mutating op per the state table.
func (a Action) IsMutating() bool {
	switch a {
	case ActionAppIDFromSocket, ActionAppHasPermission, ActionAppGetPermissions,
		ActionGetPermissions, ActionGetAppsWithPermission, ActionAppGetPaths:
		return false
	default:
		return true
	}
}

// RequiresCallerPid reports whether a frame for a carries a leading pid field
// requiring peer-credential authentication.
func (a Action) RequiresCallerPid() bool {
	return a != ActionAppIDFromSocket
}

// GetAction is the read-only action space of the split interface variant.
type GetAction int32

const (
	GetActionAppIDFromSocket GetAction = iota
	GetActionAppHasPermission
	GetActionAppGetPermissions
	GetActionGetPermissions
	GetActionGetAppsWithPermission
	GetActionAppGetPaths
)

// Action returns the unified Action equivalent to g.
func (g GetAction) Action() Action { return Action(int(g) + int(ActionAppIDFromSocket)) }

// ModifyAction is the mutating action space of the split interface variant.
type ModifyAction int32

const (
	ModifyActionAppSetPrivilege ModifyAction = iota
	ModifyActionAppInstall
	ModifyActionAppUninstall
	ModifyActionAppEnablePermissions
	ModifyActionAppDisablePermissions
	ModifyActionAppSetupPermissions
	ModifyActionAppRevokePermission
	ModifyActionAppResetPermissions
	ModifyActionAppRemovePath
	ModifyActionAppSetupPath
	ModifyActionAppAddFriend
	ModifyActionAddAPIFeature
	ModifyActionAddAdditionalRules
	ModifyActionBegin
	ModifyActionEnd
	ModifyActionRollback
)

// Action returns the unified Action equivalent to m.
func (m ModifyAction) Action() Action { return Action(int(m)) }

// InterfaceID identifies which logical endpoint a connection belongs to,
// assigned at accept time.
type InterfaceID uint8

const (
	// InterfaceUnified decodes frames as Action directly.
	InterfaceUnified InterfaceID = iota
	// InterfaceGet decodes frames as GetAction; read-only socket.
	InterfaceGet
	// InterfaceModify decodes frames as ModifyAction; read/write socket.
	InterfaceModify
)
