package service

import (
	"errors"

	"git.ophivana.moe/security/privilegectl/wire"
)

// AppType mirrors the native app_type_t enumeration. Only WGT
// (the widget/web-app packaging type the installer sub-flow targets) is
// exercised directly by this implementation; the others round-trip as plain
// integers through the database and rule layers.
type AppType int32

const (
	AppTypeOther AppType = iota
	AppTypeWGT
	AppTypeEFL
	AppTypeOSP
)

// PathType is the external app-path-type enumeration carried on the wire,
// translated to smack.PathType at the labeler boundary.
type PathType int32

const (
	PathTypePrivate PathType = iota
	PathTypePublic
	PathTypePublicReadOnly
)

var errUnknownAction = errors.New("unrecognized action code")

// decodeErr inspects the decode errors gathered for one request's fields. A
// nil-only set reports bad = false and execution continues. A non-nil error
// wrapping wire.ErrEmbeddedNUL or wire.ErrFieldTooLarge is a well-formed
// frame carrying a field the server refuses to honor: it gets a
// StatusMemOperation reply, keeping the connection open, matching
// MEM_OPERATION's role as the nearest analogue of a client-side marshalling
// failure. Any other decode error means the frame itself is malformed, so
// the reply is nil and the connection is closed.
func decodeErr(errs ...error) (reply []byte, bad bool) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, wire.ErrEmbeddedNUL) || errors.Is(err, wire.ErrFieldTooLarge) {
			return encodeStatusOnly(StatusMemOperation), true
		}
		return nil, true
	}
	return nil, false
}

// dispatch decodes, authenticates, gates, executes, and encodes the reply
// for a single frame payload. iface selects which action space the leading
// code is decoded from; peerPid is the kernel-reported PID of
// the connected socket, already verified by the caller.
func (s *Server) dispatch(payload []byte, iface wire.InterfaceID, peerPid int32) []byte {
	r := wire.NewReader(payload)

	action, err := decodeAction(r, iface)
	if err != nil {
		// malformed action code: closes the connection, not a reply.
		return nil
	}

	if action.RequiresCallerPid() {
		assertedPid, err := r.Pid()
		if err != nil {
			return nil
		}
		if assertedPid != peerPid {
			return encodeStatusOnly(StatusNotPermitted)
		}
	}

	if action.IsMutating() {
		ok, status := s.gate.admit(peerPid)
		if !ok {
			return encodeStatusOnly(status)
		}
	}

	return s.execute(action, r, peerPid)
}

func decodeAction(r *wire.Reader, iface wire.InterfaceID) (wire.Action, error) {
	code, err := r.Int32()
	if err != nil {
		return 0, err
	}
	switch iface {
	case wire.InterfaceGet:
		a := wire.GetAction(code).Action()
		if !validGetCode(code) {
			return 0, errUnknownAction
		}
		return a, nil
	case wire.InterfaceModify:
		a := wire.ModifyAction(code).Action()
		if !validModifyCode(code) {
			return 0, errUnknownAction
		}
		return a, nil
	default:
		if code < int32(wire.ActionAppSetPrivilege) || code > int32(wire.ActionAppGetPaths) {
			return 0, errUnknownAction
		}
		return wire.Action(code), nil
	}
}

func validGetCode(code int32) bool {
	return code >= int32(wire.GetActionAppIDFromSocket) && code <= int32(wire.GetActionAppGetPaths)
}

func validModifyCode(code int32) bool {
	return code >= int32(wire.ModifyActionAppSetPrivilege) && code <= int32(wire.ModifyActionRollback)
}

func encodeStatusOnly(status Status) []byte {
	w := wire.NewWriter()
	w.Int32(int32(status))
	return wire.AppendFrame(nil, w.Bytes())
}

// execute runs the handler for action and encodes its reply frame. A
// handler error is never propagated to the connection loop: it is mapped to
// a status and still produces a reply, keeping the connection open.
func (s *Server) execute(action wire.Action, r *wire.Reader, callerPid int32) []byte {
	w := wire.NewWriter()

	switch action {
	case wire.ActionAppInstall:
		pkgID, err := r.String()
		if reply, bad := decodeErr(err); bad {
			return reply
		}
		status := toStatus(s.appInstall(pkgID, callerPid))
		w.Int32(int32(status))

	case wire.ActionAppUninstall:
		pkgID, err := r.String()
		if reply, bad := decodeErr(err); bad {
			return reply
		}
		status := toStatus(s.appUninstall(pkgID))
		w.Int32(int32(status))

	case wire.ActionAppEnablePermissions:
		pkgID, err1 := r.String()
		appType, err2 := r.Int32()
		persistentRaw, err3 := r.Int32() // wire type is int, not a 1-byte bool
		perms, err4 := r.StringVector()
		if reply, bad := decodeErr(err1, err2, err3, err4); bad {
			return reply
		}
		status := toStatus(s.setPermissions(pkgID, AppType(appType), perms, true, persistentRaw != 0))
		w.Int32(int32(status))

	case wire.ActionAppDisablePermissions:
		pkgID, err1 := r.String()
		appType, err2 := r.Int32()
		perms, err3 := r.StringVector()
		if reply, bad := decodeErr(err1, err2, err3); bad {
			return reply
		}
		status := toStatus(s.setPermissions(pkgID, AppType(appType), perms, false, true))
		w.Int32(int32(status))

	case wire.ActionAppRevokePermission:
		pkgID, err := r.String()
		if reply, bad := decodeErr(err); bad {
			return reply
		}
		status := toStatus(s.revokeAllPermissions(pkgID))
		w.Int32(int32(status))

	case wire.ActionAppResetPermissions:
		pkgID, err := r.String()
		if reply, bad := decodeErr(err); bad {
			return reply
		}
		status := toStatus(s.revokeAllPermissions(pkgID))
		w.Int32(int32(status))

	case wire.ActionAppSetupPath:
		pkgID, err1 := r.String()
		path, err2 := r.String()
		appPathType, err3 := r.Int32()
		_, err4 := r.String() // optional, unused by the path labeler
		if reply, bad := decodeErr(err1, err2, err3, err4); bad {
			return reply
		}
		status := toStatus(s.setupPath(pkgID, path, PathType(appPathType)))
		w.Int32(int32(status))

	case wire.ActionAppRemovePath:
		_, err1 := r.String() // pkg_id
		path, err2 := r.String()
		if reply, bad := decodeErr(err1, err2); bad {
			return reply
		}
		status := toStatus(s.removePath(path))
		w.Int32(int32(status))

	case wire.ActionAddAPIFeature:
		appType, err1 := r.Int32()
		feature, err2 := r.String()
		rules, err3 := r.StringVector()
		gids, err4 := r.UintVector()
		if reply, bad := decodeErr(err1, err2, err3, err4); bad {
			return reply
		}
		status := toStatus(s.addAPIFeature(AppType(appType), feature, rules, gids))
		w.Int32(int32(status))

	case wire.ActionAddAdditionalRules:
		pkgID, err1 := r.String()
		rules, err2 := r.StringVector()
		if reply, bad := decodeErr(err1, err2); bad {
			return reply
		}
		status := toStatus(s.addAdditionalRules(pkgID, rules))
		w.Int32(int32(status))

	case wire.ActionAppAddFriend:
		pkgID, err1 := r.String()
		friendPkgID, err2 := r.String()
		if reply, bad := decodeErr(err1, err2); bad {
			return reply
		}
		status := toStatus(s.addFriend(pkgID, friendPkgID))
		w.Int32(int32(status))

	case wire.ActionAppSetPrivilege, wire.ActionAppSetupPermissions:
		pkgID, err1 := r.String()
		appType, err2 := r.Int32()
		perms, err3 := r.StringVector()
		if reply, bad := decodeErr(err1, err2, err3); bad {
			return reply
		}
		status := toStatus(s.setPermissions(pkgID, AppType(appType), perms, true, true))
		w.Int32(int32(status))

	case wire.ActionBegin:
		s.gate.open(callerPid)
		w.Int32(int32(StatusSuccess))

	case wire.ActionEnd:
		if !s.gate.isOwner(callerPid) {
			w.Int32(int32(StatusNotPermitted))
			break
		}
		s.gate.close()
		w.Int32(int32(StatusSuccess))

	case wire.ActionRollback:
		if !s.gate.isOwner(callerPid) {
			w.Int32(int32(StatusNotPermitted))
			break
		}
		s.db.Rollback()
		s.gate.close()
		w.Int32(int32(StatusSuccess))

	case wire.ActionAppIDFromSocket:
		_, err := r.Int32() // sockfd, not used: see appIDFromPid
		if reply, bad := decodeErr(err); bad {
			return reply
		}
		appID, err := s.appIDFromPid(callerPid)
		status := toStatus(err)
		w.Int32(int32(status))
		if status == StatusSuccess {
			w.String(appID)
		}

	case wire.ActionAppHasPermission:
		pkgID, err1 := r.String()
		appType, err2 := r.Int32()
		perm, err3 := r.String()
		if reply, bad := decodeErr(err1, err2, err3); bad {
			return reply
		}
		enabled, err := s.appHasPermission(pkgID, AppType(appType), perm)
		status := toStatus(err)
		w.Int32(int32(status))
		if status == StatusSuccess {
			w.Bool(enabled)
		}

	case wire.ActionAppGetPermissions:
		pkgID, err1 := r.String()
		appType, err2 := r.Int32()
		if reply, bad := decodeErr(err1, err2); bad {
			return reply
		}
		perms, err := s.db.GetAppPermissions(pkgID, pkgID, int(appType))
		status := toStatus(err)
		w.Int32(int32(status))
		if status == StatusSuccess {
			w.StringVector(perms)
		}

	case wire.ActionGetPermissions:
		appType, err := r.Int32()
		if reply, bad := decodeErr(err); bad {
			return reply
		}
		perms, err := s.getAllPermissions(AppType(appType))
		status := toStatus(err)
		w.Int32(int32(status))
		if status == StatusSuccess {
			w.StringVector(perms)
		}

	case wire.ActionGetAppsWithPermission:
		appType, err1 := r.Int32()
		perm, err2 := r.String()
		if reply, bad := decodeErr(err1, err2); bad {
			return reply
		}
		apps, err := s.getAppsWithPermission(AppType(appType), perm)
		status := toStatus(err)
		w.Int32(int32(status))
		if status == StatusSuccess {
			w.Size(uint32(len(apps)))
			for _, a := range apps {
				w.String(a.AppID)
				w.Bool(a.IsEnabled)
				w.Bool(a.IsPermanent)
			}
		}

	case wire.ActionAppGetPaths:
		pkgID, err1 := r.String()
		appPathType, err2 := r.Int32()
		if reply, bad := decodeErr(err1, err2); bad {
			return reply
		}
		paths, err := s.getAppPaths(pkgID, PathType(appPathType))
		status := toStatus(err)
		w.Int32(int32(status))
		if status == StatusSuccess {
			w.StringVector(paths)
		}

	default:
		w.Int32(int32(StatusBadRequest))
	}

	return wire.AppendFrame(nil, w.Bytes())
}
