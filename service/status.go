package service

import (
	"errors"

	"git.ophivana.moe/security/privilegectl/privilegedb"
)

// Status is the reply status code space. SUCCESS is always zero so
// a zero-valued Status reads as success in both wire and log output.
type Status int32

const (
	StatusSuccess Status = iota
	StatusInputParam
	StatusNotPermitted
	StatusSimultaneousAccess
	StatusServerError
	StatusBadRequest
	StatusMemOperation
	StatusFileOperation
	StatusDbOperation
	StatusDbLabelTaken
	StatusDbQueryPrep
	StatusDbQueryBind
	StatusDbQueryStep
	StatusDbConnection
	StatusDbNoSuchApp
	StatusDbPermForbidden
)

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Status(?)"
}

var statusNames = [...]string{
	StatusSuccess:            "SUCCESS",
	StatusInputParam:         "INPUT_PARAM",
	StatusNotPermitted:       "NOT_PERMITTED",
	StatusSimultaneousAccess: "SIMULTANEOUS_ACCESS",
	StatusServerError:        "SERVER_ERROR",
	StatusBadRequest:         "BAD_REQUEST",
	StatusMemOperation:       "MEM_OPERATION",
	StatusFileOperation:      "FILE_OPERATION",
	StatusDbOperation:        "DB_OPERATION",
	StatusDbLabelTaken:       "DB_LABEL_TAKEN",
	StatusDbQueryPrep:        "DB_QUERY_PREP",
	StatusDbQueryBind:        "DB_QUERY_BIND",
	StatusDbQueryStep:        "DB_QUERY_STEP",
	StatusDbConnection:       "DB_CONNECTION",
	StatusDbNoSuchApp:        "DB_NO_SUCH_APP",
	StatusDbPermForbidden:    "DB_PERM_FORBIDDEN",
}

// StatusError pairs a reply status with the error that produced it. It
// implements message.MessageError so the server logs the full error while
// the client only ever sees the status code.
type StatusError struct {
	Status Status
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return e.Status.String()
	}
	return e.Status.String() + ": " + e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) Message() string { return e.Status.String() }

func statusErr(status Status, err error) *StatusError {
	return &StatusError{Status: status, Err: err}
}

// toStatus maps an arbitrary operation error to a reply status. A
// *StatusError passes its status through unchanged; a *privilegedb.DbInternal
// becomes DB_OPERATION; anything else is an unclassified SERVER_ERROR.
func toStatus(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	var dbe *privilegedb.DbInternal
	if errors.As(err, &dbe) {
		return StatusDbOperation
	}
	return StatusServerError
}
