package consts

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInternalError = errors.New("internal error")
	ErrNotPermitted  = errors.New("operation not permitted")

	ErrDBNotFound                = errors.New("not found")
	ErrDBUniqueViolation         = errors.New("unique violation")
	ErrDBCommitTransactionFailed = errors.New("commit failed")
	ErrDBBeginTransactionFailed  = errors.New("start transaction failed")
	ErrDBQueryFailed             = errors.New("query failed")
	ErrDBInsertFailed            = errors.New("insert failed")
	ErrDBUpdateFailed            = errors.New("update failed")

	ErrScriptNotFound      = errors.New("sieve script not found")
	ErrScriptAlreadyExists = errors.New("sieve script already exists")
	ErrScriptIsActive      = errors.New("sieve script is active")

	ErrSerializationFailed = errors.New("serialization failed")
)
