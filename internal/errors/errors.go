package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Credential errors

// ErrAccountNotFound means no token bundle exists for the advertiser.
// The caller has to route the user to the authorization flow.
type ErrAccountNotFound struct {
	AccountID string
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account not found: %s (run authorize first)", e.AccountID)
}

// ErrReauthorizationRequired means both the access and the refresh window elapsed.
type ErrReauthorizationRequired struct {
	AccountID   string
	AccountName string
}

func (e *ErrReauthorizationRequired) Error() string {
	name := e.AccountName
	if name == "" {
		name = e.AccountID
	}
	return fmt.Sprintf("authorization for account %s has fully expired, please authorize again", name)
}

type ErrRefreshFailed struct {
	AccountID string
	Err       error
}

func (e *ErrRefreshFailed) Error() string {
	return fmt.Sprintf("token refresh failed for account %s: %v", e.AccountID, e.Err)
}

func (e *ErrRefreshFailed) Unwrap() error {
	return e.Err
}

// Sync errors

type ErrTableResolution struct {
	AccountID string
	Err       error
}

func (e *ErrTableResolution) Error() string {
	return fmt.Sprintf("no table for account %s: %v", e.AccountID, e.Err)
}

func (e *ErrTableResolution) Unwrap() error {
	return e.Err
}

// ErrRemoteWrite carries the remote message verbatim for operator diagnosis.
type ErrRemoteWrite struct {
	TableID string
	Message string
	Err     error
}

func (e *ErrRemoteWrite) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("write to table %s rejected: %s", e.TableID, e.Message)
	}
	return fmt.Sprintf("write to table %s failed: %v", e.TableID, e.Err)
}

func (e *ErrRemoteWrite) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

type ErrFileWrite struct {
	Path string
	Err  error
}

func (e *ErrFileWrite) Error() string {
	return fmt.Sprintf("failed to write file %s: %v", e.Path, e.Err)
}

func (e *ErrFileWrite) Unwrap() error {
	return e.Err
}
