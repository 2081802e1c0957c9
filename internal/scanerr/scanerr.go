// Package scanerr defines the failure taxonomy shared by the scan pipeline.
//
// Recoverable attempt failures (LaunchError, NavigationError, AuditEngineError)
// are retried by the executor. ResourceCleanupError and StorageError are logged
// by their owners and never change the outcome of an otherwise successful scan.
package scanerr

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing scan URL. It never reaches
// the orchestrator.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return "Invalid URL"
	}
	return "Invalid URL: " + e.Reason
}

// LaunchError reports a failure to start a browser or open a page.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string { return fmt.Sprintf("browser launch: %v", e.Err) }
func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError reports a non-success status or a timeout while loading the page.
type NavigationError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigate %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// AuditEngineError reports a failed audit invocation.
type AuditEngineError struct {
	URL string
	Err error
}

func (e *AuditEngineError) Error() string { return fmt.Sprintf("audit %s: %v", e.URL, e.Err) }
func (e *AuditEngineError) Unwrap() error { return e.Err }

// ResourceCleanupError reports a failure while closing a page or browser.
type ResourceCleanupError struct {
	Resource string
	Err      error
}

func (e *ResourceCleanupError) Error() string {
	return fmt.Sprintf("close %s: %v", e.Resource, e.Err)
}

func (e *ResourceCleanupError) Unwrap() error { return e.Err }

// StorageError reports a cache read, write or connect failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ScanExhaustedError is returned once every attempt of a scan has failed.
// Its message carries the last underlying error.
type ScanExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ScanExhaustedError) Error() string {
	return fmt.Sprintf("scan of %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ScanExhaustedError) Unwrap() error { return e.Err }

// ScanError is the orchestrator-level failure returned by ScanURL.
type ScanError struct {
	URL string
	Err error
}

func (e *ScanError) Error() string { return e.Err.Error() }
func (e *ScanError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a recoverable attempt failure.
// Cancellation of the surrounding context is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var (
		launchErr *LaunchError
		navErr    *NavigationError
		auditErr  *AuditEngineError
	)
	return errors.As(err, &launchErr) || errors.As(err, &navErr) || errors.As(err, &auditErr)
}
