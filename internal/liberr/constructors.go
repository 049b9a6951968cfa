package liberr

import "fmt"

// BackendUnavailable reports that a catalog backend could not be reached.
// Transient: callers may retry with backoff.
func BackendUnavailable(backend string, cause error) *Error {
	e := Wrap(cause, CategoryBackend, SeverityError, fmt.Sprintf("backend %s unavailable", backend))
	e.Retryable = true
	return e.WithContext("backend", backend)
}

// CollectionNotFound reports that a collection selector matched nothing.
// A configuration problem: fatal for that collection only, never retried.
func CollectionNotFound(backend, selector string) *Error {
	e := New(CategoryConfig, SeverityError, fmt.Sprintf("collection %q not found on backend %s", selector, backend))
	return e.WithContext("backend", backend).WithContext("selector", selector)
}

// EmptyPool reports that a notify run has no candidate entries to pick from.
func EmptyPool(reason string) *Error {
	return New(CategorySelection, SeverityFatal, "selection pool is empty: "+reason)
}

// DeliveryFailed reports a transport error while sending a notification.
// Non-fatal for the run; the sent log is left untouched so the entry is
// picked again on a later run.
func DeliveryFailed(recipient string, cause error) *Error {
	e := Wrap(cause, CategoryMail, SeverityWarning, "delivery to "+recipient+" failed")
	e.Retryable = true
	return e.WithContext("recipient", recipient)
}

// CommitFailed reports that staging or committing generated output failed.
// Always fatal: generated output would otherwise be lost silently.
func CommitFailed(cause error) *Error {
	return Wrap(cause, CategoryGit, SeverityFatal, "commit of generated output failed")
}
