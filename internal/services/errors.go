// Package services defines the business logic for repository registration,
// chat bindings, and webhook fanout. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Validation and conflict errors never reach a transport as faults: the
// services fold them into result values (RegisterResult, BindResult,
// UnbindResult) and keep the error only as the reason. Translation into
// user-facing text or HTTP status codes happens at the handler/bot layer.
package services

import "errors"

// Registration errors.
var (
	// ErrValidation is returned when name or url is missing after trimming.
	ErrValidation = errors.New("name and url are required")

	// ErrInvalidURL is returned when url is not https?://host.tld/owner/repo.
	ErrInvalidURL = errors.New("url must look like https://gitlab.example.com/owner/repo")

	// ErrUnreachable is returned when the repository page answered with a
	// non-success status.
	ErrUnreachable = errors.New("repository page is not reachable")

	// ErrNotGitLab is returned when the fetched page carries no GitLab marker.
	ErrNotGitLab = errors.New("url does not point at a GitLab instance")

	// ErrRepositoryExists is returned when the URL was registered before.
	ErrRepositoryExists = errors.New("repository already registered")
)

// Webhook errors.
var (
	// ErrBadToken is returned by the webhook dispatcher for unknown tokens.
	ErrBadToken = errors.New("bad token")

	// ErrInvalidPayload is returned when the webhook body cannot be parsed.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)
