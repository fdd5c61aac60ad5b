// Package resolver - errors.go defines the deployment error taxonomy.
package resolver

import "fmt"

// ErrorKind classifies a deployment failure.
type ErrorKind string

const (
	// ErrConfiguration marks a malformed or self-contradictory document:
	// unknown network reference, duplicate host port, invalid volume
	// path. Configuration errors are always detected before any instance
	// is created.
	ErrConfiguration ErrorKind = "ConfigurationError"

	// ErrInvalidDeviceReservation marks a GPU reservation with an empty
	// device index set, or one incompatible with the visible-device
	// environment variable.
	ErrInvalidDeviceReservation ErrorKind = "InvalidDeviceReservation"

	// ErrResourceUnavailable marks a host that cannot satisfy a device
	// or port claim at instantiation time. Reported by the host runtime.
	ErrResourceUnavailable ErrorKind = "ResourceUnavailableError"

	// ErrImageResolution marks a referenced image that cannot be
	// obtained. Reported by the host runtime.
	ErrImageResolution ErrorKind = "ImageResolutionError"

	// ErrRuntimeStartup marks a process that exits before becoming
	// ready. Reported by the host runtime.
	ErrRuntimeStartup ErrorKind = "RuntimeStartupError"
)

// ServiceError ties a violated constraint to the service that violated it.
//
// Every failure surfaces the offending service's name and the constraint;
// nothing is silently swallowed. Configuration errors carry per-service
// granularity so unaffected services in the same document still resolve.
type ServiceError struct {
	// Service is the name of the offending service.
	Service string

	// Kind classifies the failure.
	Kind ErrorKind

	// Constraint describes the violated constraint.
	Constraint string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: service %q: %s: %v", e.Kind, e.Service, e.Constraint, e.Cause)
	}
	return fmt.Sprintf("%s: service %q: %s", e.Kind, e.Service, e.Constraint)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// configErr builds a ConfigurationError for a service.
func configErr(service, format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Service:    service,
		Kind:       ErrConfiguration,
		Constraint: fmt.Sprintf(format, args...),
	}
}

// deviceErr builds an InvalidDeviceReservation error for a service.
func deviceErr(service, format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Service:    service,
		Kind:       ErrInvalidDeviceReservation,
		Constraint: fmt.Sprintf(format, args...),
	}
}
