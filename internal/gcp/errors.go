package gcpinternal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charles-forsyth/skywalker/internal"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ------------------------------
// Common GCP API Error Types
// ------------------------------
var (
	ErrAPINotEnabled    = errors.New("API not enabled")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("resource not found")
	ErrRateLimited      = errors.New("rate limited")
)

// ParseGCPError converts raw GCP API errors into the standardized error types
// above. All walkers route their errors through this so callers can make
// continue/stop decisions with errors.Is instead of string matching.
// Handles both REST API errors (googleapi.Error) and gRPC status errors.
func ParseGCPError(err error, apiName string) error {
	if err == nil {
		return nil
	}

	// gRPC status errors (asset, monitoring, resourcemanager, aiplatform)
	if grpcStatus, ok := status.FromError(err); ok && grpcStatus.Code() != codes.Unknown {
		errStr := err.Error()

		switch grpcStatus.Code() {
		case codes.PermissionDenied:
			if strings.Contains(errStr, "SERVICE_DISABLED") {
				return fmt.Errorf("%w: %s", ErrAPINotEnabled, apiName)
			}
			if strings.Contains(errStr, "requires a quota project") {
				return fmt.Errorf("%w: %s (set a quota project with: gcloud auth application-default set-quota-project PROJECT_ID)", ErrAPINotEnabled, apiName)
			}
			return ErrPermissionDenied

		case codes.NotFound:
			return ErrNotFound

		case codes.Unauthenticated:
			return fmt.Errorf("authentication failed, check credentials")

		case codes.ResourceExhausted:
			return ErrRateLimited

		case codes.Unavailable, codes.Internal:
			return fmt.Errorf("GCP service error: %s", grpcStatus.Message())

		case codes.InvalidArgument:
			return fmt.Errorf("bad request: %s", grpcStatus.Message())

		case codes.Canceled, codes.DeadlineExceeded:
			return context.Canceled
		}

		return fmt.Errorf("gRPC error (%s): %s", grpcStatus.Code().String(), grpcStatus.Message())
	}

	// REST API errors (compute, sqladmin, container, run, file, iam, notebooks)
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		errStr := googleErr.Error()

		switch googleErr.Code {
		case 403:
			if strings.Contains(errStr, "SERVICE_DISABLED") || strings.Contains(errStr, "has not been used") {
				return fmt.Errorf("%w: %s", ErrAPINotEnabled, apiName)
			}
			return ErrPermissionDenied

		case 404:
			return ErrNotFound

		case 400:
			return fmt.Errorf("bad request: %s", googleErr.Message)

		case 429:
			return ErrRateLimited

		case 500, 502, 503, 504:
			return fmt.Errorf("GCP service error (code %d)", googleErr.Code)
		}

		return fmt.Errorf("API error (code %d): %s", googleErr.Code, googleErr.Message)
	}

	// Fallback: common patterns in wrapped or transport-level errors
	errStr := err.Error()
	if strings.Contains(errStr, "SERVICE_DISABLED") {
		return fmt.Errorf("%w: %s", ErrAPINotEnabled, apiName)
	}
	if strings.Contains(errStr, "requires a quota project") {
		return fmt.Errorf("%w: %s (set a quota project with: gcloud auth application-default set-quota-project PROJECT_ID)", ErrAPINotEnabled, apiName)
	}
	if strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied") {
		return ErrPermissionDenied
	}

	return err
}

// IsPermissionDenied checks if an error is a permission denied error
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsAPINotEnabled checks if an error is an API not enabled error
func IsAPINotEnabled(err error) bool {
	return errors.Is(err, ErrAPINotEnabled)
}

// IsRetryable reports whether a parsed error is worth retrying.
// Auth and permission failures are permanent for the life of a scan.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrAPINotEnabled) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	return strings.Contains(err.Error(), "GCP service error")
}

// HandleGCPError logs an appropriate message for a GCP API error and returns
// true if the caller should continue with other resources.
func HandleGCPError(err error, logger internal.Logger, moduleName string, resourceDesc string) bool {
	if err == nil {
		return true
	}

	parsedErr := ParseGCPError(err, "")

	switch {
	case errors.Is(parsedErr, ErrAPINotEnabled):
		logger.WarnM(fmt.Sprintf("%s - API not enabled", resourceDesc), moduleName)
		return false

	case errors.Is(parsedErr, ErrPermissionDenied):
		logger.WarnM(fmt.Sprintf("%s - permission denied", resourceDesc), moduleName)
		return true

	case errors.Is(parsedErr, ErrNotFound):
		// Expected when probing speculative zones, not worth logging
		return true

	case errors.Is(parsedErr, context.Canceled):
		return false

	default:
		logger.WarnM(fmt.Sprintf("%s - %v", resourceDesc, parsedErr), moduleName)
		return true
	}
}
