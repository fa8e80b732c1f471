package iamclient

import (
	"errors"
	"fmt"

	"github.com/BerryBytes/awsorgctl/models"
	"github.com/aws/smithy-go"
)

// classify wraps err according to the engine's failure taxonomy. Throttles
// and timeouts become TransientRemoteError so the executor retries them;
// everything else passes through wrapped with the operation context.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded",
			"ServiceUnavailable", "RequestTimeout", "ServiceFailure":
			return &models.TransientRemoteError{Err: fmt.Errorf("%s: %w", operation, err)}
		}
	}
	return fmt.Errorf("failed during %s: %w", operation, err)
}

// isAlreadyExists reports whether err means the resource was created by a
// previous attempt. Creation calls treat it as success.
func isAlreadyExists(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "EntityAlreadyExists", "DuplicateSSHPublicKey":
			return true
		}
	}
	return false
}

// isNotFound reports whether err means the resource is already absent.
// Deletion calls treat it as success.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchEntity"
	}
	return false
}
