package errors

// ErrorCode is a stable, machine-readable code carried by UnifiedError.
type ErrorCode string

const (
	// Recipe errors
	CodeRecipeNotFound     ErrorCode = "RECIPE_NOT_FOUND"
	CodeRecipeNameRequired ErrorCode = "RECIPE_NAME_REQUIRED"
	CodeRecipeInvalid      ErrorCode = "RECIPE_INVALID"
	CodeCategoryPatchClash ErrorCode = "CATEGORY_PATCH_CONFLICT"

	// Category errors
	CodeCategoryNotFound ErrorCode = "CATEGORY_NOT_FOUND"
	CodeCategoryInvalid  ErrorCode = "CATEGORY_INVALID"
	CodeReferenceCleanup ErrorCode = "CATEGORY_REFERENCE_CLEANUP_FAILED"

	// User and share errors
	CodeUserNotFound  ErrorCode = "USER_NOT_FOUND"
	CodeUserIDEmpty   ErrorCode = "USER_ID_EMPTY"
	CodeShareNotFound ErrorCode = "SHARE_NOT_FOUND"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"

	// Validation errors
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeInvalidID        ErrorCode = "INVALID_ID"
	CodeBatchTooLarge    ErrorCode = "BATCH_TOO_LARGE"

	// Store errors
	CodeConditionFailed   ErrorCode = "CONDITION_FAILED"
	CodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
	CodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	CodeStoreRejected     ErrorCode = "STORE_REJECTED"
	CodeMarshalFailed     ErrorCode = "MARSHAL_FAILED"

	// Infrastructure errors
	CodeInternalError       ErrorCode = "INTERNAL_ERROR"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeImageRehostFailed   ErrorCode = "IMAGE_REHOST_FAILED"
	CodeEventPublishFailed  ErrorCode = "EVENT_PUBLISH_FAILED"
	CodePartialBatchFailure ErrorCode = "PARTIAL_BATCH_FAILURE"
)

// HTTPStatusCode returns the HTTP status for an error code.
func (c ErrorCode) HTTPStatusCode() int {
	switch c {
	case CodeRecipeNameRequired, CodeRecipeInvalid, CodeCategoryPatchClash, CodeCategoryInvalid,
		CodeUserIDEmpty, CodeValidationFailed, CodeInvalidInput, CodeInvalidID,
		CodeBatchTooLarge, CodeStoreRejected:
		return 400

	case CodeUnauthorized:
		return 401

	case CodeRecipeNotFound, CodeCategoryNotFound, CodeUserNotFound, CodeShareNotFound,
		CodeConditionFailed:
		return 404

	case CodeTransactionFailed:
		return 409

	case CodeStoreUnavailable:
		return 503

	case CodeTimeout:
		return 504

	default:
		return 500
	}
}

// String returns the string form of the code.
func (c ErrorCode) String() string {
	return string(c)
}

// Severity returns the default severity for the code.
func (c ErrorCode) Severity() ErrorSeverity {
	switch c {
	case CodeInternalError, CodeMarshalFailed:
		return SeverityCritical
	case CodeStoreUnavailable, CodeTransactionFailed, CodeReferenceCleanup:
		return SeverityHigh
	case CodeTimeout, CodePartialBatchFailure, CodeImageRehostFailed, CodeEventPublishFailed:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
