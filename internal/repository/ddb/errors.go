package ddb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	appErrors "savethespice-backend/internal/errors"
)

// retryableCodes are API error codes that indicate a transient fault.
var retryableCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"TransactionInProgressException":         true,
	"LimitExceededException":                 true,
}

// mapError translates SDK errors into the unified error model.
func mapError(err error, op, table string) error {
	if err == nil {
		return nil
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return appErrors.PreconditionFailed(appErrors.CodeConditionFailed, "conditional check failed").
			WithOperation(op).
			WithResource(table).
			WithCause(err).
			Build()
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return appErrors.PreconditionFailed(appErrors.CodeConditionFailed, "transaction condition failed").
					WithOperation(op).
					WithResource(table).
					WithCause(err).
					Build()
			}
		}
		return appErrors.Unavailable(appErrors.CodeTransactionFailed, "transaction cancelled").
			WithOperation(op).
			WithResource(table).
			WithDetails(aws.ToString(tce.Message)).
			WithCause(err).
			Build()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return appErrors.Timeout(appErrors.CodeTimeout, "store call cancelled").
			WithOperation(op).
			WithResource(table).
			WithCause(err).
			Build()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.ErrorCode() == "ValidationException":
			return appErrors.Validation(appErrors.CodeStoreRejected, "store rejected the request").
				WithOperation(op).
				WithResource(table).
				WithDetails(apiErr.ErrorMessage()).
				WithCause(err).
				Build()
		case retryableCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer:
			return appErrors.Unavailable(appErrors.CodeStoreUnavailable, "store unavailable").
				WithOperation(op).
				WithResource(table).
				WithDetails(apiErr.ErrorCode()).
				WithCause(err).
				Build()
		default:
			return appErrors.Internal(appErrors.CodeInternalError, "store call failed").
				WithOperation(op).
				WithResource(table).
				WithDetails(apiErr.ErrorCode()).
				WithCause(err).
				Build()
		}
	}

	// Transport-level failures never reached the service.
	return appErrors.Unavailable(appErrors.CodeStoreUnavailable, "store unreachable").
		WithOperation(op).
		WithResource(table).
		WithCause(err).
		Build()
}
