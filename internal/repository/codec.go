package repository

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	appErrors "savethespice-backend/internal/errors"
)

// Decode unmarshals an item into a record tagged with `dynamodbav`.
func Decode(item Item, out any) error {
	if err := attributevalue.UnmarshalMap(map[string]types.AttributeValue(item), out); err != nil {
		return appErrors.Internal(appErrors.CodeMarshalFailed, "failed to decode item").
			WithCause(err).
			Build()
	}
	return nil
}

// DecodeAll unmarshals a list of items into a slice of records.
func DecodeAll(items []Item, out any) error {
	raw := make([]map[string]types.AttributeValue, len(items))
	for i, item := range items {
		raw[i] = item
	}
	if err := attributevalue.UnmarshalListOfMaps(raw, out); err != nil {
		return appErrors.Internal(appErrors.CodeMarshalFailed, "failed to decode items").
			WithCause(err).
			Build()
	}
	return nil
}

// MarshalValue converts a Go value into an attribute value.
func MarshalValue(v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, appErrors.Validation(appErrors.CodeInvalidInput, "value cannot be stored").
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}
	return av, nil
}
