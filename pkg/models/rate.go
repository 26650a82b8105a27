package models

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Rate is an exact decimal conversion rate. It is stored as a DynamoDB number and
// rendered as a JSON string so no precision is lost through float64.
type Rate struct {
	decimal.Decimal
}

// NewRate wraps d.
func NewRate(d decimal.Decimal) *Rate {
	return &Rate{Decimal: d}
}

var (
	_ attributevalue.Marshaler   = Rate{}
	_ attributevalue.Unmarshaler = (*Rate)(nil)
)

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (r Rate) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: r.Decimal.String()}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (r *Rate) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	default:
		return fmt.Errorf("failed to unmarshal rate: unexpected attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("failed to unmarshal rate %q: %w", raw, err)
	}
	r.Decimal = d
	return nil
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.FxRate != nil {
		c.FxRate = NewRate(t.FxRate.Decimal)
	}
	return &c
}
