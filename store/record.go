package store

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/ordinal/internal/keys"
	"github.com/jacentio/ordinal/order"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// itemRecord is the stored form of an order.Item.
type itemRecord struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	ID        string `dynamodbav:"id"`
	Position  int    `dynamodbav:"position"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// metaRecord tracks the size and write version of a domain.
type metaRecord struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Kind      string `dynamodbav:"kind"`
	Scope     string `dynamodbav:"scope"`
	Size      int    `dynamodbav:"size"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// snapshot is a consistent read of one domain partition.
type snapshot struct {
	items       []order.Item
	metaExists  bool
	metaVersion int64
	metaSize    int
}

// drifted reports whether the meta size no longer matches the stored items,
// which happens when items are deleted outside the store.
func (s snapshot) drifted() bool {
	return s.metaExists && s.metaSize != len(s.items)
}

// itemKey returns the primary key of an item record.
func itemKey(domain order.Domain, id string) PK {
	return PK{
		"pk": &types.AttributeValueMemberS{Value: domain.Key()},
		"sk": &types.AttributeValueMemberS{Value: keys.ItemSK(id)},
	}
}

// metaKey returns the primary key of a domain's meta record.
func metaKey(domain order.Domain) PK {
	return PK{
		"pk": &types.AttributeValueMemberS{Value: domain.Key()},
		"sk": &types.AttributeValueMemberS{Value: keys.MetaSK},
	}
}

// encodeItem converts a new item to a DynamoDB item.
func encodeItem(item order.Item, now time.Time) (map[string]types.AttributeValue, error) {
	rec := itemRecord{
		PK:        item.Domain.Key(),
		SK:        keys.ItemSK(item.ID),
		ID:        item.ID,
		Position:  item.Position,
		Version:   1,
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal item %s: %w", item.ID, err)
	}
	return av, nil
}

// encodeMeta builds the meta record written on a domain's first mutation.
func encodeMeta(domain order.Domain, size int, now time.Time) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(metaRecord{
		PK:        domain.Key(),
		SK:        keys.MetaSK,
		Kind:      domain.Kind,
		Scope:     domain.Scope,
		Size:      size,
		Version:   1,
		UpdatedAt: now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal meta %s: %w", domain, err)
	}
	return av, nil
}

// decodeItem converts a DynamoDB item record to an order.Item.
func decodeItem(domain order.Domain, raw map[string]types.AttributeValue) (order.Item, error) {
	var rec itemRecord
	if err := attributevalue.UnmarshalMap(raw, &rec); err != nil {
		return order.Item{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	id := rec.ID
	if id == "" {
		id = keys.ItemID(rec.SK)
	}
	if id == "" {
		return order.Item{}, fmt.Errorf("%w: item without id in %s", ErrInvalidRecord, domain)
	}

	item := order.Item{
		ID:       id,
		Domain:   domain,
		Position: rec.Position,
		Version:  rec.Version,
	}
	if rec.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
		if err != nil {
			return order.Item{}, fmt.Errorf("%w: created_at of %s: %v", ErrInvalidRecord, id, err)
		}
		item.CreatedAt = createdAt
	}
	return item, nil
}

// decodeMeta converts a DynamoDB meta record.
func decodeMeta(raw map[string]types.AttributeValue) (metaRecord, error) {
	var rec metaRecord
	if err := attributevalue.UnmarshalMap(raw, &rec); err != nil {
		return metaRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}
