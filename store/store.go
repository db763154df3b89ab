package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/ordinal/internal/keys"
	"github.com/jacentio/ordinal/order"
)

// maxTransactItems is the DynamoDB limit on actions per TransactWriteItems call.
const maxTransactItems = 100

// API is the subset of the DynamoDB client used by Store.
// *dynamodb.Client satisfies it.
type API interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

var _ order.Backend = (*Store)(nil)

// Store is an order.Backend on a single DynamoDB table.
type Store struct {
	client API
	config Config
	now    func() time.Time
}

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Update reads the domain, plans a mutation with fn and commits it in one
// transaction guarded by the domain's meta version. An empty mutation still
// writes the meta record when its size disagrees with the stored items.
func (s *Store) Update(ctx context.Context, domain order.Domain, fn func([]order.Item) (order.Mutation, error)) error {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := s.wait(ctx, attempt); err != nil {
				return err
			}
		}

		snap, err := s.snapshot(ctx, domain)
		if err != nil {
			return err
		}

		m, err := fn(snap.items)
		if err != nil {
			return err
		}
		if m.Empty() && !snap.drifted() {
			return nil
		}

		items, createIndex, err := s.buildTransaction(domain, snap, m)
		if err != nil {
			return err
		}

		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		err = mapTransactionError(err, createIndex)
		if errors.Is(err, order.ErrConcurrentModification) && attempt < s.config.MaxRetries {
			continue
		}
		return err
	}
}

// wait sleeps a jittered interval before a retry, growing with the attempt.
func (s *Store) wait(ctx context.Context, attempt int) error {
	if s.config.RetryBackoff <= 0 {
		return nil
	}
	d := s.config.RetryBackoff * time.Duration(attempt)
	d = d/2 + rand.N(d/2+1)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Items returns the items of the domain in read order.
func (s *Store) Items(ctx context.Context, domain order.Domain) ([]order.Item, error) {
	snap, err := s.snapshot(ctx, domain)
	if err != nil {
		return nil, err
	}
	return order.Sort(snap.items), nil
}

// Domains returns every domain whose meta record reports at least one item.
func (s *Store) Domains(ctx context.Context) ([]order.Domain, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:            aws.String(s.config.Table),
		FilterExpression:     aws.String("sk = :meta AND #size > :zero"),
		ProjectionExpression: aws.String("pk"),
		ExpressionAttributeNames: map[string]string{
			"#size": "size",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":meta": &types.AttributeValueMemberS{Value: keys.MetaSK},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})

	var domains []order.Domain
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan domains: %w", err)
		}
		for _, raw := range page.Items {
			pk, ok := raw["pk"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			d, err := order.ParseDomain(pk.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
			}
			domains = append(domains, d)
		}
	}

	sort.Slice(domains, func(i, j int) bool {
		return domains[i].Key() < domains[j].Key()
	})
	return domains, nil
}

// snapshot reads the meta record and every item of a domain with a consistent query.
func (s *Store) snapshot(ctx context.Context, domain order.Domain) (snapshot, error) {
	var snap snapshot

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.config.Table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: domain.Key()},
		},
		ConsistentRead: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return snapshot{}, fmt.Errorf("query %s: %w", domain, err)
		}
		for _, raw := range page.Items {
			sk, _ := raw["sk"].(*types.AttributeValueMemberS)
			switch {
			case sk == nil:
				continue
			case sk.Value == keys.MetaSK:
				meta, err := decodeMeta(raw)
				if err != nil {
					return snapshot{}, err
				}
				snap.metaExists = true
				snap.metaVersion = meta.Version
				snap.metaSize = meta.Size
			case keys.IsItemSK(sk.Value):
				item, err := decodeItem(domain, raw)
				if err != nil {
					return snapshot{}, err
				}
				snap.items = append(snap.items, item)
			}
		}
	}

	return snap, nil
}

// buildTransaction converts a mutation into transaction items.
// It returns the index of the create put (-1 if none) for error mapping.
func (s *Store) buildTransaction(domain order.Domain, snap snapshot, m order.Mutation) ([]types.TransactWriteItem, int, error) {
	now := s.now()
	nowISO := now.UTC().Format(time.RFC3339Nano)
	table := aws.String(s.config.Table)
	createIndex := -1

	size := len(snap.items)
	if m.Create != nil {
		size++
	}
	if m.Delete != "" {
		size--
	}

	items := make([]types.TransactWriteItem, 0, m.Size()+1)

	// 1. Guard the whole domain with the meta version
	if snap.metaExists {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           table,
				Key:                 metaKey(domain),
				UpdateExpression:    aws.String("SET #size = :size, #version = #version + :one, #updated_at = :now"),
				ConditionExpression: aws.String("#version = :expected_version"),
				ExpressionAttributeNames: map[string]string{
					"#size":       "size",
					"#version":    "version",
					"#updated_at": "updated_at",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":size":             &types.AttributeValueMemberN{Value: strconv.Itoa(size)},
					":one":              &types.AttributeValueMemberN{Value: "1"},
					":now":              &types.AttributeValueMemberS{Value: nowISO},
					":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(snap.metaVersion, 10)},
				},
			},
		})
	} else {
		meta, err := encodeMeta(domain, size, now)
		if err != nil {
			return nil, -1, err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           table,
				Item:                meta,
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			},
		})
	}

	// 2. Insert the new item
	if m.Create != nil {
		av, err := encodeItem(*m.Create, now)
		if err != nil {
			return nil, -1, err
		}
		createIndex = len(items)
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           table,
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			},
		})
	}

	// 3. Delete the removed item
	if m.Delete != "" {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:           table,
				Key:                 itemKey(domain, m.Delete),
				ConditionExpression: aws.String("attribute_exists(pk)"),
			},
		})
	}

	// 4. Shift positions; each write also checks the position it read
	for _, c := range m.Changes {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           table,
				Key:                 itemKey(domain, c.ID),
				UpdateExpression:    aws.String("SET #position = :to, #version = #version + :one, #updated_at = :now"),
				ConditionExpression: aws.String("attribute_exists(pk) AND #position = :from"),
				ExpressionAttributeNames: map[string]string{
					"#position":   "position",
					"#version":    "version",
					"#updated_at": "updated_at",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":to":   &types.AttributeValueMemberN{Value: strconv.Itoa(c.To)},
					":from": &types.AttributeValueMemberN{Value: strconv.Itoa(c.From)},
					":one":  &types.AttributeValueMemberN{Value: "1"},
					":now":  &types.AttributeValueMemberS{Value: nowISO},
				},
			},
		})
	}

	if len(items) > maxTransactItems {
		return nil, -1, fmt.Errorf("%w: %s needs %d writes, limit is %d",
			order.ErrDomainTooLarge, domain, len(items), maxTransactItems)
	}
	return items, createIndex, nil
}

// mapTransactionError maps DynamoDB transaction errors to order errors.
// createIndex is the index of the new item's put (-1 if none).
func mapTransactionError(err error, createIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				if i == createIndex {
					return order.ErrAlreadyExists
				}
				return order.ErrConcurrentModification
			case "TransactionConflict":
				return order.ErrConcurrentModification
			}
		}
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return order.ErrConcurrentModification
	}

	return err
}
