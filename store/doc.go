// Package store provides a DynamoDB backend for ordering domains.
//
// All domains share one table. Each domain is a partition:
//
//	pk = "<kind>#<scope>"    sk = "meta"       size, version
//	pk = "<kind>#<scope>"    sk = "item#<id>"  id, position, version, created_at
//
// # Atomic Updates
//
// [Store.Update] reads the whole partition with a consistent query, lets the
// caller plan a mutation and writes it with a single TransactWriteItems call.
// The transaction carries a condition on the meta record's version, so two
// writers racing on the same domain cannot both commit. The loser receives
// [order.ErrConcurrentModification] after [Config.MaxRetries] fresh attempts,
// each preceded by a jittered wait of [Config.RetryBackoff] times the attempt.
//
// The meta size is reconciled on every Update: if items were deleted outside
// the store, even a mutation with no changes rewrites the meta record, so
// [Store.Domains] stops listing domains that no longer hold items.
//
// # Limits
//
// DynamoDB transactions hold at most 100 actions. A mutation that would need
// more (for example resequencing a domain of more than 99 drifted items)
// fails with [order.ErrDomainTooLarge] instead of being split.
//
// # Table
//
// [CreateTable] creates the table with the pk/sk schema and a stream of old
// images. The stream feeds the compactor in package stream, which closes
// gaps left by TTL expiry or by deletes that bypass the store.
//
// # Configuration
//
//	cfg := store.DefaultConfig()
//	cfg.Table = "billing_ordering"
//	s := store.New(dynamodb.NewFromConfig(awsCfg), cfg)
//	orderer := order.New(s, logger)
package store
