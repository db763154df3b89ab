// Package stream provides DynamoDB Streams handlers that keep ordering
// domains dense when items disappear outside the orderer.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/ordinal/internal/keys"
	"github.com/jacentio/ordinal/order"
)

// DefaultConcurrency bounds how many domains are resequenced at once.
const DefaultConcurrency = 4

// Resequencer rewrites the positions of a domain to 0..N-1.
// *order.Orderer satisfies it.
type Resequencer interface {
	Resequence(ctx context.Context, domain order.Domain) (*order.Result, error)
}

// Handler processes DynamoDB stream events for compaction.
type Handler struct {
	orderer     Resequencer
	logger      *slog.Logger
	concurrency int
}

// NewHandler creates a new stream handler.
func NewHandler(r Resequencer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orderer:     r,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
}

// SetConcurrency sets how many domains are resequenced in parallel.
// Values below 1 are treated as 1.
func (h *Handler) SetConcurrency(n int) {
	h.concurrency = max(1, n)
}

// target is a domain that lost items in a batch.
type target struct {
	domain  order.Domain
	removed int
	expired int
}

// HandleCompaction resequences every domain that lost an item in the batch.
// Item rows removed by TTL or by writers that bypass the orderer leave a gap
// behind; each affected domain is resequenced once per batch. Records whose
// keys cannot be parsed are logged and skipped.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCompaction(ctx context.Context, event events.DynamoDBEvent) error {
	targets := h.collect(event.Records)
	if len(targets) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, t := range targets {
		g.Go(func() error {
			res, err := h.orderer.Resequence(ctx, t.domain)
			if err != nil {
				h.logger.Error("failed to compact domain",
					"domain", t.domain.Key(),
					"error", err,
				)
				return err // Will retry, eventually DLQ
			}
			h.logger.Info("domain compacted",
				"domain", t.domain.Key(),
				"removed", t.removed,
				"expired", t.expired,
				"changes", len(res.Changes),
			)
			return nil
		})
	}
	return g.Wait()
}

// collect groups REMOVE events on item records by domain, in first-seen order.
func (h *Handler) collect(records []events.DynamoDBEventRecord) []*target {
	index := make(map[string]*target)
	var targets []*target
	for _, record := range records {
		d, ok, err := h.removedFrom(record)
		if err != nil {
			h.logger.Warn("skipping unparseable record",
				"eventID", record.EventID,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		t := index[d.Key()]
		if t == nil {
			t = &target{domain: d}
			index[d.Key()] = t
			targets = append(targets, t)
		}
		t.removed++
		if isTTLDelete(record) {
			t.expired++
		}
	}
	return targets
}

// removedFrom reports the domain of a removed item record.
func (h *Handler) removedFrom(record events.DynamoDBEventRecord) (order.Domain, bool, error) {
	// Only REMOVE events can open a gap
	if record.EventName != string(events.DynamoDBOperationTypeRemove) {
		return order.Domain{}, false, nil
	}

	sk := getStringAttr(record.Change.Keys, "sk")
	if !keys.IsItemSK(sk) {
		return order.Domain{}, false, nil
	}

	pk := getStringAttr(record.Change.Keys, "pk")
	d, err := order.ParseDomain(pk)
	if err != nil {
		return order.Domain{}, false, fmt.Errorf("record %s: %w", record.EventID, err)
	}

	if isTTLDelete(record) {
		h.logger.Info("item expired",
			"domain", d.Key(),
			"id", keys.ItemID(sk),
			"position", getNumberAttr(record.Change.OldImage, "position"),
		)
	}
	return d, true, nil
}

// isTTLDelete reports whether DynamoDB itself removed the record on expiry.
func isTTLDelete(record events.DynamoDBEventRecord) bool {
	id := record.UserIdentity
	return id != nil && id.Type == "Service" && id.PrincipalID == "dynamodb.amazonaws.com"
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeString {
			return v.String()
		}
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
