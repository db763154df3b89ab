package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/ordinal/internal/keys"
	"github.com/jacentio/ordinal/order"
)

type fakeResequencer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeResequencer) Resequence(_ context.Context, d order.Domain) (*order.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d.Key())
	if err := f.fail[d.Key()]; err != nil {
		return nil, err
	}
	return &order.Result{Domain: d}, nil
}

func (f *fakeResequencer) sortedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(name events.DynamoDBOperationType, pk, sk string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   pk + "/" + sk,
		EventName: string(name),
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute(pk),
				"sk": events.NewStringAttribute(sk),
			},
			OldImage: map[string]events.DynamoDBAttributeValue{
				"position": events.NewNumberAttribute("1"),
			},
		},
	}
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(&fakeResequencer{}, nil)
	if h == nil {
		t.Fatal("expected handler to be created")
	}
	if h.logger == nil {
		t.Error("expected default logger")
	}
	if h.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", h.concurrency, DefaultConcurrency)
	}

	h.SetConcurrency(0)
	if h.concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", h.concurrency)
	}
}

func TestHandler_HandleCompaction_EmptyEvent(t *testing.T) {
	r := &fakeResequencer{}
	h := NewHandler(r, quietLogger())

	if err := h.HandleCompaction(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("expected no resequence, got %v", r.calls)
	}
}

func TestHandler_HandleCompaction_IgnoresOtherRecords(t *testing.T) {
	r := &fakeResequencer{}
	h := NewHandler(r, quietLogger())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record(events.DynamoDBOperationTypeInsert, "membership_plan#c1", keys.ItemSK("A")),
		record(events.DynamoDBOperationTypeModify, "membership_plan#c1", keys.ItemSK("A")),
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.MetaSK),
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemPrefix()),
	}}

	if err := h.HandleCompaction(context.Background(), event); err != nil {
		t.Fatalf("HandleCompaction() error = %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("expected no resequence, got %v", r.calls)
	}
}

func TestHandler_HandleCompaction_OncePerDomain(t *testing.T) {
	r := &fakeResequencer{}
	h := NewHandler(r, quietLogger())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemSK("A")),
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c2", keys.ItemSK("X")),
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemSK("B")),
	}}

	if err := h.HandleCompaction(context.Background(), event); err != nil {
		t.Fatalf("HandleCompaction() error = %v", err)
	}

	got := r.sortedCalls()
	want := []string{"membership_plan#c1", "membership_plan#c2"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHandler_HandleCompaction_SkipsMalformedDomain(t *testing.T) {
	r := &fakeResequencer{}
	h := NewHandler(r, quietLogger())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record(events.DynamoDBOperationTypeRemove, "no-separator", keys.ItemSK("A")),
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemSK("B")),
	}}

	if err := h.HandleCompaction(context.Background(), event); err != nil {
		t.Fatalf("HandleCompaction() error = %v", err)
	}
	got := r.sortedCalls()
	if len(got) != 1 || got[0] != "membership_plan#c1" {
		t.Errorf("calls = %v, want [membership_plan#c1]", got)
	}
}

func TestHandler_Collect_CountsExpired(t *testing.T) {
	h := NewHandler(&fakeResequencer{}, quietLogger())

	expired := record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemSK("A"))
	expired.UserIdentity = &events.DynamoDBUserIdentity{
		Type:        "Service",
		PrincipalID: "dynamodb.amazonaws.com",
	}

	targets := h.collect([]events.DynamoDBEventRecord{
		expired,
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemSK("B")),
		record(events.DynamoDBOperationTypeRemove, "no-separator", keys.ItemSK("C")),
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c2", keys.ItemSK("X")),
	})

	if len(targets) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(targets))
	}
	c1, c2 := targets[0], targets[1]
	if c1.domain.Key() != "membership_plan#c1" || c1.removed != 2 || c1.expired != 1 {
		t.Errorf("c1 = %s removed=%d expired=%d, want removed=2 expired=1", c1.domain.Key(), c1.removed, c1.expired)
	}
	if c2.domain.Key() != "membership_plan#c2" || c2.removed != 1 || c2.expired != 0 {
		t.Errorf("c2 = %s removed=%d expired=%d, want removed=1 expired=0", c2.domain.Key(), c2.removed, c2.expired)
	}
}

func TestHandler_HandleCompaction_LogsExpired(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&fakeResequencer{}, slog.New(slog.NewJSONHandler(&buf, nil)))

	rec := record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemSK("A"))
	rec.UserIdentity = &events.DynamoDBUserIdentity{
		Type:        "Service",
		PrincipalID: "dynamodb.amazonaws.com",
	}

	if err := h.HandleCompaction(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{rec}}); err != nil {
		t.Fatalf("HandleCompaction() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"item expired"`, `"position":1`, `"expired":1`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestHandler_HandleCompaction_ResequenceFailureReturns(t *testing.T) {
	boom := errors.New("throttled")
	r := &fakeResequencer{fail: map[string]error{"membership_plan#c1": boom}}
	h := NewHandler(r, quietLogger())
	h.SetConcurrency(1)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record(events.DynamoDBOperationTypeRemove, "membership_plan#c1", keys.ItemSK("A")),
	}}

	if err := h.HandleCompaction(context.Background(), event); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

func TestHandler_HandleCompaction_WithOrderer(t *testing.T) {
	b := newMemBackend()
	d, _ := order.NewDomain("membership_plan", "c1")
	b.items[d.Key()] = []order.Item{
		{ID: "A", Domain: d, Position: 0},
		{ID: "C", Domain: d, Position: 2},
	}
	h := NewHandler(order.New(b, quietLogger()), quietLogger())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record(events.DynamoDBOperationTypeRemove, d.Key(), keys.ItemSK("B")),
	}}
	if err := h.HandleCompaction(context.Background(), event); err != nil {
		t.Fatalf("HandleCompaction() error = %v", err)
	}

	items := b.items[d.Key()]
	for i, want := range []string{"A", "C"} {
		if items[i].ID != want || items[i].Position != i {
			t.Errorf("items[%d] = %s@%d, want %s@%d", i, items[i].ID, items[i].Position, want, i)
		}
	}
}

// memBackend is a minimal in-memory order.Backend.
type memBackend struct {
	mu    sync.Mutex
	items map[string][]order.Item
}

func newMemBackend() *memBackend {
	return &memBackend{items: make(map[string][]order.Item)}
}

func (b *memBackend) Update(_ context.Context, d order.Domain, fn func([]order.Item) (order.Mutation, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := order.Sort(b.items[d.Key()])
	m, err := fn(current)
	if err != nil {
		return err
	}
	b.items[d.Key()] = order.Sort(order.ApplyChanges(current, m.Changes))
	return nil
}

func (b *memBackend) Items(_ context.Context, d order.Domain) ([]order.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]order.Item(nil), b.items[d.Key()]...), nil
}

func (b *memBackend) Domains(context.Context) ([]order.Domain, error) {
	return nil, nil
}
