package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Backend persists ordering domains.
type Backend interface {
	// Update reads a consistent snapshot of the domain, passes it to fn and
	// applies the returned mutation atomically. An empty mutation writes
	// nothing. fn may be called more than once if the backend retries.
	Update(ctx context.Context, domain Domain, fn func(items []Item) (Mutation, error)) error

	// Items returns the items of the domain in read order.
	Items(ctx context.Context, domain Domain) ([]Item, error)

	// Domains returns every domain that holds at least one item.
	Domains(ctx context.Context) ([]Domain, error)
}

// Orderer maintains dense positions on top of a Backend.
type Orderer struct {
	backend  Backend
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a new Orderer. A nil logger uses slog.Default().
func New(backend Backend, logger *slog.Logger) *Orderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orderer{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// SetNotifier sets the notifier that receives committed events.
func (o *Orderer) SetNotifier(n Notifier) {
	o.notifier = n
}

// Create appends a new item with the given ID to the end of the domain.
func (o *Orderer) Create(ctx context.Context, domain Domain, id string) (*Result, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}

	var res Result
	err := o.backend.Update(ctx, domain, func(items []Item) (Mutation, error) {
		m, err := PlanCreate(domain, items, id, o.now().UTC())
		if err != nil {
			return Mutation{}, err
		}
		res = Result{Domain: domain, Item: m.Create, Changes: m.Changes}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create %s in %s: %w", id, domain, err)
	}

	o.logger.Debug("item created",
		"domain", domain.Key(),
		"id", id,
		"position", res.Item.Position,
		"healed", len(res.Changes),
	)
	o.publish(ctx, EventCreated, id, &res)
	return &res, nil
}

// Move moves item id to target. Targets past the end move the item to the end.
func (o *Orderer) Move(ctx context.Context, domain Domain, id string, target int) (*Result, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	var res Result
	err := o.backend.Update(ctx, domain, func(items []Item) (Mutation, error) {
		changes, err := PlanMove(items, id, target)
		if err != nil {
			return Mutation{}, err
		}
		moved := ApplyChanges(items, changes)
		item := moved[indexOf(moved, id)]
		res = Result{Domain: domain, Item: &item, Changes: changes}
		return Mutation{Changes: changes}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("move %s in %s: %w", id, domain, err)
	}

	if len(res.Changes) == 0 {
		return &res, nil
	}
	o.logger.Debug("item moved",
		"domain", domain.Key(),
		"id", id,
		"target", target,
		"position", res.Item.Position,
		"changes", len(res.Changes),
	)
	o.publish(ctx, EventMoved, id, &res)
	return &res, nil
}

// Remove deletes item id and shifts every later item down by one.
func (o *Orderer) Remove(ctx context.Context, domain Domain, id string) (*Result, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	var res Result
	err := o.backend.Update(ctx, domain, func(items []Item) (Mutation, error) {
		removed, changes, err := PlanRemove(items, id)
		if err != nil {
			return Mutation{}, err
		}
		res = Result{Domain: domain, Item: &removed, Changes: changes}
		return Mutation{Delete: id, Changes: changes}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove %s from %s: %w", id, domain, err)
	}

	o.logger.Debug("item removed",
		"domain", domain.Key(),
		"id", id,
		"changes", len(res.Changes),
	)
	o.publish(ctx, EventRemoved, id, &res)
	return &res, nil
}

// Resequence rewrites the positions of the domain to 0..N-1 in read order.
func (o *Orderer) Resequence(ctx context.Context, domain Domain) (*Result, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}

	var res Result
	err := o.backend.Update(ctx, domain, func(items []Item) (Mutation, error) {
		changes := PlanResequence(items)
		res = Result{Domain: domain, Changes: changes}
		return Mutation{Changes: changes}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resequence %s: %w", domain, err)
	}

	if len(res.Changes) == 0 {
		return &res, nil
	}
	o.logger.Info("domain resequenced",
		"domain", domain.Key(),
		"changes", len(res.Changes),
	)
	o.publish(ctx, EventResequenced, "", &res)
	return &res, nil
}

// List returns the items of the domain in read order.
func (o *Orderer) List(ctx context.Context, domain Domain) ([]Item, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	items, err := o.backend.Items(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", domain, err)
	}
	return Sort(items), nil
}

// Check reports gaps and duplicates in the domain without changing it.
func (o *Orderer) Check(ctx context.Context, domain Domain) (Report, error) {
	items, err := o.List(ctx, domain)
	if err != nil {
		return Report{}, err
	}
	return Check(domain, items), nil
}

// Repair resequences every domain that is not dense and returns how many
// domains were rewritten. It keeps going past failing domains and returns
// their errors joined.
func (o *Orderer) Repair(ctx context.Context) (int, error) {
	domains, err := o.backend.Domains(ctx)
	if err != nil {
		return 0, fmt.Errorf("list domains: %w", err)
	}

	var errs []error
	repaired := 0
	for _, d := range domains {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		report, err := o.Check(ctx, d)
		if err != nil {
			o.logger.Warn("failed to check domain", "domain", d.Key(), "error", err)
			errs = append(errs, err)
			continue
		}
		if report.Dense {
			continue
		}
		res, err := o.Resequence(ctx, d)
		if err != nil {
			o.logger.Warn("failed to repair domain", "domain", d.Key(), "error", err)
			errs = append(errs, err)
			continue
		}
		if len(res.Changes) > 0 {
			repaired++
		}
	}

	o.logger.Info("repair completed",
		"domains", len(domains),
		"repaired", repaired,
		"failed", len(errs),
	)
	return repaired, errors.Join(errs...)
}

// publish hands a committed result to the notifier. Failures are logged only;
// the write has already happened.
func (o *Orderer) publish(ctx context.Context, kind EventKind, id string, res *Result) {
	if o.notifier == nil {
		return
	}
	event := Event{
		Domain:  res.Domain.Key(),
		Kind:    kind,
		ItemID:  id,
		Changes: res.Changes,
		At:      o.now().UTC(),
	}
	if err := o.notifier.Notify(ctx, event); err != nil {
		o.logger.Warn("failed to publish event",
			"domain", event.Domain,
			"kind", string(kind),
			"error", err,
		)
	}
}
