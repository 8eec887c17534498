package listview

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/model"
)

// Dispatcher performs single-record mutations for one resource. Payloads run
// through the validation pipeline first; an invalid payload never reaches
// the network.
type Dispatcher struct {
	client client.CollectionClient
	res    *model.Resource
}

// NewDispatcher creates a dispatcher for res.
func NewDispatcher(c client.CollectionClient, res *model.Resource) *Dispatcher {
	return &Dispatcher{client: c, res: res}
}

// Create validates payload and creates a record.
func (d *Dispatcher) Create(ctx context.Context, payload map[string]any) (model.Record, error) {
	if err := model.ValidateCreate(d.res, payload); err != nil {
		return nil, err
	}
	rec, err := d.client.Create(ctx, d.res, payload)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.res.Name, err)
	}
	return rec, nil
}

// Update validates a partial field update and applies it to record id.
func (d *Dispatcher) Update(ctx context.Context, id string, fields map[string]any) (model.Record, error) {
	if err := model.ValidateUpdate(d.res, fields); err != nil {
		return nil, err
	}
	rec, err := d.client.Update(ctx, d.res, id, fields)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", d.res.Name, id, err)
	}
	return rec, nil
}

// UpdateStatus moves record id to status, with optional notes.
func (d *Dispatcher) UpdateStatus(ctx context.Context, id, status, notes string) (model.Record, error) {
	if err := model.ValidateStatusChange(d.res, status, notes); err != nil {
		return nil, err
	}
	rec, err := d.client.UpdateStatus(ctx, d.res, id, status, notes)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s status: %w", d.res.Name, id, err)
	}
	return rec, nil
}

// Delete removes record id.
func (d *Dispatcher) Delete(ctx context.Context, id string) error {
	if err := d.client.Delete(ctx, d.res, id); err != nil {
		return fmt.Errorf("deleting %s %s: %w", d.res.Name, id, err)
	}
	return nil
}
