package listview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/model"
)

// ErrNotConfirmed is returned when the user declines a destructive action.
var ErrNotConfirmed = errors.New("listview: action not confirmed")

// Confirmer gates destructive actions on an explicit user decision.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Option configures a Controller.
type Option func(*Controller)

// WithConfirmer sets the delete confirmation gate. Without one every delete
// is refused.
func WithConfirmer(c Confirmer) Option {
	return func(ctl *Controller) { ctl.confirm = c }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithCriteria sets the initial filter criteria.
func WithCriteria(c model.FilterCriteria) Option {
	return func(ctl *Controller) { ctl.criteria = c.Clone() }
}

// WithSort sets the initial sort in place of the resource default.
func WithSort(s model.SortSpec) Option {
	return func(ctl *Controller) { ctl.sort = s }
}

// Controller is the list-view state of one screen. All methods are safe for
// concurrent use; network calls run without holding the state lock and
// commit only after the server confirms.
type Controller struct {
	res        *model.Resource
	client     client.CollectionClient
	fetcher    *Fetcher
	dispatcher *Dispatcher
	confirm    Confirmer
	logger     *slog.Logger

	mu          sync.Mutex
	items       []model.Record
	unpaged     bool
	loaded      bool
	pagination  model.Pagination
	criteria    model.FilterCriteria
	sort        model.SortSpec
	sel         *Selection
	banner      string
	fieldErrors map[string][]string
}

// New creates a controller for res backed by c.
func New(c client.CollectionClient, res *model.Resource, opts ...Option) *Controller {
	ctl := &Controller{
		res:        res,
		client:     c,
		fetcher:    NewFetcher(c, res),
		dispatcher: NewDispatcher(c, res),
		logger:     slog.Default(),
		criteria:   model.NewFilterCriteria(res.Limit),
		sort:       res.DefaultSort,
		sel:        NewSelection(res),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// Resource returns the screen configuration.
func (c *Controller) Resource() *model.Resource { return c.res }

// --- Loading ---

// Load fetches the current page for the current criteria. A fetch superseded
// by a newer one is dropped silently. On failure the error banner is set and
// already rendered records stay in place.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	req := client.ListRequest{Criteria: c.criteria.Clone()}
	if c.res.SortMode == model.SortServer {
		req.Sort = c.sort
	}
	c.mu.Unlock()

	resp, seq, err := c.fetcher.Fetch(ctx, req)
	if errors.Is(err, ErrStale) {
		c.logger.Debug("dropping superseded response", "resource", c.res.Name, "seq", seq)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fetcher.IsLatest(seq) {
		c.logger.Debug("dropping superseded response", "resource", c.res.Name, "seq", seq)
		return nil
	}
	if err != nil {
		c.setErrorLocked(err)
		if !c.loaded {
			c.items = nil
		}
		return err
	}
	c.items = resp.Items
	c.unpaged = resp.Unpaged
	c.pagination = resp.Pagination
	c.loaded = true
	c.banner = ""
	c.fieldErrors = nil
	if id := c.sel.ID(); id != "" {
		if rec, ok := c.findLocked(id); ok {
			c.sel.Refresh(id, rec)
		}
	}
	return nil
}

// Refresh reloads the current page.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.Load(ctx)
}

// Close cancels any fetch in flight. Responses arriving afterwards are
// discarded.
func (c *Controller) Close() {
	c.fetcher.Cancel()
}

// SetFilter sets one filter key and reloads from page 1. An empty value
// clears the filter.
func (c *Controller) SetFilter(ctx context.Context, key, value string) error {
	if err := c.updateCriteria(key, value); err != nil {
		return err
	}
	return c.Load(ctx)
}

// SetSearch sets the free-text search and reloads from page 1.
func (c *Controller) SetSearch(ctx context.Context, term string) error {
	return c.SetFilter(ctx, model.KeySearch, term)
}

// SetPage moves to page n. A collection the backend returned unpaged is
// paged locally without a round-trip.
func (c *Controller) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	if total := c.paginationLocked().TotalPages; n < 1 || (total > 0 && n > total) {
		c.mu.Unlock()
		return fmt.Errorf("page %d out of range (1-%d)", n, max(total, 1))
	}
	c.criteria = c.criteria.WithPage(n)
	if c.unpaged {
		c.pagination.CurrentPage = n
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.Load(ctx)
}

// NextPage moves forward one page; it is a no-op on the last page.
func (c *Controller) NextPage(ctx context.Context) error {
	c.mu.Lock()
	p := c.paginationLocked()
	c.mu.Unlock()
	if !p.HasNext() {
		return nil
	}
	return c.SetPage(ctx, p.CurrentPage+1)
}

// PrevPage moves back one page; it is a no-op on the first page.
func (c *Controller) PrevPage(ctx context.Context) error {
	c.mu.Lock()
	p := c.paginationLocked()
	c.mu.Unlock()
	if !p.HasPrev() {
		return nil
	}
	return c.SetPage(ctx, p.CurrentPage-1)
}

// ToggleSort selects key as the sort column, flipping the direction when it
// is already active. Screens that sort on the server reload from page 1;
// the others reorder the loaded page.
func (c *Controller) ToggleSort(ctx context.Context, key string) error {
	c.mu.Lock()
	c.sort = c.sort.Toggle(key)
	server := c.res.SortMode == model.SortServer
	if server {
		c.criteria = c.criteria.WithPage(1)
	}
	c.mu.Unlock()
	if server {
		return c.Load(ctx)
	}
	return nil
}

func (c *Controller) updateCriteria(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.criteria.With(key, value)
	if err != nil {
		return err
	}
	c.criteria = next
	return nil
}

// --- Derived state ---

// Visible returns the records to render: the loaded page filtered and, for
// locally sorted screens, sorted.
func (c *Controller) Visible() []model.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

func (c *Controller) visibleLocked() []model.Record {
	spec := c.sort
	if c.res.SortMode == model.SortServer {
		spec = model.SortSpec{}
	}
	out := Apply(c.items, c.criteria, spec, c.res)
	if c.unpaged {
		out = Page(out, c.criteria.Page, c.criteria.Limit)
	}
	return out
}

// paginationLocked returns the pagination the screen renders and navigates
// by. For a collection the backend returned unpaged, totals count the
// records left after local filtering rather than the server's totals.
func (c *Controller) paginationLocked() model.Pagination {
	p := c.pagination
	if !c.unpaged {
		return p
	}
	n := len(Apply(c.items, c.criteria, model.SortSpec{}, c.res))
	p.TotalRecords = n
	p.TotalPages = max((n+c.criteria.Limit-1)/c.criteria.Limit, 1)
	p.CurrentPage = min(max(c.criteria.Page, 1), p.TotalPages)
	return p
}

// State returns a snapshot of everything the presentation layer renders.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Resource:    c.res,
		Items:       c.visibleLocked(),
		Pagination:  c.paginationLocked(),
		Criteria:    c.criteria.Clone(),
		Sort:        c.sort,
		Mode:        c.sel.Mode(),
		SelectedID:  c.sel.ID(),
		Selected:    c.sel.Record(),
		Draft:       c.sel.Draft(),
		Expanded:    c.sel.Expanded(),
		Banner:      c.banner,
		FieldErrors: copyFieldErrors(c.fieldErrors),
		Loaded:      c.loaded,
	}
}

// --- Selection ---

// View opens record id in the detail view. The record must be on the loaded page.
func (c *Controller) View(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.findLocked(id)
	if !ok {
		return fmt.Errorf("%s %s is not on the current page", c.res.Name, id)
	}
	c.fieldErrors = nil
	return c.sel.View(id, rec)
}

// Edit moves the detail view into editing.
func (c *Controller) Edit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.Edit()
}

// StageField parses raw for field and stages it in the draft.
func (c *Controller) StageField(field, raw string) error {
	d, ok := c.res.Field(field)
	if !ok {
		return fmt.Errorf("unknown field %q for %s", field, c.res.Name)
	}
	v, err := model.ParseFieldValue(d, raw)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.Stage(field, v)
}

// Save commits the draft through the dispatcher. On failure the draft, the
// selection and the edit mode are all kept so the user can retry.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.sel.Mode() != ModeEdit {
		c.mu.Unlock()
		return fmt.Errorf("%w: save outside edit", ErrInvalidTransition)
	}
	id := c.sel.ID()
	changes := c.sel.Changes()
	c.mu.Unlock()

	if len(changes) == 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.sel.Saved(c.sel.Record())
	}

	returned, err := c.dispatcher.Update(ctx, id, changes)
	if err != nil {
		c.fail(err)
		return err
	}
	updated := c.reconcile(ctx, id, changes, returned)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fieldErrors = nil
	return c.sel.Saved(updated)
}

// Cancel discards the draft and returns to the detail view.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fieldErrors = nil
	return c.sel.Cancel()
}

// Back returns to the list.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fieldErrors = nil
	return c.sel.Back()
}

// ToggleExpanded expands or collapses row id and reports whether it is now
// expanded.
func (c *Controller) ToggleExpanded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.ToggleExpanded(id)
}

// --- Mutations ---

// UpdateStatus moves record id to status. The record must be on the loaded page.
func (c *Controller) UpdateStatus(ctx context.Context, id, status, notes string) error {
	c.mu.Lock()
	_, ok := c.findLocked(id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s %s is not on the current page", c.res.Name, id)
	}

	returned, err := c.dispatcher.UpdateStatus(ctx, id, status, notes)
	if err != nil {
		c.fail(err)
		return err
	}
	assumed := map[string]any{"status": status}
	if notes != "" {
		assumed["notes"] = notes
	}
	c.reconcile(ctx, id, assumed, returned)
	return nil
}

// Create validates payload, creates the record and reloads the list.
func (c *Controller) Create(ctx context.Context, payload map[string]any) (model.Record, error) {
	rec, err := c.dispatcher.Create(ctx, payload)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	c.mu.Lock()
	c.fieldErrors = nil
	c.mu.Unlock()
	if err := c.Load(ctx); err != nil {
		c.logger.Warn("reload after create failed", "resource", c.res.Name, "err", err)
	}
	return rec, nil
}

// Delete removes record id after the confirmation gate. Deleting an id that
// is not on the loaded page changes nothing.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.findLocked(id)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	if c.confirm == nil || !c.confirm.Confirm(fmt.Sprintf("Delete %s %s? This cannot be undone.", c.res.Name, id)) {
		return ErrNotConfirmed
	}

	if err := c.dispatcher.Delete(ctx, id); err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.sel.Drop(id)
	c.banner = ""
	if c.res.Reconcile == model.ReconcilePatch {
		if i := c.indexLocked(id); i >= 0 {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			if c.pagination.TotalRecords > 0 {
				c.pagination.TotalRecords--
			}
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if err := c.Load(ctx); err != nil {
		c.logger.Warn("reload after delete failed", "resource", c.res.Name, "err", err)
	}
	return nil
}

// Stats fetches the summary counts for the screen.
func (c *Controller) Stats(ctx context.Context) (*model.Stats, error) {
	st, err := c.client.Stats(ctx, c.res)
	if err != nil {
		return nil, fmt.Errorf("loading %s stats: %w", c.res.Name, err)
	}
	return st, nil
}

// reconcile brings the list and the selection copy up to date after a
// confirmed mutation and returns the record as it now stands. The selection
// copy is patched for both strategies; refetch screens then reload.
func (c *Controller) reconcile(ctx context.Context, id string, assumed map[string]any, returned model.Record) model.Record {
	c.mu.Lock()
	base, ok := c.findLocked(id)
	if !ok {
		base = c.sel.Record()
	}
	updated := base.Merge(assumed)
	if returned.ID(c.res.IDField) == id {
		updated = updated.Merge(returned)
	}
	c.sel.Refresh(id, updated)
	c.banner = ""
	patch := c.res.Reconcile == model.ReconcilePatch
	if patch {
		if i := c.indexLocked(id); i >= 0 {
			c.items[i] = updated
		}
	}
	c.mu.Unlock()

	if !patch {
		if err := c.Load(ctx); err != nil {
			c.logger.Warn("reload after update failed", "resource", c.res.Name, "id", id, "err", err)
		}
	}
	return updated
}

// fail records a mutation failure as banner and field errors without
// touching items or selection.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErrorLocked(err)
}

func (c *Controller) setErrorLocked(err error) {
	c.banner = client.UserMessage(err)
	c.fieldErrors = nil
	var ve *model.ValidationError
	var apiErr *client.APIError
	switch {
	case errors.As(err, &ve):
		c.fieldErrors = ve.ByField()
	case errors.As(err, &apiErr) && len(apiErr.Fields) > 0:
		fe := &model.ValidationError{Errors: apiErr.Fields}
		c.fieldErrors = fe.ByField()
	}
	c.logger.Debug("list view error", "resource", c.res.Name, "err", err)
}

func (c *Controller) findLocked(id string) (model.Record, bool) {
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	return nil, false
}

func (c *Controller) indexLocked(id string) int {
	for i, rec := range c.items {
		if rec.ID(c.res.IDField) == id {
			return i
		}
	}
	return -1
}

func copyFieldErrors(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
