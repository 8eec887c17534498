package listview

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/alfredjeanlab/portal/internal/model"
)

// ErrInvalidTransition is returned when a view action is not allowed in the
// current mode, e.g. Edit from the list.
var ErrInvalidTransition = errors.New("listview: invalid view transition")

// Mode is the view state of a screen.
type Mode string

const (
	ModeList   Mode = "list"
	ModeDetail Mode = "detail"
	ModeEdit   Mode = "edit"
)

// Selection tracks the selected record, its editable draft and the
// expanded row. It makes no network calls.
//
//	list   --View-->   detail
//	detail --Edit-->   edit
//	edit   --Saved-->  detail   (draft replaced by the saved record)
//	edit   --Cancel--> detail   (draft discarded)
//	detail/edit --Back--> list
type Selection struct {
	fields []string

	mode     Mode
	id       string
	record   model.Record
	draft    model.Record
	staged   map[string]bool
	expanded string
}

// NewSelection creates a selection whose drafts hold the given editable fields.
func NewSelection(res *model.Resource) *Selection {
	fields := make([]string, 0, len(res.Fields))
	for _, d := range res.Fields {
		fields = append(fields, d.Name)
	}
	return &Selection{fields: fields, mode: ModeList}
}

// Mode returns the current view mode.
func (s *Selection) Mode() Mode { return s.mode }

// ID returns the selected record's identifier ("" in list mode).
func (s *Selection) ID() string { return s.id }

// Record returns a copy of the selected record.
func (s *Selection) Record() model.Record { return s.record.Clone() }

// Draft returns a copy of the staged fields.
func (s *Selection) Draft() model.Record { return s.draft.Clone() }

// Expanded returns the id of the expanded row, or "".
func (s *Selection) Expanded() string { return s.expanded }

// View opens record id in the detail view and snapshots its editable fields.
// Switching directly between records in detail mode is allowed.
func (s *Selection) View(id string, rec model.Record) error {
	if s.mode == ModeEdit {
		return fmt.Errorf("%w: view while editing", ErrInvalidTransition)
	}
	s.mode = ModeDetail
	s.id = id
	s.record = rec.Clone()
	s.rebase()
	return nil
}

// Edit moves from detail to edit with a fresh draft.
func (s *Selection) Edit() error {
	if s.mode != ModeDetail {
		return fmt.Errorf("%w: edit from %s", ErrInvalidTransition, s.mode)
	}
	s.mode = ModeEdit
	s.rebase()
	return nil
}

// Stage sets one draft field while editing.
func (s *Selection) Stage(field string, value any) error {
	if s.mode != ModeEdit {
		return fmt.Errorf("%w: stage field outside edit", ErrInvalidTransition)
	}
	s.draft[field] = value
	s.staged[field] = true
	return nil
}

// Changes returns the staged fields that differ from the selected record.
// Fields never staged are not sent, so a change the server confirmed while
// editing is not reverted on save.
func (s *Selection) Changes() map[string]any {
	out := map[string]any{}
	for k := range s.staged {
		v := s.draft[k]
		if !reflect.DeepEqual(s.record[k], v) {
			out[k] = v
		}
	}
	return out
}

// ChangedFields returns the names of changed draft fields, sorted.
func (s *Selection) ChangedFields() []string {
	changes := s.Changes()
	out := make([]string, 0, len(changes))
	for k := range changes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Saved completes an edit with the record the server confirmed.
func (s *Selection) Saved(rec model.Record) error {
	if s.mode != ModeEdit {
		return fmt.Errorf("%w: save outside edit", ErrInvalidTransition)
	}
	s.mode = ModeDetail
	s.record = rec.Clone()
	s.rebase()
	return nil
}

// Cancel discards the draft and returns to the detail view.
func (s *Selection) Cancel() error {
	if s.mode != ModeEdit {
		return fmt.Errorf("%w: cancel outside edit", ErrInvalidTransition)
	}
	s.mode = ModeDetail
	s.rebase()
	return nil
}

// Back returns to the list and drops the selection.
func (s *Selection) Back() error {
	if s.mode == ModeList {
		return fmt.Errorf("%w: already on the list", ErrInvalidTransition)
	}
	s.reset()
	return nil
}

// Refresh replaces the selection copy when rec is the selected record, so
// an open detail view never shows stale data. While editing, staged fields
// keep their draft values and every other field follows rec.
func (s *Selection) Refresh(id string, rec model.Record) {
	if s.mode == ModeList || id != s.id {
		return
	}
	s.record = rec.Clone()
	draft := s.draft
	s.draft = s.snapshot(rec)
	if s.mode != ModeEdit {
		s.staged = map[string]bool{}
		return
	}
	for k := range s.staged {
		s.draft[k] = draft[k]
	}
}

// Drop clears the selection when record id no longer exists.
func (s *Selection) Drop(id string) {
	if s.expanded == id {
		s.expanded = ""
	}
	if s.mode != ModeList && s.id == id {
		s.reset()
	}
}

// ToggleExpanded expands row id, or collapses it when already expanded. At
// most one row is expanded. It reports whether id is now expanded.
func (s *Selection) ToggleExpanded(id string) bool {
	if s.expanded == id {
		s.expanded = ""
		return false
	}
	s.expanded = id
	return true
}

func (s *Selection) reset() {
	s.mode = ModeList
	s.id = ""
	s.record = nil
	s.draft = nil
	s.staged = nil
}

// rebase starts a fresh draft from the selected record.
func (s *Selection) rebase() {
	s.draft = s.snapshot(s.record)
	s.staged = map[string]bool{}
}

func (s *Selection) snapshot(rec model.Record) model.Record {
	out := make(model.Record, len(s.fields))
	for _, f := range s.fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out.Clone()
}
