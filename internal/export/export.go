// Package export writes JSONL snapshots of portal records: either the view a
// screen currently shows or every record the backend holds.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/portal/internal/listview"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/store"
)

// Section is the records of one resource in a snapshot.
type Section struct {
	Resource string
	IDField  string
	Records  []model.Record
}

// View describes the screen a snapshot was taken from.
type View struct {
	Resource   string               `json:"resource"`
	Criteria   model.FilterCriteria `json:"criteria"`
	Sort       string               `json:"sort,omitempty"`
	Pagination model.Pagination     `json:"pagination"`
}

// Snapshot is everything one JSONL export contains.
type Snapshot struct {
	Taken    time.Time
	View     *View
	Sections []Section
}

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version   string         `json:"version"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Counts    map[string]int `json:"counts"`
	View      *View          `json:"view,omitempty"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string       `json:"type"`
	Data model.Record `json:"data"`
}

// WriteJSONL writes snap as a header line followed by one line per record.
// Records keep their section order.
func WriteJSONL(w io.Writer, snap Snapshot) error {
	if snap.Taken.IsZero() {
		snap.Taken = time.Now().UTC()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: snap.Taken,
		Counts:    snap.counts(),
		View:      snap.View,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, s := range snap.Sections {
		for _, rec := range s.Records {
			if err := enc.Encode(record{Type: s.Resource, Data: rec}); err != nil {
				return fmt.Errorf("encode %s %s: %w", s.Resource, rec.ID(s.IDField), err)
			}
		}
	}
	return nil
}

func (snap Snapshot) counts() map[string]int {
	counts := make(map[string]int, len(snap.Sections))
	for _, s := range snap.Sections {
		counts[s.Resource] += len(s.Records)
	}
	return counts
}

// Payload is an encoded snapshot with what destinations need to name and
// label it.
type Payload struct {
	Data   []byte
	Taken  time.Time
	Counts map[string]int // records per resource
	View   string         // collection of a screen export, empty for a full one
}

// Encode renders snap as JSONL.
func Encode(snap Snapshot) (Payload, error) {
	if snap.Taken.IsZero() {
		snap.Taken = time.Now().UTC()
	}
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, snap); err != nil {
		return Payload{}, err
	}
	p := Payload{Data: buf.Bytes(), Taken: snap.Taken, Counts: snap.counts()}
	if snap.View != nil {
		p.View = snap.View.Resource
	}
	return p, nil
}

// FromView captures the records a screen currently displays, in display
// order, together with the criteria that produced them.
func FromView(st listview.State) Snapshot {
	return Snapshot{
		Taken: time.Now().UTC(),
		View: &View{
			Resource:   st.Resource.Name,
			Criteria:   st.Criteria,
			Sort:       st.Sort.String(),
			Pagination: st.Pagination,
		},
		Sections: []Section{{
			Resource: st.Resource.Name,
			IDField:  st.Resource.IDField,
			Records:  st.Items,
		}},
	}
}

// FromStore reads every record of the given resources. Records are sorted
// by identifier so consecutive snapshots diff cleanly.
func FromStore(ctx context.Context, s store.Store, resources []*model.Resource) (Snapshot, error) {
	snap := Snapshot{Taken: time.Now().UTC()}
	for _, res := range resources {
		recs, _, err := s.ListRecords(ctx, res, store.Query{Criteria: model.FilterCriteria{Page: 1}})
		if err != nil {
			return Snapshot{}, fmt.Errorf("list %s: %w", res.Name, err)
		}
		idField := res.IDField
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].ID(idField) < recs[j].ID(idField)
		})
		snap.Sections = append(snap.Sections, Section{Resource: res.Name, IDField: idField, Records: recs})
	}
	return snap, nil
}
