package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/portal/internal/listview"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/ui"
)

const maxCellWidth = 40

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// listJSON is the --json shape of a list screen.
type listJSON struct {
	Resource   string           `json:"resource"`
	Items      []model.Record   `json:"items"`
	Pagination model.Pagination `json:"pagination"`
	Sort       string           `json:"sort,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func printListJSON(w io.Writer, st listview.State) error {
	items := st.Items
	if items == nil {
		items = []model.Record{}
	}
	return printJSON(w, listJSON{
		Resource:   st.Resource.Name,
		Items:      items,
		Pagination: st.Pagination,
		Sort:       st.Sort.String(),
		Error:      st.Banner,
	})
}

// printList renders a list screen: the error banner, then either the
// empty-state line or the table followed by the pager.
func printList(w io.Writer, st listview.State) {
	if st.HasError() {
		fmt.Fprintln(w, ui.RenderError("! "+st.Banner))
	}
	if st.IsEmpty() {
		fmt.Fprintln(w, ui.RenderMuted(st.EmptyMessage()))
		return
	}
	if len(st.Items) == 0 {
		return
	}

	res := st.Resource
	printTable(w, res, st.Items, st.SortIndicator, st.SelectedID)

	if st.Expanded != "" {
		for _, rec := range st.Items {
			if rec.ID(res.IDField) == st.Expanded {
				fmt.Fprintln(w)
				printDetail(w, res, rec, nil)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, pagerLine(st))
}

// printTable renders records as aligned columns. indicator, when set,
// decorates the header of the sorted column; the selected row is marked.
func printTable(w io.Writer, res *model.Resource, items []model.Record, indicator func(string) string, selected string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = strings.ToUpper(col)
		if indicator != nil {
			header[i] += indicator(col)
		}
	}
	fmt.Fprintln(tw, "  "+strings.Join(header, "\t"))
	for _, rec := range items {
		marker := "  "
		if selected != "" && rec.ID(res.IDField) == selected {
			marker = "> "
		}
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			cells[i] = truncate(model.FormatValue(rec[col]), maxCellWidth)
		}
		fmt.Fprintln(tw, marker+strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// pagerLine renders "Page 2 of 5 · 48 records · prev · next" with the
// unavailable directions dimmed.
func pagerLine(st listview.State) string {
	p := st.Pager()
	parts := []string{p.Label}
	if n := st.Pagination.TotalRecords; n > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", n, plural(n, "record")))
	}
	nav := func(label string, enabled bool) string {
		if enabled {
			return ui.RenderCommand(label)
		}
		return ui.RenderMuted(label)
	}
	parts = append(parts, nav("prev", p.PrevEnabled), nav("next", p.NextEnabled))
	return strings.Join(parts, " · ")
}

// printDetail renders one record as a card: the identifier, the editable
// fields in definition order, then any remaining keys alphabetically.
// fieldErrors are shown under the field they belong to.
func printDetail(w io.Writer, res *model.Resource, rec model.Record, fieldErrors map[string][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	shown := map[string]bool{res.IDField: true}
	fmt.Fprintf(tw, "%s:\t%s\n", res.IDField, rec.ID(res.IDField))

	line := func(key string) {
		shown[key] = true
		val := model.FormatValue(rec[key])
		if key == "status" {
			val = ui.RenderStatus(val)
		}
		fmt.Fprintf(tw, "%s:\t%s\n", key, val)
		for _, msg := range fieldErrors[key] {
			fmt.Fprintf(tw, "\t%s\n", ui.RenderError(msg))
		}
	}
	if rec.Has("status") || len(fieldErrors["status"]) > 0 {
		line("status")
	}
	for _, d := range res.Fields {
		if shown[d.Name] {
			continue
		}
		if rec.Has(d.Name) || len(fieldErrors[d.Name]) > 0 {
			line(d.Name)
		}
	}
	var rest []string
	for k := range rec {
		if !shown[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		line(k)
	}
	tw.Flush()
}

// printStats renders the summary cards: the total, every status in
// workflow order, then the categories.
func printStats(w io.Writer, res *model.Resource, st *model.Stats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%d\n", ui.RenderAccent("Total"), st.Total)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, ui.RenderAccent("By status"))
	seen := map[string]bool{}
	for _, s := range res.Statuses {
		seen[s] = true
		fmt.Fprintf(tw, "  %s\t%d\n", s, st.ByStatus[s])
	}
	for _, s := range sortedKeys(st.ByStatus) {
		if !seen[s] {
			fmt.Fprintf(tw, "  %s\t%d\n", s, st.ByStatus[s])
		}
	}
	if len(st.ByCategory) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, ui.RenderAccent("By category"))
		for _, c := range sortedKeys(st.ByCategory) {
			fmt.Fprintf(tw, "  %s\t%d\n", c, st.ByCategory[c])
		}
	}
	tw.Flush()
}

// printFieldErrors lists per-field problems from a rejected payload.
func printFieldErrors(w io.Writer, byField map[string][]string) {
	for _, field := range sortedKeys(byField) {
		for _, msg := range byField[field] {
			fmt.Fprintf(w, "  %s: %s\n", field, ui.RenderError(msg))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
