package main

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/ui"
	"github.com/spf13/cobra"
)

// annotationResource marks a command as belonging to a collection screen.
const annotationResource = "portal.resource"

var (
	// Unindented lines ending in ":" ("Collections:", "Screen:", "Flags:").
	reSection = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)
	// Subcommand names in the command lists.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)
)

// helpFunc renders cobra's usage text followed by portal sections: the
// collections the session role can open on the root command, and the
// screen configuration on collection commands.
func helpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)

		if cmd == cmd.Root() {
			writeRoleSection(&buf, model.Role(role))
		} else if res := helpResource(cmd); res != nil {
			writeScreenSection(&buf, res)
		}

		text := buf.String()
		if ui.ShouldUseColor() {
			text = colorizeHelp(text)
		}
		fmt.Fprint(out, text)
	}
}

// helpResource returns the effective screen for cmd or one of its parents.
// Help runs before overrides are loaded, so the built-in definition is used
// when none are.
func helpResource(cmd *cobra.Command) *model.Resource {
	for c := cmd; c != nil; c = c.Parent() {
		name, ok := c.Annotations[annotationResource]
		if !ok {
			continue
		}
		for _, res := range screens {
			if res.Name == name {
				return res
			}
		}
		res, err := model.LookupResource(name)
		if err != nil {
			return nil
		}
		return res
	}
	return nil
}

func writeRoleSection(w io.Writer, r model.Role) {
	var names []string
	for _, res := range model.ResourcesFor(r) {
		names = append(names, res.Name)
	}
	fmt.Fprintf(w, "\nRole %s:\n", r)
	if len(names) == 0 {
		fmt.Fprintln(w, "  no collections")
		return
	}
	fmt.Fprintf(w, "  opens %s\n", strings.Join(names, ", "))
}

func writeScreenSection(w io.Writer, res *model.Resource) {
	roles := make([]string, len(res.Roles))
	for i, r := range res.Roles {
		roles[i] = string(r)
	}
	sortBy := res.DefaultSort.String()
	if sortBy == "" {
		sortBy = "server order"
	}

	fmt.Fprintf(w, "\nScreen:\n")
	fmt.Fprintf(w, "  %-10s %s (id %s)\n", "endpoint", res.Path, res.IDField)
	fmt.Fprintf(w, "  %-10s %s\n", "search", strings.Join(res.SearchFields, ", "))
	fmt.Fprintf(w, "  %-10s %s\n", "filters", strings.Join(res.Categorical, ", "))
	fmt.Fprintf(w, "  %-10s %s\n", "statuses", strings.Join(res.Statuses, ", "))
	fmt.Fprintf(w, "  %-10s %s (%s sort)\n", "sort", sortBy, res.SortMode)
	fmt.Fprintf(w, "  %-10s %s after changes, %d per page\n", "reconcile", res.Reconcile, res.Limit)
	fmt.Fprintf(w, "  %-10s %s\n", "roles", strings.Join(roles, ", "))
}

func colorizeHelp(s string) string {
	s = reSection.ReplaceAllStringFunc(s, func(m string) string {
		return ui.RenderAccent(strings.TrimSpace(m))
	})
	return reCommand.ReplaceAllStringFunc(s, func(m string) string {
		parts := reCommand.FindStringSubmatch(m)
		return parts[1] + ui.RenderCommand(parts[2]) + parts[3]
	})
}
