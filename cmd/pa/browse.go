package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/listview"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/ui"
	"github.com/spf13/cobra"
)

const browseHelp = `Commands:
  ls | refresh            reload the current page
  n | next, p | prev      move between pages
  page <n>                jump to page n
  search [text]           set or clear the search
  filter <key>[=<value>]  set or clear a field filter
  sort <key>              sort by key; again to reverse
  expand <id>             show or hide a row's details
  view <id>               open a record
  edit                    edit the open record
  set <field=value>...    stage field changes
  save | cancel | back    finish editing, or return to the list
  status <id> <status> [notes...]
  new <field=value>...    create a record
  delete <id>             delete a record
  stats                   show summary counts
  q | quit                leave
`

func newBrowseCmd(name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse and edit records interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			crit, sort, err := listCriteria(cmd, res)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			// Confirmations are read from the same input as commands.
			prompter := ui.NewPrompter(os.Stdin, cmd.OutOrStdout(), true, assumeYes)
			ctl := newController(res, crit, sort, prompter)
			defer ctl.Close()
			return newBrowser(ctl, prompter, cmd.OutOrStdout()).run(ctx)
		},
	}
	addListFlags(cmd)
	return cmd
}

// browser is a line-oriented session over one list controller. Every
// command maps to a controller operation; the screen is redrawn from the
// controller's state after each one.
type browser struct {
	ctl *listview.Controller
	in  *ui.Prompter
	out io.Writer
}

func newBrowser(ctl *listview.Controller, in *ui.Prompter, out io.Writer) *browser {
	return &browser{ctl: ctl, in: in, out: out}
}

func (b *browser) run(ctx context.Context) error {
	_ = b.ctl.Load(ctx)
	b.render()
	for {
		line, err := b.in.ReadLine(b.prompt())
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(b.out)
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		quit, redraw, err := b.exec(ctx, fields[0], fields[1:])
		if quit {
			return nil
		}
		b.report(err)
		if redraw {
			b.render()
		}
	}
}

func (b *browser) prompt() string {
	st := b.ctl.State()
	switch st.Mode {
	case listview.ModeDetail:
		return fmt.Sprintf("%s %s> ", st.Resource.Name, st.SelectedID)
	case listview.ModeEdit:
		return fmt.Sprintf("%s %s (edit)> ", st.Resource.Name, st.SelectedID)
	default:
		return st.Resource.Name + "> "
	}
}

// exec runs one command. It reports whether the session ends and whether
// the screen should be redrawn.
func (b *browser) exec(ctx context.Context, verb string, args []string) (quit, redraw bool, err error) {
	ctl := b.ctl
	redraw = true
	switch strings.ToLower(verb) {
	case "q", "quit", "exit":
		return true, false, nil
	case "help", "?":
		fmt.Fprint(b.out, browseHelp)
		return false, false, nil
	case "ls", "list", "refresh":
		err = ctl.Refresh(ctx)
	case "n", "next":
		err = ctl.NextPage(ctx)
	case "p", "prev":
		err = ctl.PrevPage(ctx)
	case "page":
		if len(args) != 1 {
			return false, false, fmt.Errorf("usage: page <n>")
		}
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return false, false, fmt.Errorf("page must be a number, got %q", args[0])
		}
		err = ctl.SetPage(ctx, n)
	case "search":
		err = ctl.SetSearch(ctx, strings.Join(args, " "))
	case "filter":
		if len(args) == 0 {
			return false, false, fmt.Errorf("usage: filter <key>[=<value>]")
		}
		k, v, _ := strings.Cut(strings.Join(args, " "), "=")
		err = ctl.SetFilter(ctx, strings.TrimSpace(k), strings.TrimSpace(v))
	case "sort":
		if len(args) != 1 {
			return false, false, fmt.Errorf("usage: sort <key>")
		}
		err = ctl.ToggleSort(ctx, args[0])
	case "expand":
		if len(args) != 1 {
			return false, false, fmt.Errorf("usage: expand <id>")
		}
		ctl.ToggleExpanded(args[0])
	case "view", "open":
		if len(args) != 1 {
			return false, false, fmt.Errorf("usage: view <id>")
		}
		err = ctl.View(args[0])
	case "edit":
		err = ctl.Edit()
	case "set":
		if len(args) == 0 {
			return false, false, fmt.Errorf("usage: set <field=value>...")
		}
		for _, a := range args {
			k, v, ok := strings.Cut(a, "=")
			if !ok {
				return false, true, fmt.Errorf("invalid assignment %q (expected field=value)", a)
			}
			if err = ctl.StageField(k, v); err != nil {
				break
			}
		}
	case "save":
		err = ctl.Save(ctx)
	case "cancel":
		err = ctl.Cancel()
	case "back":
		err = ctl.Back()
	case "status":
		if len(args) < 2 {
			return false, false, fmt.Errorf("usage: status <id> <status> [notes...]")
		}
		err = ctl.UpdateStatus(ctx, args[0], args[1], strings.Join(args[2:], " "))
	case "new", "create":
		payload, parseErr := model.ParseAssignments(ctl.Resource(), args)
		if parseErr != nil {
			return false, false, parseErr
		}
		var rec model.Record
		if rec, err = ctl.Create(ctx, payload); err == nil {
			fmt.Fprintf(b.out, "Created %s\n", rec.ID(ctl.Resource().IDField))
		}
	case "delete", "rm":
		if len(args) != 1 {
			return false, false, fmt.Errorf("usage: delete <id>")
		}
		err = ctl.Delete(ctx, args[0])
	case "stats":
		st, statsErr := ctl.Stats(ctx)
		if statsErr != nil {
			return false, false, statsErr
		}
		printStats(b.out, ctl.Resource(), st)
		return false, false, nil
	default:
		return false, false, fmt.Errorf("unknown command %q (type help for a list)", verb)
	}
	return false, redraw, err
}

// report prints an error the screen will not show by itself. Failures the
// controller turned into a banner are left to render.
func (b *browser) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, listview.ErrNotConfirmed):
		fmt.Fprintln(b.out, ui.RenderMuted("Cancelled."))
	case client.UserMessage(err) == b.ctl.State().Banner:
	default:
		fmt.Fprintln(b.out, ui.RenderError(err.Error()))
	}
}

func (b *browser) render() {
	st := b.ctl.State()
	res := st.Resource
	switch st.Mode {
	case listview.ModeDetail:
		if st.HasError() {
			fmt.Fprintln(b.out, ui.RenderError("! "+st.Banner))
		}
		printDetail(b.out, res, st.Selected, nil)
	case listview.ModeEdit:
		if st.HasError() {
			fmt.Fprintln(b.out, ui.RenderError("! "+st.Banner))
		}
		printDetail(b.out, res, st.Selected.Merge(st.Draft), st.FieldErrors)
		fmt.Fprintln(b.out, ui.RenderMuted("set <field=value> to change, save to commit, cancel to discard"))
	default:
		printList(b.out, st)
	}
}
