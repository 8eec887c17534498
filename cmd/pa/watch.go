package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/config"
	"github.com/alfredjeanlab/portal/internal/events"
	"github.com/alfredjeanlab/portal/internal/listview"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

const watchDebounce = 200 * time.Millisecond

func newWatchCmd(name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print records as they are created or changed",
		Long: `Print the records on the selected page, then print them again whenever
they change. Changes arrive from NATS (--via nats, the default when a NATS
URL is configured), from the server's event stream (--via sse), or by
polling (--via poll).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := screen(name)
			if err != nil {
				return err
			}
			crit, sort, err := listCriteria(cmd, res)
			if err != nil {
				return err
			}
			interval, _ := cmd.Flags().GetDuration("interval")
			once, _ := cmd.Flags().GetBool("once")
			via, _ := cmd.Flags().GetString("via")

			ctx, cancel := commandContext()
			defer cancel()

			ctl := newController(res, crit, sort, nil)
			defer ctl.Close()
			w := &watcher{
				ctl:    ctl,
				res:    res,
				out:    cmd.OutOrStdout(),
				errOut: cmd.ErrOrStderr(),
				seen:   map[string]string{},
			}

			if err := ctl.Load(ctx); err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}
			w.report()
			if once {
				return nil
			}

			if via == "auto" {
				via = "poll"
				if clientCfg.NATSURL != "" {
					via = "nats"
				}
			}
			switch via {
			case "nats":
				if clientCfg.NATSURL == "" {
					return fmt.Errorf("--via nats needs PORTAL_NATS_URL or a remote with a NATS URL")
				}
				return w.watchNATS(ctx, clientCfg.NATSURL)
			case "sse":
				return w.watchSSE(ctx, clientCfg.HTTPURL, sessionHeaders(clientCfg))
			case "poll":
				return w.watchPoll(ctx, interval)
			default:
				return fmt.Errorf("unknown --via %q (must be auto, nats, sse or poll)", via)
			}
		},
	}
	addListFlags(cmd)
	cmd.Flags().Duration("interval", 5*time.Second, "polling interval")
	cmd.Flags().Bool("once", false, "exit after the first query")
	cmd.Flags().String("via", "auto", "change source: auto, nats, sse or poll")
	return cmd
}

// watcher re-queries one screen and prints the records that are new or
// changed since they were last printed.
type watcher struct {
	ctl    *listview.Controller
	res    *model.Resource
	out    io.Writer
	errOut io.Writer
	seen   map[string]string
}

// refresh reloads the page. A failed reload is reported and the watch goes
// on; the records already printed stay valid.
func (w *watcher) refresh(ctx context.Context) {
	if err := w.ctl.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintln(w.errOut, ui.RenderError("! "+client.UserMessage(err)))
		return
	}
	w.report()
}

func (w *watcher) report() {
	changed := diffRecords(w.ctl.Visible(), w.res.IDField, w.seen)
	if len(changed) == 0 {
		return
	}
	if jsonOutput {
		_ = printJSON(w.out, changed)
		return
	}
	fmt.Fprintln(w.out, ui.RenderMuted(fmt.Sprintf("%s  %d %s",
		time.Now().Format("15:04:05"), len(changed), plural(len(changed), "change"))))
	printTable(w.out, w.res, changed, nil, "")
	fmt.Fprintln(w.out)
}

// follow re-queries whenever a change arrives on ch, debounced, and
// immediately after reconnect fires.
func (w *watcher) follow(ctx context.Context, ch <-chan events.RecordChanged, reconnect <-chan struct{}) error {
	debounce := time.NewTimer(0)
	debounce.Stop()
	// Drain the timer channel in case it fired between NewTimer and Stop.
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("event stream closed")
			}
			slog.Debug("record changed", "topic", e.Topic(), "id", e.ID, "actor", e.Actor)
			debounce.Reset(watchDebounce)
		case <-reconnect:
			debounce.Reset(0)
		case <-debounce.C:
			w.refresh(ctx)
		}
	}
}

// watchNATS follows the resource's change events on NATS.
func (w *watcher) watchNATS(ctx context.Context, natsURL string) error {
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Changes(w.res.Name)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	return w.follow(ctx, ch, reconnectCh)
}

// watchSSE follows the server's event stream for the resource.
func (w *watcher) watchSSE(ctx context.Context, baseURL string, header http.Header) error {
	body, err := openEventStream(ctx, baseURL, header, w.res.Name)
	if err != nil {
		return err
	}
	defer body.Close()
	return w.follow(ctx, readChanges(body), nil)
}

// watchPoll re-queries at a fixed interval.
func (w *watcher) watchPoll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// sessionHeaders identifies the session the way the HTTP client does.
func sessionHeaders(cfg *config.ClientConfig) http.Header {
	h := http.Header{}
	if cfg.Token != "" {
		h.Set("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.User != "" {
		h.Set("X-Portal-User", cfg.User)
	}
	if cfg.Role != "" {
		h.Set("X-Portal-Role", string(cfg.Role))
	}
	return h
}

// openEventStream subscribes to the server's change stream for one resource.
func openEventStream(ctx context.Context, baseURL string, header http.Header, resource string) (io.ReadCloser, error) {
	u := strings.TrimRight(baseURL, "/") + "/v1/events/stream?resource=" + url.QueryEscape(resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("opening event stream: HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// readChanges decodes the change carried by each event in an SSE body,
// skipping data that is not a change. The channel closes when the body ends.
func readChanges(r io.Reader) <-chan events.RecordChanged {
	ch := make(chan events.RecordChanged, 16)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data:")
			if !ok {
				continue
			}
			e, err := events.Decode([]byte(strings.TrimSpace(data)))
			if err != nil {
				slog.Debug("skipping event stream data", "error", err)
				continue
			}
			ch <- e
		}
	}()
	return ch
}

// diffRecords returns the records that are new or changed since they were
// last seen and updates seen in place. A record's version is its encoded
// content, so a change within the same updated_at second still counts.
func diffRecords(items []model.Record, idField string, seen map[string]string) []model.Record {
	var changed []model.Record
	for _, rec := range items {
		data, _ := json.Marshal(rec)
		version := string(data)
		id := rec.ID(idField)
		if prev, ok := seen[id]; !ok || prev != version {
			changed = append(changed, rec)
		}
		seen[id] = version
	}
	return changed
}
