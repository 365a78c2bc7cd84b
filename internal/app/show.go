package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"ath-watcher/internal/storage"
)

// Show prints the stored ATH and, where the backend keeps them, recent detections.
func (a *App) Show(ctx context.Context, out io.Writer, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Fprintf(out, "%s/%s all time high: %d\n", a.Config.Feed.Asset, a.Config.Feed.Currency, store.Load(ctx))

	lister, ok := store.(storage.EventLister)
	if !ok || opts.Limit <= 0 {
		return nil
	}

	events, err := lister.ListRecentEvents(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "no detections recorded")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPrevious\tATH")
	for _, ev := range events {
		fmt.Fprintf(writer, "%s\t%d\t%d\n", ev.CreatedAt.UTC().Format(time.RFC3339), ev.Previous, ev.Value)
	}
	return writer.Flush()
}
