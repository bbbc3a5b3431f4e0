package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bnema/convqueue/internal/domain"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and maintain queue items",
	}
	cmd.AddCommand(newItemsListCommand(ctx))
	cmd.AddCommand(newItemsPurgeCommand(ctx))
	return cmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items straight from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.close() }()

			items, err := st.queue.List(cmd.Context())
			if err != nil {
				return err
			}
			items = filterByStatus(items, statuses)
			sortByDateAdded(items)

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No queue items.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderItems(items, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show items with these statuses")
	return cmd
}

func newItemsPurgeCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete items added more than --days ago (daemon must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Queue.PurgeAfterDays
			}
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}

			return withExclusiveStore(cfg, func(st *stores) error {
				queue, err := offlineQueue(cmd.Context(), cfg, st)
				if err != nil {
					return err
				}
				defer queue.Close()

				n, err := queue.DeleteOldItems(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s older than %d days.\n", pluralItems(n), days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age threshold in days (default: queue.purgeAfterDays)")
	return cmd
}

func filterByStatus(items []*domain.QueueItem, statuses []string) []*domain.QueueItem {
	if len(statuses) == 0 {
		return items
	}
	want := make(map[domain.ItemStatus]bool, len(statuses))
	for _, s := range statuses {
		want[domain.ItemStatus(strings.ToLower(strings.TrimSpace(s)))] = true
	}
	out := items[:0]
	for _, item := range items {
		if want[item.Status] {
			out = append(out, item)
		}
	}
	return out
}

func sortByDateAdded(items []*domain.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DateAdded.Equal(items[j].DateAdded) {
			return items[i].DateAdded.Before(items[j].DateAdded)
		}
		return items[i].ID < items[j].ID
	})
}

func renderItems(items []*domain.QueueItem, now time.Time) string {
	headers := []string{"ID", "Asset", "Type", "Status", "Added", "Took", "File", "Detail"}
	aligns := []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		took := ""
		if d := item.Duration(); d > 0 {
			took = d.Round(time.Second).String()
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			strconv.FormatInt(item.AssetID, 10),
			string(item.ConversionType),
			string(item.Status),
			humanize.RelTime(item.DateAdded, now, "ago", "from now"),
			took,
			item.NewFilename,
			lastDetailLine(item.StatusDetail),
		})
	}
	return renderTable(headers, rows, aligns)
}

func lastDetailLine(detail string) string {
	detail = strings.TrimRight(detail, "\n")
	if i := strings.LastIndexByte(detail, '\n'); i >= 0 {
		return detail[i+1:]
	}
	return detail
}

func pluralItems(n int) string {
	if n == 1 {
		return "1 item"
	}
	return humanize.Comma(int64(n)) + " items"
}
