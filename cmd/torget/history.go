package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/torhttp/internal/config"
	"github.com/nao1215/torhttp/internal/history"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "Show past fetches from the history database",
		Long: `History lists previously recorded fetches, newest first.
An optional host argument filters to that host.

Examples:
  # List recent fetches
  torget history

  # List fetches for one host
  torget history example.onion

  # List the hosts present in the history
  torget history --hosts

  # Export the history as a Markdown table
  torget history --markdown example.onion`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of records to show (0 for all)")
	cmd.Flags().Bool("hosts", false, "List distinct hosts instead of records")
	cmd.Flags().BoolP("markdown", "m", false, "Output the records as Markdown")
	cmd.Flags().String("dir", "", "History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	listHosts, err := cmd.Flags().GetBool("hosts")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	if dir == "" {
		dir = config.XDGDataDir()
	}

	db, err := history.Open(dir, history.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no fetch history found (run a fetch first): %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	if listHosts {
		hosts, err := db.ListHosts(ctx)
		if err != nil {
			return err
		}
		for _, host := range hosts {
			fmt.Fprintln(cmd.OutOrStdout(), host)
		}
		return nil
	}

	var host string
	if len(args) == 1 {
		host = args[0]
	}

	records, err := db.ListFetches(ctx, host, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No fetch records found.")
		return nil
	}

	if asMarkdown {
		return writeMarkdownHistory(cmd.OutOrStdout(), host, records)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSTATUS\tSIZE\tDURATION\tURL")
	for _, r := range records {
		status := fmt.Sprintf("%d", r.StatusCode)
		if r.Error != "" {
			status = "ERR"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			status,
			r.BodySize,
			r.Duration.Round(time.Millisecond),
			r.URL,
		)
	}
	return w.Flush()
}

// writeMarkdownHistory renders the records as a Markdown document.
func writeMarkdownHistory(w io.Writer, host string, records []history.FetchRecord) error {
	md := markdown.NewMarkdown(w)

	title := "torget Fetch History"
	if host != "" {
		title += ": " + host
	}
	md.H1(title)
	md.PlainText("")

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := strconv.Itoa(r.StatusCode)
		if r.Error != "" {
			status = "error: " + r.Error
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Method,
			status,
			strconv.FormatInt(r.BodySize, 10),
			r.Duration.Round(time.Millisecond).String(),
			"`" + r.URL + "`",
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Time", "Method", "Status", "Bytes", "Duration", "URL"},
		Rows:   rows,
	})

	return md.Build()
}
