package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/pagedeck/internal/export"
	"github.com/ppiankov/pagedeck/internal/post"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportStatus string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write post insights to a file",
	Long:  "Export published posts with view counts (or posts of another status) as xlsx, json or markdown.",
	RunE:  exportAction,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "file format: xlsx, json, markdown (default export.format)")
	exportCmd.Flags().StringVar(&exportStatus, "status", string(post.StatusPublished), "post status to export")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default export.dir)")
}

func exportAction(cmd *cobra.Command, _ []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	format := exportFormat
	if format == "" {
		format = a.cfg.Export.Format
	}
	if format == export.FormatTerminal {
		return fmt.Errorf("terminal is not a file format, use 'pagedeck posts'")
	}
	formatter, err := export.New(format, false)
	if err != nil {
		return err
	}

	dir := exportOut
	if dir == "" {
		dir = a.cfg.Export.Dir
	}

	ctx := cmd.Context()
	if err := a.login(ctx); err != nil {
		return err
	}

	status := post.ParseStatus(exportStatus)
	posts, err := exportPosts(ctx, a, status)
	if err != nil {
		return err
	}

	tf := a.svc.Formatter()
	page, _ := a.svc.Page()
	name := export.FileName(string(status), tf.Stamp(), format)
	path, err := export.WriteFile(dir, name, formatter, export.Input{
		Page:        page,
		Status:      status,
		Posts:       posts,
		GeneratedAt: tf.NowDisplay(),
	})
	if err != nil {
		return err
	}

	a.svc.Record(ctx, store.ActivityInput{Action: store.ActionExport, Status: string(status), Detail: path})
	fmt.Printf("Exported %d %s posts to %s\n", len(posts), status, path)
	return nil
}

// exportPosts fetches published posts with views, or plain posts for other statuses.
func exportPosts(ctx context.Context, a *app, status post.Status) ([]post.Post, error) {
	if status != post.StatusPublished {
		return a.svc.ListPosts(ctx, status)
	}
	published, err := a.svc.PostInsights(ctx)
	if err != nil {
		return nil, err
	}
	posts := make([]post.Post, len(published))
	for i, p := range published {
		posts[i] = p
	}
	return posts, nil
}
