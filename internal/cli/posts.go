package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/pagedeck/internal/export"
	"github.com/ppiankov/pagedeck/internal/post"
	"github.com/spf13/cobra"
)

var (
	postsStatus string
	postsFormat string
	noColor     bool
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List page posts by status",
	RunE:  postsAction,
}

func init() {
	postsCmd.Flags().StringVar(&postsStatus, "status", string(post.StatusPublished), "post status: published, unpublished, scheduled")
	postsCmd.Flags().StringVar(&postsFormat, "format", export.FormatTerminal, "output format: terminal, json, markdown")
	postsCmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
}

func postsAction(cmd *cobra.Command, _ []string) error {
	if postsFormat == export.FormatXLSX {
		return fmt.Errorf("xlsx is a file format, use 'pagedeck export --format xlsx'")
	}
	formatter, err := export.New(postsFormat, !noColor)
	if err != nil {
		return err
	}

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	if err := a.login(ctx); err != nil {
		return err
	}

	status := post.ParseStatus(postsStatus)
	posts, err := a.svc.ListPosts(ctx, status)
	if err != nil {
		return err
	}

	page, _ := a.svc.Page()
	return formatter.Format(os.Stdout, export.Input{
		Page:        page,
		Status:      status,
		Posts:       posts,
		GeneratedAt: a.svc.Formatter().NowDisplay(),
	})
}
