// cmd/libracat/cmd_items.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"libracat/internal/catalog"
	"libracat/internal/render"
	"strconv"

	"github.com/spf13/cobra"
)

type sessionFunc func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error

// withSession opens the catalog for one command and closes it afterwards.
func withSession(opts *options, run sessionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx, opts)
		if err != nil {
			return err
		}
		defer sess.Close()
		return run(ctx, sess, cmd, args)
	}
}

func newAddItemCmd(opts *options) *cobra.Command {
	var typeTag int
	cmd := &cobra.Command{
		Use:   "item <title>",
		Short: "Add a plain item",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVar(&typeTag, "type", 0, "Type tag")
	cmd.RunE = withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
		item, err := sess.svc.AddItem(ctx, args[0], typeTag)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added item %d: %s\n", item.ID, item.Title)
		return nil
	})
	return cmd
}

func newAddBookCmd(opts *options) *cobra.Command {
	var in catalog.BookInput
	cmd := &cobra.Command{
		Use:     "book",
		Short:   "Add a book",
		Example: `  libracat add book --title "Kindred" --author "Octavia Butler" --pages 264 --year 1979`,
		Args:    cobra.NoArgs,
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Title (required)")
	cmd.Flags().StringVar(&in.Author, "author", "", "Author (required)")
	cmd.Flags().IntVar(&in.PageCount, "pages", 0, "Page count")
	cmd.Flags().IntVar(&in.Year, "year", 0, "Publication year")
	cmd.Flags().IntVar(&in.Type, "type", 0, "Type tag")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("author")

	cmd.RunE = withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
		book, err := sess.svc.AddBook(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added book %d: %s by %s\n", book.ID, book.Title, book.Author)
		return nil
	})
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every item in catalog order",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.RunE = withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
		items, err := sess.svc.ListItems(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), items)
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.Table(items))
		return nil
	})
	return cmd
}

func newFindCmd(opts *options) *cobra.Command {
	var bookOnly bool
	cmd := &cobra.Command{
		Use:   "find <title>",
		Short: "Show the first item with exactly this title",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&bookOnly, "book", false, "Only match books")
	cmd.RunE = withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
		find := sess.svc.FindByTitle
		if bookOnly {
			find = sess.svc.FindBook
		}
		item, err := find(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.Table([]*catalog.Item{item}))
		return nil
	})
	return cmd
}

func newEditCmd(opts *options) *cobra.Command {
	var edit catalog.BookEdit
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Overwrite a book's title, author, page count and year",
		Long: `Overwrites the fields of the book with the given id. Fields whose flag
is not given keep their current value.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&edit.Title, "title", "", "New title")
	cmd.Flags().StringVar(&edit.Author, "author", "", "New author")
	cmd.Flags().IntVar(&edit.PageCount, "pages", 0, "New page count")
	cmd.Flags().IntVar(&edit.Year, "year", 0, "New publication year")

	cmd.RunE = withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		current, err := sess.svc.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsBook() {
			return fmt.Errorf("item with ID %d: %w", id, catalog.ErrNotABook)
		}

		flags := cmd.Flags()
		if !flags.Changed("title") {
			edit.Title = current.Title
		}
		if !flags.Changed("author") {
			edit.Author = current.Author
		}
		if !flags.Changed("pages") {
			edit.PageCount = current.PageCount
		}
		if !flags.Changed("year") {
			edit.Year = current.Year
		}

		book, err := sess.svc.EditBook(ctx, id, edit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.Table([]*catalog.Item{book}))
		return nil
	})
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <title>",
		Short: "Delete the first item with exactly this title",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
			item, err := sess.svc.DeleteByTitle(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d: %s\n", item.ID, item.Title)
			return nil
		}),
	}
}

func newViewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "view <id>",
		Short: "Count a view of a book",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			book, err := sess.svc.ViewBook(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d views\n", book.Title, book.Popularity)
			return nil
		}),
	}
}

func newChartCmd(opts *options) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Show the popularity chart",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVar(&width, "width", 40, "Width of the longest bar")
	cmd.RunE = withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
		entries, err := sess.svc.Popularity(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.Chart(entries, width))
		return nil
	})
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item ID %q: must be a whole number", s)
	}
	return id, nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
