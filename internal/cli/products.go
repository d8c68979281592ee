package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faishion/tryon-client/internal/constants"
	"github.com/faishion/tryon-client/internal/loader"
	"github.com/faishion/tryon-client/internal/models"
	"github.com/faishion/tryon-client/internal/progress"
	"github.com/faishion/tryon-client/internal/services"
)

// newProductsCmd creates the 'products' command.
func newProductsCmd() *cobra.Command {
	var (
		search      string
		category    string
		pages       int
		pageSize    int
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the deals feed",
		Long: `Browse the deals feed, optionally filtered by search text and category.

Categories: ` + strings.Join(constants.Categories, ", ") + `

With --interactive, commands are read from stdin:
  more              load the next page
  refresh           reload from the first page
  search [text]     change the search text (empty clears it)
  category <name>   change the category
  show <n>          show the details of the n-th listed product
  quit              exit

Use 'tryon products show <url>' to look one product up directly.`,
		Example: `  tryon products --search "linen shirt" --category Tops
  tryon products --pages 3
  tryon products --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := resolveCategory(category)
			if err != nil {
				return err
			}
			if err := validatePaging(pages, pageSize); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := services.NewCatalogServiceFromConfig(cfg, a.httpClient, a.bus)
			if err != nil {
				return err
			}

			q := svc.DefaultQuery()
			q.SearchText = search
			q.Category = cat
			if pageSize > 0 {
				q.PageSize = pageSize
			}

			l := svc.NewLoader(q)
			defer func() {
				l.Close()
				l.Wait()
			}()

			ctx := GetContext()
			out := cmd.OutOrStdout()
			rep := progress.New(os.Stderr)

			if interactive {
				return runProductsSession(ctx, l, cmd.InOrStdin(), out, rep)
			}
			return loadProductPages(ctx, l, pages, out, rep)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Search text (matched against product names)")
	cmd.Flags().StringVar(&category, "category", constants.AllCategories, "Category filter")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Items per page (default from config)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read paging and filter commands from stdin")

	cmd.AddCommand(newProductsShowCmd())

	return cmd
}

// validatePaging checks the --pages and --page-size flags. A page size of 0
// selects the config default.
func validatePaging(pages, pageSize int) error {
	if pageSize < 0 || pageSize > constants.MaxPageSize {
		return fmt.Errorf("--page-size must be between 1 and %d, or 0 for the config default", constants.MaxPageSize)
	}
	if pages < 1 {
		return fmt.Errorf("--pages must be at least 1")
	}
	return nil
}

// loadProductPages loads up to pages pages and prints the result.
func loadProductPages(ctx context.Context, l *loader.Loader[models.Product], pages int, out io.Writer, rep progress.Reporter) error {
	l.Start()
	if err := waitFor(ctx, l, rep, "Loading products"); err != nil {
		return err
	}

	for i := 1; i < pages; i++ {
		s := l.State()
		if s.Err != nil || !s.HasMore {
			break
		}
		l.LoadMore()
		if err := waitFor(ctx, l, rep, fmt.Sprintf("Loading page %d", s.Page+1)); err != nil {
			return err
		}
	}

	s := l.State()
	renderProducts(out, s)
	if s.Err != nil {
		return fmt.Errorf("failed to load products")
	}
	return nil
}

// runProductsSession drives l from line commands read from in until quit,
// end of input or cancellation of ctx.
func runProductsSession(ctx context.Context, l *loader.Loader[models.Product], in io.Reader, out io.Writer, rep progress.Reporter) error {
	l.Start()
	if err := waitFor(ctx, l, rep, "Loading products"); err != nil {
		return err
	}
	renderProducts(out, l.State())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		verb, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		arg = strings.TrimSpace(arg)

		var issued bool
		switch strings.ToLower(verb) {
		case "":
			continue
		case "quit", "q", "exit":
			return nil
		case "help", "?":
			fmt.Fprintln(out, "commands: more, refresh, search [text], category <name>, show <n>, quit")
			continue
		case "show":
			p, err := listedProduct(l.State(), arg)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
				continue
			}
			renderProductDetail(out, p)
			continue
		case "more", "m":
			issued = l.LoadMore()
			if !issued {
				if s := l.State(); !s.HasMore {
					fmt.Fprintln(out, mutedStyle.Render("No more products"))
				}
				continue
			}
		case "refresh", "r":
			issued = l.Refresh()
			if !issued {
				fmt.Fprintln(out, mutedStyle.Render("A request is already in flight"))
				continue
			}
		case "search", "s":
			issued = l.SetFilter(loader.FilterChange{Search: &arg})
		case "category", "c":
			cat, err := resolveCategory(arg)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
				continue
			}
			issued = l.SetFilter(loader.FilterChange{Category: &cat})
		default:
			fmt.Fprintf(out, "unknown command %q (try help)\n", verb)
			continue
		}

		if !issued {
			fmt.Fprintln(out, mutedStyle.Render("Filter unchanged"))
			continue
		}
		if err := waitFor(ctx, l, rep, "Loading products"); err != nil {
			return err
		}
		renderProducts(out, l.State())
	}
}

// listedProduct returns the product numbered arg (from 1) in the list of s.
func listedProduct(s loader.State[models.Product], arg string) (models.Product, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(s.Items) {
		return models.Product{}, fmt.Errorf("show needs a number from 1 to %d", len(s.Items))
	}
	return s.Items[n-1], nil
}

// waitFor shows rep while l has requests in flight.
func waitFor[T any](ctx context.Context, l *loader.Loader[T], rep progress.Reporter, description string) error {
	rep.Start(description)
	defer rep.Finish()
	return l.WaitContext(ctx)
}

// resolveCategory maps name case-insensitively onto a known category. An
// empty name means all categories.
func resolveCategory(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return constants.AllCategories, nil
	}
	for _, c := range constants.Categories {
		if strings.EqualFold(c, name) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q (choose from %s)", name, strings.Join(constants.Categories, ", "))
}
