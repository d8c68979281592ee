package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faishion/tryon-client/internal/constants"
	"github.com/faishion/tryon-client/internal/loader"
	"github.com/faishion/tryon-client/internal/models"
	"github.com/faishion/tryon-client/internal/progress"
	"github.com/faishion/tryon-client/internal/services"
)

// newProductsShowCmd creates the 'products show' command.
func newProductsShowCmd() *cobra.Command {
	var (
		search   string
		category string
		pages    int
	)

	cmd := &cobra.Command{
		Use:   "show <product-url>",
		Short: "Show the details of one product",
		Long: `Look a product up by its page URL and print its details.

The catalog has no single-product endpoint, so the deals feed is paged
through with the given filters until the product turns up or --pages pages
have been searched.`,
		Example: `  tryon products show https://shop.example.com/p/linen-shirt
  tryon products show --category Tops --pages 10 https://shop.example.com/p/linen-shirt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := resolveCategory(category)
			if err != nil {
				return err
			}
			if err := validatePaging(pages, 0); err != nil {
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
			l := svc.NewLoader(q)
			defer func() {
				l.Close()
				l.Wait()
			}()

			return showProduct(GetContext(), l, strings.TrimSpace(args[0]), pages, cmd.OutOrStdout(), progress.New(os.Stderr))
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Search text to narrow the feed")
	cmd.Flags().StringVar(&category, "category", constants.AllCategories, "Category filter")
	cmd.Flags().IntVarP(&pages, "pages", "p", 5, "Maximum number of pages to search")

	return cmd
}

// showProduct prints the product whose URL is url.
func showProduct(ctx context.Context, l *loader.Loader[models.Product], url string, pages int, out io.Writer, rep progress.Reporter) error {
	p, found, err := findProduct(ctx, l, url, pages, rep)
	if err != nil {
		return err
	}
	if !found {
		s := l.State()
		if renderFailure(out, s.Err) {
			return fmt.Errorf("failed to load products")
		}
		return fmt.Errorf("product %s not found in %d page(s)", url, s.Page)
	}
	renderProductDetail(out, p)
	return nil
}

// findProduct pages through l until a product with the given URL is loaded,
// the feed ends, a request fails or pages pages have been searched. A failed
// request is left in l's state.
func findProduct(ctx context.Context, l *loader.Loader[models.Product], url string, pages int, rep progress.Reporter) (models.Product, bool, error) {
	l.Start()
	if err := waitFor(ctx, l, rep, "Searching products"); err != nil {
		return models.Product{}, false, err
	}

	for {
		s := l.State()
		if s.Err != nil {
			return models.Product{}, false, nil
		}
		for _, p := range s.Items {
			if models.ProductID(p) == url {
				return p, true, nil
			}
		}
		if !s.HasMore || s.Page >= pages {
			return models.Product{}, false, nil
		}
		l.LoadMore()
		if err := waitFor(ctx, l, rep, fmt.Sprintf("Searching page %d", s.Page+1)); err != nil {
			return models.Product{}, false, err
		}
	}
}
