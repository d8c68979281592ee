package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/loader"
	"github.com/faishion/tryon-client/internal/models"
	"github.com/faishion/tryon-client/internal/progress"
	"github.com/faishion/tryon-client/internal/services"
	"github.com/faishion/tryon-client/internal/session"
	"github.com/faishion/tryon-client/internal/sortview"
)

// newHistoryCmd creates the 'history' command.
func newHistoryCmd() *cobra.Command {
	var (
		sortFlag string
		pages    int
		all      bool
	)

	keys := make([]string, 0, len(sortview.Keys))
	for _, k := range sortview.Keys {
		keys = append(keys, k.String())
	}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Review your virtual try-on history",
		Long: `List the try-on results stored for the signed-in user.

The user id is read from the session store (key "` + session.KeyUserID + `").
Sort keys: ` + strings.Join(keys, ", "),
		Example: `  tryon history
  tryon history --sort price-asc --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sortview.ParseKey(sortFlag)
			if err != nil {
				return err
			}
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1")
			}
			if all {
				pages = 0
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

			ctx := GetContext()
			svc := services.NewHistoryServiceFromConfig(cfg, a.httpClient, a.store, a.bus)
			l, err := svc.NewLoader(ctx)
			if errors.Is(err, services.ErrNotLoggedIn) {
				return fmt.Errorf("%w: set one with 'tryon session set %s <id>'", err, session.KeyUserID)
			}
			if err != nil {
				return err
			}
			defer func() {
				l.Close()
				l.Wait()
			}()

			return loadHistory(ctx, l, pages, key, a.bus, cmd.OutOrStdout(), progress.New(os.Stderr))
		},
	}

	cmd.Flags().StringVar(&sortFlag, "sort", sortview.RecencyDescending.String(), "Sort order: "+strings.Join(keys, ", "))
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().BoolVar(&all, "all", false, "Load every page")

	return cmd
}

// loadHistory loads up to pages pages (0 = all), sorts the result by key
// and prints it.
func loadHistory(ctx context.Context, l *loader.Loader[models.HistoryItem], pages int, key sortview.Key, bus *events.EventBus, out io.Writer, rep progress.Reporter) error {
	l.Start()
	if err := waitFor(ctx, l, rep, "Loading try-on history"); err != nil {
		return err
	}

	for loaded := 1; pages == 0 || loaded < pages; loaded++ {
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
	if bus != nil {
		bus.PublishSortChanged("history", key.String())
	}
	renderHistory(out, s, sortview.Sort(s.Items, key))
	if s.Err != nil {
		return fmt.Errorf("failed to load try-on history")
	}
	return nil
}
