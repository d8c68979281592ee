package cli

import (
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/faishion/tryon-client/internal/api"
	"github.com/faishion/tryon-client/internal/loader"
	"github.com/faishion/tryon-client/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	saleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const (
	nameWidth  = 40
	brandWidth = 20
)

// renderProducts prints the product list of s. A failed request and an
// empty result are reported differently.
func renderProducts(w io.Writer, s loader.State[models.Product]) {
	if renderFailure(w, s.Err) {
		return
	}
	if s.IsEmptyResult() {
		fmt.Fprintln(w, mutedStyle.Render("No products found"))
		return
	}
	if len(s.Items) == 0 {
		renderFooter(w, "products", 0, s.Page, s.HasMore)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("#"),
		headerStyle.Render("Name"),
		headerStyle.Render("Brand"),
		headerStyle.Render("Price"),
		headerStyle.Render("Was"),
	)
	for i, p := range s.Items {
		price := formatPrice(p.Price(), p.Currency)
		was := ""
		if p.IsOnSale {
			price = saleStyle.Render(price)
			was = mutedStyle.Render(formatPrice(p.OriginalPrice(), p.Currency))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			i+1,
			truncate(p.Name, nameWidth),
			truncate(p.Brand, brandWidth),
			price,
			was,
		)
	}
	tw.Flush()

	renderFooter(w, "products", len(s.Items), s.Page, s.HasMore)
}

// renderHistory prints items, already sorted, with the paging state of s.
func renderHistory(w io.Writer, s loader.State[models.HistoryItem], items []models.HistoryItem) {
	if renderFailure(w, s.Err) {
		return
	}
	if s.IsEmptyResult() {
		fmt.Fprintln(w, mutedStyle.Render("No try-on history yet"))
		return
	}
	if len(items) == 0 {
		renderFooter(w, "try-ons", 0, s.Page, s.HasMore)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("Date"),
		headerStyle.Render("Brand"),
		headerStyle.Render("Product"),
		headerStyle.Render("Price"),
		headerStyle.Render("Result"),
	)
	for _, item := range items {
		date := mutedStyle.Render("unknown")
		if !item.Timestamp.IsZero() {
			date = item.Timestamp.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			date,
			truncate(item.Product.BrandName, brandWidth),
			truncate(item.Product.ProductName, nameWidth),
			formatPrice(item.Product.Price, item.Product.Currency),
			item.ResultImageURL,
		)
	}
	tw.Flush()

	renderFooter(w, "try-ons", len(s.Items), s.Page, s.HasMore)
}

// renderProductDetail prints every field of p, one per line.
func renderProductDetail(w io.Writer, p models.Product) {
	fmt.Fprintln(w, headerStyle.Render(p.Name))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if p.Brand != "" {
		fmt.Fprintf(tw, "Brand:\t%s\n", p.Brand)
	}
	price := formatPrice(p.Price(), p.Currency)
	if p.IsOnSale {
		price = saleStyle.Render(price+" on sale") + " " +
			mutedStyle.Render("was "+formatPrice(p.OriginalPrice(), p.Currency))
	}
	fmt.Fprintf(tw, "Price:\t%s\n", price)
	if p.Image != "" {
		fmt.Fprintf(tw, "Image:\t%s\n", p.Image)
	}
	fmt.Fprintf(tw, "Link:\t%s\n", p.URL)
	tw.Flush()
}

func renderFailure(w io.Writer, err error) bool {
	if err == nil {
		return false
	}
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
	if hint := failureHint(err); hint != "" {
		fmt.Fprintln(w, mutedStyle.Render(hint))
	}
	return true
}

// failureHint suggests what to do about a failed fetch, or returns "".
func failureHint(err error) string {
	switch status := api.StatusOf(err); {
	case status == nethttp.StatusUnauthorized || status == nethttp.StatusForbidden:
		return fmt.Sprintf("HTTP %d: the server refused the request; check the [api] URLs and your session", status)
	case status == nethttp.StatusTooManyRequests:
		return fmt.Sprintf("HTTP %d: rate limited, wait a moment and refresh", status)
	case status >= 500:
		return fmt.Sprintf("HTTP %d: the server is having trouble, refresh to retry", status)
	case status != 0:
		return fmt.Sprintf("HTTP %d", status)
	}

	switch api.KindOf(err) {
	case api.KindNetwork:
		return "check your connection and the [proxy] settings"
	case api.KindTimeout:
		return "no answer within fetch_timeout, refresh to retry"
	case api.KindParse:
		return "unexpected response body; is catalog_url pointing at the feed?"
	}
	return ""
}

func renderFooter(w io.Writer, noun string, count, page int, hasMore bool) {
	more := "end of list"
	if hasMore {
		more = "more available"
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d %s, %d page(s) loaded, %s", count, noun, page, more)))
}

// formatPrice renders amount with two decimals. Symbol currencies ("$")
// prefix the amount, codes ("EUR") follow it.
func formatPrice(amount decimal.Decimal, currency string) string {
	s := amount.StringFixed(2)
	switch {
	case currency == "":
		return s
	case len(currency) == 3 && strings.ToUpper(currency) == currency:
		return s + " " + currency
	default:
		return currency + s
	}
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
