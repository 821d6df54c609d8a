package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/category"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	priceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	stockStyles = map[catalog.StockStatus]lipgloss.Style{
		catalog.InStock:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		catalog.LowStock:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		catalog.OutOfStock: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	titleCaser = cases.Title(language.English)
)

func categoryTitle(c category.Category) string {
	return titleCaser.String(strings.ReplaceAll(string(c), "_", " "))
}

func stockLabel(s catalog.StockStatus) string {
	label := strings.ReplaceAll(string(s), "_", " ")
	if style, ok := stockStyles[s]; ok {
		return style.Render(label)
	}
	return label
}

func renderProducts(products []catalog.Product) string {
	if len(products) == 0 {
		return noDataStyle.Render("No products found") + "\n"
	}
	var b strings.Builder
	for i, p := range products {
		fmt.Fprintf(&b, "%2d. %s  %s  %s\n", i+1, p.Name, priceStyle.Render(fmt.Sprintf("$%.2f", p.Price)), stockLabel(p.StockStatus))
		fmt.Fprintf(&b, "    %s\n", metaStyle.Render(p.ID+" · "+p.Category))
	}
	return b.String()
}

func renderResult(res *executor.SearchResult) string {
	var b strings.Builder
	query := res.Query
	if strings.TrimSpace(query) == "" {
		query = "(all products)"
	}
	b.WriteString(titleStyle.Render("Search: "+query) + "\n")
	if res.Grouped {
		for _, g := range res.Groups {
			b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", categoryTitle(g.Category), len(g.Products))) + "\n")
			b.WriteString(renderProducts(g.Products))
		}
	} else {
		b.WriteString(renderProducts(res.Products))
	}
	b.WriteString("\n" + summaryStyle.Render(fmt.Sprintf("%d shown of %d matching", res.Returned(), res.TotalHits)) + "\n")
	return b.String()
}

func renderDecomposition(d parser.Decomposition) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Query plan") + "\n")
	fmt.Fprintf(&b, "Terms:      %s\n", orNone(d.Terms))
	cats := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		cats[i] = categoryTitle(c)
	}
	fmt.Fprintf(&b, "Categories: %s\n", orNone(cats))
	price := metaStyle.Render("none")
	if d.PriceFilter != nil {
		if math.IsInf(d.PriceFilter.Max, 1) {
			price = priceStyle.Render(fmt.Sprintf("$%.2f and up", d.PriceFilter.Min))
		} else {
			price = priceStyle.Render(fmt.Sprintf("$%.2f to $%.2f", d.PriceFilter.Min, d.PriceFilter.Max))
		}
	}
	fmt.Fprintf(&b, "Price:      %s\n", price)
	return b.String()
}

func renderStats(snap *indexer.Snapshot) string {
	stats := snap.Index.Stats()
	byStock := make(map[catalog.StockStatus]int)
	for _, p := range snap.Products {
		byStock[p.StockStatus]++
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Catalog") + "\n")
	fmt.Fprintf(&b, "Products:        %d\n", len(snap.Products))
	fmt.Fprintf(&b, "Indexed terms:   %d\n", stats.Terms)
	fmt.Fprintf(&b, "Total tokens:    %d\n", stats.TotalTokens)
	fmt.Fprintf(&b, "Avg doc length:  %.2f\n", stats.AvgDocLength)
	b.WriteString(headerStyle.Render("Stock") + "\n")
	for _, s := range []catalog.StockStatus{catalog.InStock, catalog.LowStock, catalog.OutOfStock} {
		fmt.Fprintf(&b, "  %-14s %d\n", stockLabel(s), byStock[s])
	}
	b.WriteString(headerStyle.Render("Categories") + "\n")
	for _, c := range category.All {
		n := 0
		for _, p := range snap.Products {
			if category.Matches(p, c) {
				n++
			}
		}
		if n > 0 {
			fmt.Fprintf(&b, "  %-14s %d\n", categoryTitle(c), n)
		}
	}
	return b.String()
}

func orNone(items []string) string {
	if len(items) == 0 {
		return metaStyle.Render("none")
	}
	return strings.Join(items, ", ")
}
