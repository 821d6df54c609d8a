package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a natural-language search",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "k",
				Aliases: []string{"limit"},
				Usage:   "Maximum results per list",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "relevance, price_low or price_high",
			},
			&cli.BoolFlag{
				Name:  "in-stock",
				Usage: "Only show products that are in stock",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := openSession(ctx, c)
			if err != nil {
				return err
			}
			defer s.close()
			query := strings.Join(c.Args().Slice(), " ")
			res, err := s.exec.Search(ctx, query, executor.Options{
				K:           c.Int("k"),
				SortBy:      c.String("sort"),
				InStockOnly: c.Bool("in-stock"),
			})
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, renderResult(res))
			return nil
		},
	}
}

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:      "recommend",
		Usage:     "Recommend products similar to a named product",
		ArgsUsage: "<product name>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "k",
				Usage: "Maximum recommendations",
				Value: 5,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			name := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(name) == "" {
				return errors.New("a product name is required")
			}
			s, err := openSession(ctx, c)
			if err != nil {
				return err
			}
			defer s.close()
			recs := s.exec.Recommend(ctx, name, c.Int("k"))
			fmt.Fprint(os.Stdout, titleStyle.Render("Similar to "+name)+"\n")
			fmt.Fprint(os.Stdout, renderProducts(recs))
			return nil
		},
	}
}

func decomposeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decompose",
		Usage:     "Show how a query is interpreted",
		ArgsUsage: "<query>",
		Action: func(ctx context.Context, c *cli.Command) error {
			d := parser.Decompose(strings.Join(c.Args().Slice(), " "))
			fmt.Fprint(os.Stdout, renderDecomposition(d))
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show catalog and index statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := openSession(ctx, c)
			if err != nil {
				return err
			}
			defer s.close()
			fmt.Fprint(os.Stdout, renderStats(s.engine.Snapshot()))
			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a catalog file for invalid products",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				path = c.String("catalog")
			}
			if path == "" {
				return errors.New("a catalog file is required")
			}
			products, err := catalog.NewFileLoader(path).Load(ctx)
			if err != nil {
				return err
			}
			valid, verr := catalog.Validate(products)
			fmt.Fprint(os.Stdout, summaryStyle.Render(fmt.Sprintf("%d of %d products valid", len(valid), len(products)))+"\n")
			if verr != nil {
				fmt.Fprintln(os.Stdout, metaStyle.Render(verr.Error()))
				return fmt.Errorf("%d invalid products in %s", len(products)-len(valid), path)
			}
			return nil
		},
	}
}
