package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	stacfed "github.com/kailas-cloud/stacfed/pkg/sdk"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newSearchCommand(v *viper.Viper) *cobra.Command {
	var (
		apis    []string
		bbox    string
		params  stacfed.SearchParams
		pages   int
		details bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search collections across the configured catalogs",
		Example: `  stacfed-cli search --q "sea ice" --bbox -180,60,180,90
  stacfed-cli search --datetime 2020-01-01T00:00:00Z/.. --apis https://earth-search.aws.element84.com/v1 --pages 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bbox != "" {
				b, err := extent.ParseBBox(bbox)
				if err != nil {
					return err
				}
				params.BBox = &b
			}
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1")
			}

			c, err := newClient(v)
			if err != nil {
				return err
			}
			sess, err := stacfed.NewSession(cmd.Context(), c)
			if err != nil {
				return err
			}
			if len(apis) > 0 {
				if err := sess.SetActive(apis); err != nil {
					return err
				}
			}
			sess.Refresh(cmd.Context())

			out := newPrinter(cmd, output)
			if params.Q != "" {
				if lacking := sess.Lacking(stacfed.FreeText); len(lacking) > 0 {
					out.warn("free-text is matched locally for: " + strings.Join(lacking, ", "))
				}
			}

			if err := sess.Search(cmd.Context(), params); err != nil {
				return err
			}
			for page := 1; ; page++ {
				if err := out.page(sess, details); err != nil {
					return err
				}
				if page >= pages || !sess.HasNext() {
					break
				}
				if err := sess.Next(cmd.Context()); err != nil {
					return err
				}
			}
			out.footer(sess)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&apis, "apis", nil, "upstream catalog URLs to search (default: all configured)")
	f.StringVar(&bbox, "bbox", "", "bounding box west,south,east,north")
	f.StringVar(&params.Datetime, "datetime", "", "datetime interval start/end, '..' for an open bound")
	f.StringVar(&params.Q, "q", "", "free-text query")
	f.IntVar(&params.Limit, "limit", 0, "page size per upstream")
	f.StringVar(&params.HintLang, "hint", "", "attach code hints (python or r)")
	f.IntVar(&pages, "pages", 1, "number of pages to fetch")
	f.BoolVar(&details, "details", false, "show normalized extents and temporal ranges")
	f.StringVarP(&output, "output", "o", outputTable, "output format (table or json)")
	return cmd
}

func newNextCommand(v *viper.Viper) *cobra.Command {
	var (
		details bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "next <link>",
		Short: "Fetch the page behind a next link printed by search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			sess, err := stacfed.NewSession(cmd.Context(), c)
			if err != nil {
				return err
			}
			if err := sess.Follow(cmd.Context(), args[0]); err != nil {
				return err
			}
			out := newPrinter(cmd, output)
			if err := out.page(sess, details); err != nil {
				return err
			}
			out.footer(sess)
			return nil
		},
	}
	cmd.Flags().BoolVar(&details, "details", false, "show normalized extents and temporal ranges")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format (table or json)")
	return cmd
}

func newConformanceCommand(v *viper.Viper) *cobra.Command {
	var apis []string
	cmd := &cobra.Command{
		Use:   "conformance",
		Short: "List the conformance classes shared by the selected catalogs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			classes, err := c.Conformance(cmd.Context(), apis)
			if err != nil {
				return err
			}
			for _, class := range classes {
				fmt.Fprintln(cmd.OutOrStdout(), class)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&apis, "apis", nil, "upstream catalog URLs (default: all configured)")
	return cmd
}

func newHealthCommand(v *viper.Viper) *cobra.Command {
	var (
		apis   []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the selected catalogs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context(), apis)
			if err != nil {
				return err
			}
			return newPrinter(cmd, output).health(h)
		},
	}
	cmd.Flags().StringSliceVar(&apis, "apis", nil, "upstream catalog URLs (default: all configured)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format (table or json)")
	return cmd
}

func newAPIsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "apis",
		Short: "List the configured catalogs and their collection filters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			apis, err := c.APIs(cmd.Context())
			if err != nil {
				return err
			}
			newPrinter(cmd, outputTable).apis(apis)
			return nil
		},
	}
}

func newDocsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Print the server's OpenAPI document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			doc, err := c.Docs(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

func newPurgeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-cache",
		Short: "Drop the server's cached upstream documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			n, err := c.PurgeCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d cached documents\n", n)
			return nil
		},
	}
}
