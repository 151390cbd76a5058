package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"propfinder/server/internal/api"
	"propfinder/server/internal/presentation"
	"propfinder/server/internal/search"
)

func newSearchCmd() *cobra.Command {
	var params api.SearchParams

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search property listings",
		Long:  "Filter the dataset by city, property type, bedrooms and size, optionally narrowed by name, price band or distance.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, params)
		},
	}

	cmd.Flags().StringVar(&params.City, "city", "", "city (required)")
	cmd.Flags().StringVar(&params.Type, "type", "", "property type (required)")
	cmd.Flags().StringVar(&params.Bedrooms, "bhk", "", "bedroom count (required)")
	cmd.Flags().StringVar(&params.Size, "size", "", "size in sqft, a single value or a range like 900-1100 (required)")
	cmd.Flags().StringVar(&params.Name, "name", "", "case-insensitive name substring")
	cmd.Flags().StringVar(&params.MinPrice, "min-price", "", "lowest price, e.g. 40 Lakh")
	cmd.Flags().StringVar(&params.MaxPrice, "max-price", "", "highest price, e.g. 1.2 Cr")
	cmd.Flags().StringVar(&params.Lat, "lat", "", "latitude of the search centre")
	cmd.Flags().StringVar(&params.Lng, "lng", "", "longitude of the search centre")
	cmd.Flags().StringVar(&params.RadiusKm, "radius-km", "", "search radius in kilometres")

	return cmd
}

func runSearch(cmd *cobra.Command, params api.SearchParams) error {
	q, err := params.Query()
	if err != nil {
		return err
	}

	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ds, err := loadDataset(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	records, err := search.NewCatalog(ds.Records).Search(q)
	if err != nil {
		return err
	}
	cards := presentation.NewCards(records, cfg.PriceProjection())

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), api.SearchResponse{Count: len(cards), Properties: cards})
	}
	if err := printCardTable(cmd.OutOrStdout(), cards); err != nil {
		return err
	}
	if len(cards) > 0 {
		stats := search.Summarize(records)
		fmt.Fprintf(cmd.OutOrStdout(), "Median price: %s\n", formatPriceOrDash(stats.MedianPrice))
	}
	return nil
}
