package cmd

import (
	"pricedeck/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Manage saved listings",
	Long: `Manage saved listings.

A saved listing stores a property's address, attributes, and discount
policy so reports can be rerun for new date ranges without retyping the
input. All listings commands require an API key.`,
}

var listingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your saved listings",
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		key := viper.GetString("key")

		if key == "" {
			cmd.Println("API key not found. Please set it using the --key flag or the PRICEDECK_KEY environment variable")
			return
		}

		client := NewReportClient(url, key)
		result, err := client.ListListings()
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("List failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("List failed: %v\n", err)
			}
			return
		}

		if len(result.Listings) == 0 {
			cmd.Println("No saved listings")
			return
		}

		for _, l := range result.Listings {
			cmd.Printf("%s%s%s  %s\n", colorBold, l.Name, colorReset, l.ID)
			cmd.Printf("  %sAddress:%s %s\n", colorDim, colorReset, l.Address)
			if l.LatestReportID != nil {
				cmd.Printf("  %sLatest report:%s %s\n", colorDim, colorReset, *l.LatestReportID)
			}
		}
	},
}

var listingsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save a new listing",
	Long: `Save a new listing for later reruns.

Example:
  pricectl listings create --name "Baker St flat" --address "221B Baker Street, London" --bedrooms 2 --bathrooms 1`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		address, _ := flags.GetString("address")

		url := viper.GetString("url")
		key := viper.GetString("key")

		if key == "" {
			cmd.Println("API key not found. Please set it using the --key flag or the PRICEDECK_KEY environment variable")
			return
		}

		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		if address == "" {
			cmd.Println("Error: --address is required")
			return
		}

		client := NewReportClient(url, key)
		result, err := client.CreateListing(api.CreateListingRequest{
			Name:       name,
			Address:    address,
			Attributes: listingAttributesFromFlags(cmd),
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Create failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Create failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Listing saved!\nListing ID: %s\n", result.ID)
	},
}

var listingsRerunCmd = &cobra.Command{
	Use:   "rerun [listing_id]",
	Short: "Queue a fresh report from a saved listing",
	Long: `Queue a fresh report from a saved listing for a new date range.

Example:
  pricectl listings rerun 6f1a... --start 2026-07-01 --end 2026-07-15`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		listingID := args[0]

		flags := cmd.Flags()
		start, _ := flags.GetString("start")
		end, _ := flags.GetString("end")

		url := viper.GetString("url")
		key := viper.GetString("key")

		if key == "" {
			cmd.Println("API key not found. Please set it using the --key flag or the PRICEDECK_KEY environment variable")
			return
		}

		if start == "" || end == "" {
			cmd.Println("Error: --start and --end are required (YYYY-MM-DD)")
			return
		}

		client := NewReportClient(url, key)
		result, err := client.RerunListing(listingID, api.RerunListingRequest{
			StartDate: start,
			EndDate:   end,
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Rerun failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Rerun failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Report submitted!\nShare ID: %s\nStatus: %s\n", result.ShareID, result.Status)
	},
}

// listingAttributesFromFlags builds the full attribute bag for a new
// listing. Unlike submit's patch, a create carries concrete values, so
// unset flags simply stay at their zero value.
func listingAttributesFromFlags(cmd *cobra.Command) *api.ListingAttributes {
	flags := cmd.Flags()
	set := false
	attrs := &api.ListingAttributes{}

	if flags.Changed("property-type") {
		attrs.PropertyType, _ = flags.GetString("property-type")
		set = true
	}
	if flags.Changed("bedrooms") {
		attrs.Bedrooms, _ = flags.GetInt("bedrooms")
		set = true
	}
	if flags.Changed("bathrooms") {
		attrs.Bathrooms, _ = flags.GetFloat64("bathrooms")
		set = true
	}
	if flags.Changed("max-guests") {
		attrs.MaxGuests, _ = flags.GetInt("max-guests")
		set = true
	}
	if flags.Changed("amenities") {
		attrs.Amenities, _ = flags.GetStringSlice("amenities")
		set = true
	}

	if !set {
		return nil
	}
	return attrs
}

func init() {
	createFlags := listingsCreateCmd.Flags()
	createFlags.StringP("name", "n", "", "Name of the listing (required)")
	createFlags.StringP("address", "a", "", "Property address (required)")
	createFlags.String("property-type", "", "Property type (apartment, house, ...)")
	createFlags.Int("bedrooms", 0, "Number of bedrooms")
	createFlags.Float64("bathrooms", 0, "Number of bathrooms")
	createFlags.Int("max-guests", 0, "Maximum guest count")
	createFlags.StringSlice("amenities", []string{}, "Amenities (comma-separated)")

	rerunFlags := listingsRerunCmd.Flags()
	rerunFlags.StringP("start", "s", "", "Start date, inclusive (YYYY-MM-DD)")
	rerunFlags.StringP("end", "e", "", "End date, exclusive (YYYY-MM-DD)")

	listingsCmd.AddCommand(listingsListCmd)
	listingsCmd.AddCommand(listingsCreateCmd)
	listingsCmd.AddCommand(listingsRerunCmd)
	rootCmd.AddCommand(listingsCmd)
}
