package cmd

import (
	"pricedeck/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a pricing report",
	Long: `Submit a pricing report for a property and date range.

Provide either --address (criteria mode) or --listing-url (analyze a
specific listing page). The report runs asynchronously; use the printed
share ID with 'pricectl status' to poll for the result.

Example:
  pricectl submit --address "221B Baker Street, London" --start 2026-06-01 --end 2026-06-15
  pricectl submit --address "88 Ocean Dr, Miami" --start 2026-06-01 --end 2026-06-08 --bedrooms 3 --bathrooms 2 --max-guests 8
  pricectl submit --listing-url "https://example.com/rooms/42" --start 2026-06-01 --end 2026-06-15
  pricectl submit --listing-id 6f1a... --start 2026-07-01 --end 2026-07-15`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		address, _ := flags.GetString("address")
		listingURL, _ := flags.GetString("listing-url")
		listingID, _ := flags.GetString("listing-id")
		start, _ := flags.GetString("start")
		end, _ := flags.GetString("end")

		url := viper.GetString("url")
		key := viper.GetString("key")

		if start == "" || end == "" {
			cmd.Println("Error: --start and --end are required (YYYY-MM-DD)")
			return
		}

		if address == "" && listingURL == "" && listingID == "" {
			cmd.Println("Error: one of --address, --listing-url or --listing-id is required")
			return
		}

		req := api.SubmitReportRequest{
			Address:   address,
			StartDate: start,
			EndDate:   end,
			ListingID: listingID,
		}

		attrs := attributesFromFlags(cmd)
		if listingURL != "" {
			if attrs == nil {
				attrs = &api.ListingAttributesPatch{}
			}
			mode := "url"
			attrs.InputMode = &mode
			attrs.ListingURL = &listingURL
		}
		req.Attributes = attrs
		req.DiscountPolicy = policyFromFlags(cmd)

		if saveName, _ := flags.GetString("save-as"); saveName != "" {
			if key == "" {
				cmd.Println("API key not found. Saving a listing requires authentication; set --key or the PRICEDECK_KEY environment variable")
				return
			}
			req.SaveListing = true
			req.ListingName = saveName
		}

		client := NewReportClient(url, key)
		result, err := client.SubmitReport(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		if result.Status == "ready" {
			cmd.Printf("✓ Report ready (cached)!\nShare ID: %s\n", result.ShareID)
		} else {
			cmd.Printf("✓ Report submitted!\nShare ID: %s\nStatus: %s\n\nPoll with: pricectl status %s --watch\n", result.ShareID, result.Status, result.ShareID)
		}
	},
}

// attributesFromFlags builds an attribute patch from the optional
// property flags, or nil when none were set. Only flags the user
// actually passed become overrides, so --bedrooms 0 is an explicit
// override while an untouched flag leaves the base value alone.
func attributesFromFlags(cmd *cobra.Command) *api.ListingAttributesPatch {
	flags := cmd.Flags()
	set := false
	attrs := &api.ListingAttributesPatch{}

	if flags.Changed("property-type") {
		v, _ := flags.GetString("property-type")
		attrs.PropertyType = &v
		set = true
	}
	if flags.Changed("bedrooms") {
		v, _ := flags.GetInt("bedrooms")
		attrs.Bedrooms = &v
		set = true
	}
	if flags.Changed("bathrooms") {
		v, _ := flags.GetFloat64("bathrooms")
		attrs.Bathrooms = &v
		set = true
	}
	if flags.Changed("max-guests") {
		v, _ := flags.GetInt("max-guests")
		attrs.MaxGuests = &v
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

func policyFromFlags(cmd *cobra.Command) *api.DiscountPolicyPatch {
	flags := cmd.Flags()
	set := false
	policy := &api.DiscountPolicyPatch{}

	if flags.Changed("weekly-discount") {
		v, _ := flags.GetFloat64("weekly-discount")
		policy.WeeklyDiscountPct = &v
		set = true
	}
	if flags.Changed("monthly-discount") {
		v, _ := flags.GetFloat64("monthly-discount")
		policy.MonthlyDiscountPct = &v
		set = true
	}
	if flags.Changed("stacking-mode") {
		v, _ := flags.GetString("stacking-mode")
		policy.StackingMode = &v
		set = true
	}

	if !set {
		return nil
	}
	return policy
}

func init() {
	flags := submitCmd.Flags()
	flags.StringP("address", "a", "", "Property address (criteria mode)")
	flags.String("listing-url", "", "Listing page URL (url mode)")
	flags.String("listing-id", "", "Saved listing ID to submit from")
	flags.StringP("start", "s", "", "Start date, inclusive (YYYY-MM-DD)")
	flags.StringP("end", "e", "", "End date, exclusive (YYYY-MM-DD)")
	flags.String("property-type", "", "Property type (apartment, house, ...)")
	flags.Int("bedrooms", 0, "Number of bedrooms")
	flags.Float64("bathrooms", 0, "Number of bathrooms")
	flags.Int("max-guests", 0, "Maximum guest count")
	flags.StringSlice("amenities", []string{}, "Amenities (comma-separated)")
	flags.Float64("weekly-discount", 0, "Weekly discount percentage")
	flags.Float64("monthly-discount", 0, "Monthly discount percentage")
	flags.String("stacking-mode", "", "Discount stacking mode (compound, additive, best_only)")
	flags.String("save-as", "", "Save the input as a named listing (requires API key)")

	rootCmd.AddCommand(submitCmd)
}
