package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pricectl",
	Short: "Pricectl is a command line tool for the pricedeck pricing platform",
	Long: `pricectl is the command-line interface for the pricedeck short-term
rental pricing platform.

Pricedeck generates nightly pricing reports for rental properties. A report
is submitted with an address (or a listing URL), a date range, and optional
property attributes and discount policy; a worker fleet computes nightly
rates and the result is retrievable by its share ID.

Common workflows:

  Submit a report for an address:
    pricectl submit --address "221B Baker Street, London" --start 2026-06-01 --end 2026-06-15

  Submit a report for a specific listing page:
    pricectl submit --listing-url "https://example.com/rooms/42" --start 2026-06-01 --end 2026-06-15

  Poll a report until it finishes:
    pricectl status <share-id> --watch

  Manage saved listings:
    pricectl listings list
    pricectl listings create --name "Baker St flat" --address "221B Baker Street, London"
    pricectl listings rerun <listing-id> --start 2026-07-01 --end 2026-07-15

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    PRICEDECK_URL    API endpoint (default: http://localhost:6161)
    PRICEDECK_KEY    API key for authentication (pd_...)

For more information, visit: https://github.com/pricedeck/pricedeck`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".pricectl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".pricectl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "PRICEDECK_VARNAME"
	viper.SetEnvPrefix("PRICEDECK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pricectl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "Pricedeck Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("key", "k", "", "API key for authentication")
	viper.BindPFlag("key", rootCmd.PersistentFlags().Lookup("key"))
}
