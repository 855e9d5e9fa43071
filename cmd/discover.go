package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aroundme-app/aroundme/internal/agent"
)

var (
	discoverCity     string
	discoverProvince string
	discoverCountry  string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one discovery pass for a city and print the POIs as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if discoverCity == "" {
			return eris.New("--city is required")
		}

		env, err := newEnv(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		pois, err := env.Pipeline.Run(cmd.Context(), agent.Location{
			City:     discoverCity,
			Province: discoverProvince,
			Country:  discoverCountry,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pois)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverCity, "city", "", "target city name")
	discoverCmd.Flags().StringVar(&discoverProvince, "province", "", "province or state")
	discoverCmd.Flags().StringVar(&discoverCountry, "country", "", "country")
	rootCmd.AddCommand(discoverCmd)
}
