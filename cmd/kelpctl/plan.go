package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/Kelp/internal/flow"
	"github.com/BTreeMap/Kelp/internal/genai"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/planner"
	"github.com/BTreeMap/Kelp/internal/venue"
)

// newPlanCmd decomposes a description into plan steps without searching venues.
func newPlanCmd(root *rootOpts) *cobra.Command {
	var window string
	var vibes []string
	var rulesOnly bool

	cmd := &cobra.Command{
		Use:   "plan [description]",
		Short: "Break a description into plan steps",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			reg, err := root.registry(cfg)
			if err != nil {
				return err
			}
			var c genai.Completer
			if !rulesOnly {
				c = completer(cfg)
			}
			steps := planner.NewDefaultChain(c, reg).Decompose(cmd.Context(),
				strings.Join(args, " "), models.ParseTimeWindow(window), vibes)
			return outputJSON(cmd.OutOrStdout(), steps)
		},
	}
	cmd.Flags().StringVar(&window, "window", string(models.WindowEvening), "time of day: afternoon, evening or late night")
	cmd.Flags().StringSliceVar(&vibes, "vibes", nil, "comma-separated vibes")
	cmd.Flags().BoolVar(&rulesOnly, "rules", false, "skip the completion model and use keyword rules only")
	return cmd
}

// newGenerateCmd runs the full pipeline and prints the flow.
func newGenerateCmd(root *rootOpts) *cobra.Command {
	var req models.GenerateFlowRequest
	var crew int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate a complete flow with venues",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			key, err := cfg.RequireYelpKey()
			if err != nil {
				return err
			}
			reg, err := root.registry(cfg)
			if err != nil {
				return err
			}

			req.Description = strings.Join(args, " ")
			if cmd.Flags().Changed("crew") {
				req.CrewSize = &crew
			}
			if err := req.Validate(); err != nil {
				return err
			}

			yelp, err := venue.NewYelpClient(venue.WithAPIKey(key), venue.WithTaxonomy(reg), venue.WithTimeout(cfg.SearchTimeout))
			if err != nil {
				return err
			}
			gen := flow.NewGenerator(planner.NewDefaultChain(completer(cfg), reg), flow.NewAssembler(yelp))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return outputJSON(cmd.OutOrStdout(), gen.Generate(ctx, req.Scenario()))
		},
	}
	cmd.Flags().StringVar(&req.Location, "location", "", "city, address or \"lat,lon\"")
	cmd.Flags().StringVar(&req.Budget, "budget", "$$", "budget tier ($ to $$$$)")
	cmd.Flags().StringVar(&req.TimeWindow, "window", string(models.WindowEvening), "time of day: afternoon, evening or late night")
	cmd.Flags().StringSliceVar(&req.Vibes, "vibes", nil, "comma-separated vibes")
	cmd.Flags().IntVar(&crew, "crew", models.DefaultCrewSize, "crew size")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline")
	return cmd
}
