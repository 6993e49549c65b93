package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/Kelp/internal/chat"
	"github.com/BTreeMap/Kelp/internal/itinerary"
	"github.com/BTreeMap/Kelp/internal/models"
)

func readFlow(path string) (models.Flow, error) {
	var f models.Flow
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode flow %s: %w", path, err)
	}
	return f, nil
}

// newEditCmd applies one direct edit to a flow file.
func newEditCmd() *cobra.Command {
	var flowPath, action, stopID, name string
	var preserveTimes bool

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Move, remove or rename a stop in a flow file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readFlow(flowPath)
			if err != nil {
				return err
			}
			var patch *models.StopPatch
			if action == models.EditActionSwap {
				patch = &models.StopPatch{Name: &name}
			}
			out, err := itinerary.Engine{PreserveTimes: preserveTimes}.Apply(f, action, stopID, patch)
			if err != nil {
				return err
			}
			return outputJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&flowPath, "flow", "", "path to a flow JSON file")
	cmd.Flags().StringVar(&action, "action", "", "moveUp, moveDown, remove or swap")
	cmd.Flags().StringVar(&stopID, "stop", "", "stop id")
	cmd.Flags().StringVar(&name, "name", "", "new name for swap")
	cmd.Flags().BoolVar(&preserveTimes, "preserve-times", false, "keep stop times unchanged")
	_ = cmd.MarkFlagRequired("flow")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("stop")
	return cmd
}

// newChatCmd runs one assistant turn against a flow file.
func newChatCmd() *cobra.Command {
	var flowPath string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the assistant to change a flow",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if _, err := cfg.RequireOpenAIKey(); err != nil {
				return err
			}
			c := completer(cfg)
			if c == nil {
				return fmt.Errorf("completion client unavailable")
			}

			var f *models.Flow
			if flowPath != "" {
				loaded, err := readFlow(flowPath)
				if err != nil {
					return err
				}
				f = &loaded
			}

			req := models.ChatRequest{Message: strings.Join(args, " "), Flow: f}
			if err := req.Validate(); err != nil {
				return err
			}
			reply := chat.NewEditor(c, itinerary.Engine{}).Respond(cmd.Context(), req.Message, f, nil)
			if reply.Outcome != chat.OutcomeReply {
				return fmt.Errorf("%s", reply.Message)
			}
			return outputJSON(cmd.OutOrStdout(), models.ChatResponse{
				Message:     reply.Message,
				FlowChanges: reply.FlowChanges,
				Flow:        reply.Flow,
			})
		},
	}
	cmd.Flags().StringVar(&flowPath, "flow", "", "path to a flow JSON file")
	return cmd
}
