package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/huddle/internal/signaling"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/BioHazard786/huddle/internal/voice"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms the relay currently knows about",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		url, err := cfg.HTTPURL("/rooms")
		if err != nil {
			return err
		}

		stopSpinner := ui.RunSpinner("Fetching rooms...")
		rooms, err := signaling.FetchRooms(cmd.Context(), url)
		stopSpinner()
		if err != nil {
			return voice.NewError("list rooms", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.RoomsTable(rooms))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
}
