package cli

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/BioHazard786/huddle/internal/voice"
)

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j"},
	Short:   "Join a group voice room",
	Long: `Join a named room and talk with everyone in it. Each member keeps one
direct WebRTC link to every other member. Without a room name a new,
memorable one is generated for you to share.

Examples:
  huddle join
  huddle join standup --user alice
  huddle join standup --input music.ogg --record ./recordings`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var roomID string
		if len(args) > 0 {
			roomID = args[0]
		}
		return joinRoom(cmd, roomID)
	},
}

func joinRoom(cmd *cobra.Command, roomID string) error {
	ctx := cmd.Context()
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if roomID == "" {
		roomID = voice.RoomName()
		ui.PrintInfof("Created room %s, share it with: huddle join %s", roomID, roomID)
	}

	m, err := OpenMedia(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	conn, err := NewConnectionContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	session := voice.NewSession(voice.SessionConfig{
		RoomID:   roomID,
		UserID:   cfg.UserID,
		Signaler: conn.Client,
		Events:   conn.Handler.Events(),
		Links:    m.Links,
		Capture:  m.Source,
	})

	if err := runView(ctx, ui.NewRoomModel(session), session.Run); err != nil {
		return err
	}
	ui.PrintSuccessf("Left %s", roomID)
	return nil
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
