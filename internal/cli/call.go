package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/ui"
)

var callCmd = &cobra.Command{
	Use:     "call <user>",
	Aliases: []string{"c"},
	Short:   "Place a direct call",
	Long: `Ring another user who is running "huddle listen".

Examples:
  huddle call bob --user alice
  huddle call bob --ring-timeout 10s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return placeCall(cmd, args[0])
	},
}

func placeCall(cmd *cobra.Command, callee string) error {
	ctx := cmd.Context()
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.UserID == "" {
		return errNoUser
	}
	if callee == cfg.UserID {
		return errors.New("you cannot call yourself")
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

	caller := call.NewCaller(call.CallerConfig{
		UserID:      cfg.UserID,
		Callee:      callee,
		Signaler:    conn.Client,
		Events:      conn.Handler.Events(),
		Links:       m.Links,
		Capture:     m.Source,
		RingTimeout: cfg.RingTimeout,
	})

	view := ui.NewCallModel("calling "+callee, ui.CallActions{
		Status:     caller.Status,
		ToggleMute: caller.ToggleMute,
		Hangup: func() error {
			caller.Hangup()
			return nil
		},
		Quit: caller.Hangup,
	})

	err = runView(ctx, view, caller.Run)
	switch {
	case errors.Is(err, call.ErrDeclined):
		ui.PrintWarning(callee + " declined the call")
		return nil
	case errors.Is(err, call.ErrNoAnswer):
		ui.PrintWarning(callee + " did not answer")
		return nil
	case err != nil:
		return err
	}
	ui.PrintSuccess("Call ended")
	return nil
}

var listenCmd = &cobra.Command{
	Use:     "listen",
	Aliases: []string{"l"},
	Short:   "Wait for direct calls",
	Long: `Stay reachable under your user id and answer incoming calls.
Only one call is handled at a time; anyone else who calls meanwhile is
declined automatically.

Examples:
  huddle listen --user bob`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listen(cmd)
	},
}

func listen(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.UserID == "" {
		return errNoUser
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

	callee := call.NewCallee(call.CalleeConfig{
		UserID:      cfg.UserID,
		Signaler:    conn.Client,
		Events:      conn.Handler.Events(),
		Links:       m.Links,
		Capture:     m.Source,
		RingTimeout: cfg.RingTimeout,
	})

	view := ui.NewCallModel("listening as "+cfg.UserID, ui.CallActions{
		Status:     callee.Status,
		ToggleMute: callee.ToggleMute,
		Hangup:     callee.Hangup,
		Accept:     callee.Accept,
		Decline:    callee.Decline,
		Quit:       cancel,
	})

	return runView(ctx, view, callee.Run)
}

func init() {
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(listenCmd)
}
