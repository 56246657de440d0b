package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/BioHazard786/huddle/internal/version"
)

var (
	flagSignalingURL string
	flagUser         string
	flagSTUN         string
	flagTURN         string
	flagTURNUser     string
	flagTURNPass     string
	flagRelay        bool
	flagRingTimeout  time.Duration
	flagEnvFile      string
	flagInput        string
	flagRecord       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "huddle",
	Short:   "Peer-to-peer voice rooms and direct calls over WebRTC",
	Long:    `Huddle joins group voice rooms and places direct calls from the terminal. A small signaling relay introduces the peers; audio flows directly between them over WebRTC.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagSignalingURL, "signaling-url", "", "Signaling relay URL (or SIGNALING_URL)")
	pf.StringVarP(&flagUser, "user", "u", "", "Your user id (or HUDDLE_USER)")
	pf.StringVar(&flagSTUN, "stun", "", "Custom STUN server")
	pf.StringVar(&flagTURN, "turn", "", "Custom TURN server")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.BoolVar(&flagRelay, "relay", false, "Force all media through the TURN server")
	pf.DurationVar(&flagRingTimeout, "ring-timeout", 0, "How long a direct call may ring (or RING_TIMEOUT)")
	pf.StringVar(&flagEnvFile, "env-file", "", "Read settings from this file instead of .env")
	pf.StringVarP(&flagInput, "input", "i", "", "Ogg/Opus file to send instead of silence")
	pf.StringVar(&flagRecord, "record", "", "Write each remote party's audio to this directory")
}
