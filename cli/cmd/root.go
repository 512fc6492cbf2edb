package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpdrop/cli/internal/config"
	"github.com/BioHazard786/Warpdrop/cli/internal/ui"
	"github.com/BioHazard786/Warpdrop/internal/version"
)

var connFlags config.Options

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "warpdrop",
	Short:   "Peer-to-peer chat rooms over WebRTC",
	Long:    `WarpDrop joins a room shared with other devices and connects to every member directly over WebRTC. A rendezvous server only introduces the peers; messages travel over the peer connections. When the server cannot be reached WarpDrop falls back to a mirror and then to a local simulation so the session keeps working.`,
	Version: version.Version,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&connFlags.Domain, "domain", "d", "", "Custom signaling domain")
	flags.StringVar(&connFlags.MirrorDomain, "mirror", "", "Mirror signaling domain (non-production only)")
	flags.StringVar(&connFlags.Env, "env", "", "Deployment environment: production or development")
	flags.BoolVar(&connFlags.Insecure, "insecure", false, "Use http/ws instead of https/wss")
	flags.StringVar(&connFlags.DeviceType, "device", "", "Device type announced to the room: desktop, mobile or r1")
	flags.StringVar(&connFlags.Transport, "transport", "", "Signaling transport: ws (push) or http (poll)")
	flags.StringVarP(&connFlags.STUNServer, "stun", "s", "", "Custom STUN servers, comma separated")
	flags.StringVarP(&connFlags.TURNServer, "turn", "t", "", "Custom TURN server")
	flags.StringVarP(&connFlags.TURNUser, "turn-user", "u", "", "TURN username")
	flags.StringVarP(&connFlags.TURNPass, "turn-pass", "p", "", "TURN password")
	flags.BoolVarP(&connFlags.ForceRelay, "relay", "r", false, "Force relay mode")
	flags.DurationVar(&connFlags.PollInterval, "poll-interval", 0, "Mailbox poll interval for the http transport")
	flags.DurationVar(&connFlags.HeartbeatInterval, "heartbeat-interval", 0, "Heartbeat interval")
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
