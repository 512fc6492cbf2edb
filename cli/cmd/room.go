package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
	"github.com/BioHazard786/Warpdrop/cli/internal/ui"
)

var roomCmd = &cobra.Command{
	Use:   "room <room-id>",
	Short: "Show who is in a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRoom(cmd.Context(), args[0])
	},
}

func showRoom(ctx context.Context, roomID string) error {
	cfg, err := LoadConfig(connFlags)
	if err != nil {
		return err
	}

	client := signaling.NewHTTPClient(cfg.SignalingURL, slog.Default())
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	spin := ui.NewLineSpinner("Looking up room...").Start()
	info, err := client.RoomInfo(ctx, roomID)
	spin.Stop()

	switch {
	case errors.Is(err, signaling.ErrRoomNotFound):
		ui.PrintWarningf("Room %s is empty", roomID)
		return nil
	case errors.Is(err, signaling.ErrUnreachable):
		return fmt.Errorf("signaling server %s is unreachable", cfg.Domain)
	case err != nil:
		return err
	}

	fmt.Println(ui.RoomInfoView(info, time.Now()))
	return nil
}

func init() {
	rootCmd.AddCommand(roomCmd)
}
