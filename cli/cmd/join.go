package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpdrop/cli/internal/roomid"
	"github.com/BioHazard786/Warpdrop/cli/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join [room-id]",
	Aliases: []string{"j"},
	Short:   "Join a chat room, creating a new room id if none is given",
	Long: `Join a room and chat with every device in it over direct WebRTC connections.

Examples:
  warpdrop join
  warpdrop join hazy-otter-mochi-quill
  warpdrop join --transport http --domain localhost:8080 my-room`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := ""
		if len(args) == 1 {
			roomID = args[0]
		}
		return joinRoom(cmd.Context(), roomID)
	},
}

func joinRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		roomID = roomid.Generate(nil)
	} else if !roomid.Valid(roomID) {
		return fmt.Errorf("invalid room id %q: use lowercase words separated by hyphens", roomID)
	}

	cfg, err := LoadConfig(connFlags)
	if err != nil {
		return err
	}
	logger := slog.Default()

	spin := ui.NewConnectionSpinner("Connecting to signaling server...").Start()
	sess := NewSession(ctx, cfg, logger)
	if err := sess.Join(ctx, roomID); err != nil {
		spin.Error("Could not join the room")
		_ = sess.Leave(context.Background())
		return fmt.Errorf("join room: %w", err)
	}
	spin.Stop()

	fmt.Println(ui.RoomBox{RoomID: roomID, RoomLink: cfg.GetRoomLink(roomID), PeerID: sess.ID()}.View())

	viewErr := ui.RunSessionView(sess, cfg.GetRoomLink(roomID))

	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Leave(leaveCtx); err != nil {
		logger.Debug("leave room", "error", err)
	}

	if viewErr != nil {
		return fmt.Errorf("session view: %w", viewErr)
	}
	ui.PrintSuccessf("Left room %s", roomID)
	return nil
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
