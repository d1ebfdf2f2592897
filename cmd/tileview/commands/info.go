package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var infoTimeout time.Duration

var infoCmd = &cobra.Command{
	Use:   "info <uri>",
	Short: "Show size, format and orientation of an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().DurationVar(&infoTimeout, "timeout", time.Minute, "time allowed to open the image")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), infoTimeout)
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	p := message.NewPrinter(language.English)
	info := s.info
	out := cmd.OutOrStdout()
	p.Fprintf(out, "uri:          %s\n", info.URI)
	p.Fprintf(out, "id:           %s\n", info.ID)
	p.Fprintf(out, "format:       %s\n", info.Format)
	p.Fprintf(out, "size:         %d x %d (%d pixels)\n", info.Size.X, info.Size.Y, info.Size.X*info.Size.Y)
	if info.RawSize != info.Size {
		p.Fprintf(out, "stored size:  %d x %d\n", info.RawSize.X, info.RawSize.Y)
	}
	p.Fprintf(out, "orientation:  %d\n", info.Orientation)
	return nil
}
