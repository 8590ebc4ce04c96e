package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gregLibert/mrtd/pkg/lds"
)

var (
	readerIndex int
	timeout     time.Duration
	chunkSize   int
	verbose     bool

	kenc string
	kmac string
	ssc  string
)

func Execute() error {
	root := &cobra.Command{
		Use:          "mrtd",
		Short:        "Read eMRTD files over BAC secure messaging",
		SilenceUsage: true,
	}

	root.PersistentFlags().IntVar(&readerIndex, "reader", 0, "PC/SC reader index")
	root.PersistentFlags().DurationVar(&timeout, "timeout", lds.DefaultTimeout, "timeout of one card exchange")
	root.PersistentFlags().IntVar(&chunkSize, "chunk", lds.DefaultChunkSize, "READ BINARY chunk size")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print the plain exchanges of every read")

	root.AddCommand(infoCmd(), readCmd(), dumpCmd(), comCmd(), imageCmd())
	return root.Execute()
}

// sessionFlags registers the BAC session material flags on cmd.
func sessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&kenc, "kenc", "", "session encryption key KSenc (hex, 16 bytes)")
	cmd.Flags().StringVar(&kmac, "kmac", "", "session MAC key KSmac (hex, 16 bytes)")
	cmd.Flags().StringVar(&ssc, "ssc", "", "send sequence counter (hex, 8 bytes)")
	_ = cmd.MarkFlagRequired("kenc")
	_ = cmd.MarkFlagRequired("kmac")
	_ = cmd.MarkFlagRequired("ssc")
}
