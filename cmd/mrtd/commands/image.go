package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gregLibert/mrtd/pkg/lds"
)

var imageBase string

// image <file>: extract the facial image of an EF.DG2 dump.
func imageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Extract the facial image from an EF.DG2 dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			base := imageBase
			if base == "" {
				base = args[0]
			}
			return saveImage(data, base)
		},
	}
	cmd.Flags().StringVarP(&imageBase, "out", "o", "", "output base name (default: the input name)")
	return cmd
}

func saveImage(data []byte, base string) error {
	img, err := lds.ExtractImage(data)
	if err != nil {
		return err
	}
	path, err := lds.SaveImage(base, img)
	if err != nil {
		return err
	}
	fmt.Printf(">> %s image at offset %d, %d bytes written to %s\n", img.Codec, img.Offset, len(img.Data), path)
	return nil
}
