package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gregLibert/mrtd/pkg/lds"
)

var readOut string

// read <fid>: read one elementary file and write it to --out.
func readCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <fid>",
		Short: "Read an elementary file, e.g. 011E for EF.COM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := lds.ParseFileID(args[0])
			if err != nil {
				return err
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			data, err := s.readFile(fid)
			if err != nil {
				return fmt.Errorf("reading %s: %w", fid, err)
			}

			if readOut == "" {
				fmt.Printf("%X\n", data)
				return nil
			}
			if err := os.WriteFile(readOut, data, 0o644); err != nil {
				return err
			}
			fmt.Printf(">> %s: %d bytes written to %s\n", fid, len(data), readOut)
			return nil
		},
	}
	sessionFlags(cmd)
	cmd.Flags().StringVarP(&readOut, "out", "o", "", "output file (default: hex on stdout)")
	return cmd
}
