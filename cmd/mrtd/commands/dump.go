package commands

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gregLibert/mrtd/pkg/lds"
)

var dumpDir string

// dump: read EF.COM, then every data group it lists.
func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Read EF.COM and every data group it lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dumpDir, 0o755); err != nil {
				return err
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			raw, err := s.readFile(lds.EFCOM)
			if err != nil {
				return fmt.Errorf("reading EF.COM: %w", err)
			}
			if err := writeDump(lds.TagName(0x60), raw); err != nil {
				return err
			}

			com, err := lds.ParseCOM(raw)
			if err != nil {
				return err
			}
			fmt.Println(com.Describe())

			for _, entry := range com.Entries {
				fid, ok := lds.FileIDForTag(entry.Tag)
				if !ok {
					log.Printf("Warning: skipping unknown tag %02X", entry.Tag)
					continue
				}

				// The session cannot survive a failed read: the counters
				// no longer match.
				data, err := s.readFile(fid)
				if err != nil {
					return fmt.Errorf("reading %s: %w", entry.Name, err)
				}
				if err := writeDump(entry.Name, data); err != nil {
					return err
				}

				if fid == lds.EFDG2 {
					if err := saveImage(data, filepath.Join(dumpDir, entry.Name)); err != nil {
						log.Printf("Warning: no image in %s: %v", entry.Name, err)
					}
				}
			}
			return nil
		},
	}
	sessionFlags(cmd)
	cmd.Flags().StringVarP(&dumpDir, "dir", "d", ".", "output directory")
	return cmd
}

func writeDump(name string, data []byte) error {
	path := filepath.Join(dumpDir, name+".bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf(">> %s: %d bytes written to %s\n", name, len(data), path)
	return nil
}
