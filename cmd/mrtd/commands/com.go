package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gregLibert/mrtd/pkg/lds"
)

// com <file>: decode an EF.COM dump.
func comCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "com <file>",
		Short: "Decode an EF.COM dump and list its data groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			com, err := lds.ParseCOM(data)
			if err != nil {
				return err
			}
			fmt.Println(com.Describe())
			fmt.Printf(">> LDS version %s\n", com.Version())
			return nil
		},
	}
}
