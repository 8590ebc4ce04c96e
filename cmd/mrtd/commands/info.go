package commands

import (
	"fmt"
	"log"

	"github.com/ebfe/scard"
	"github.com/spf13/cobra"

	"github.com/gregLibert/mrtd/pkg/iso7816"
	"github.com/gregLibert/mrtd/pkg/lds"
)

// info: plain checks run before BAC is established.
func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Select the LDS1 application and check whether plain reads are refused",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, card, err := connectToCard(readerIndex)
			if err != nil {
				return err
			}
			defer func() {
				if err := card.Disconnect(scard.LeaveCard); err != nil {
					log.Printf("Warning: Failed to disconnect card: %v", err)
				}
				if err := ctx.Release(); err != nil {
					log.Printf("Warning: Failed to release context: %v", err)
				}
			}()

			client := iso7816.NewClient(card)
			client.Timeout = timeout

			trace, open, err := probeAccess(client)
			fmt.Println(trace.Describe())
			if err != nil {
				return err
			}
			if open {
				fmt.Println(">> EF.COM is readable without secure messaging")
			} else {
				fmt.Printf(">> Plain read refused (%s), BAC required\n", trace.Last().Response.Status.Verbose())
			}
			return nil
		},
	}
}

// probeAccess selects the LDS1 application and reads the EF.COM header by
// short identifier in plain. It reports whether the chip served the read.
func probeAccess(client *iso7816.Client) (iso7816.Trace, bool, error) {
	trace, err := client.Send(iso7816.SelectApplication(iso7816.PlainClass, lds.LDS1AID))
	if err != nil {
		return trace, false, fmt.Errorf("select LDS1 application: %w", err)
	}
	if !trace.IsSuccess() {
		return trace, false, fmt.Errorf("select LDS1 application: %s", trace.Last().Response.Status.Verbose())
	}

	read, err := iso7816.ReadBinarySFI(iso7816.PlainClass, lds.EFCOM.SFI(), 0, 4)
	if err != nil {
		return trace, false, err
	}
	sub, err := client.Send(read)
	trace = append(trace, sub...)
	if err != nil {
		return trace, false, fmt.Errorf("read EF.COM header: %w", err)
	}
	return trace, sub.IsSuccess(), nil
}
