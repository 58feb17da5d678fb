// Command driftctl is the external CLI collaborator described in §6:
// a short-lived process that enumerates discovered devices and
// reports build version, independent of a running driftd.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftwm/drift/internal/devicemgr"
	"github.com/driftwm/drift/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "driftctl",
		Short: "driftctl",
		Long:  "Inspect the devices a driftd instance would discover.",
	}
	root.AddCommand(newInfoCmd())
	root.AddCommand(newAboutCmd())
	return root
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "List discovered input and output nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := devicemgr.New(devicemgr.DefaultConfig(), nil, nil)

			inputs, err := mgr.ScanInputs()
			if err != nil {
				return fmt.Errorf("scan inputs: %w", err)
			}
			fmt.Println("inputs:")
			for _, n := range inputs {
				fmt.Printf("  %s\t%s\n", n.Path, n.Kind)
			}

			outputs, err := mgr.ScanOutputs()
			if err != nil {
				return fmt.Errorf("scan outputs: %w", err)
			}
			fmt.Println("outputs:")
			for _, o := range outputs {
				fmt.Printf("  %s\n", o.Path)
			}
			return nil
		},
	}
}

func newAboutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Print build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}
