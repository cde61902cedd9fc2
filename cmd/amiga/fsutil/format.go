package fsutil

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/retrovault/amiga/pkg/fs"
)

// FormatCmd creates a fresh filesystem on an image.
var FormatCmd = &cobra.Command{
	Use:   "format IMAGE NAME",
	Short: "Create a fresh filesystem on an image.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		ffs, err := cmd.Flags().GetBool("ffs")
		if err != nil {
			panic(err)
		}

		dev, err := OpenDevice(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		dos := fs.OFS
		if ffs {
			dos = fs.FFS
		}

		v, err := fs.FormatVolume(dev, dos, args[1])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		if err := v.Flush(); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		if err := saveDevice(args[0]); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		log.Printf("formatted %q as %v", args[1], dos)
	},
}

func init() {
	FormatCmd.Flags().Bool("ffs", false, "use the fast filing system")
}
