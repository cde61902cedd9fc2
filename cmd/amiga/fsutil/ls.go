package fsutil

import (
	"fmt"
	"os"

	"code.cloudfoundry.org/bytefmt"
	"github.com/sisatech/tablewriter"
	"github.com/spf13/cobra"

	"github.com/retrovault/amiga/pkg/fs"
)

// LsCmd lists the contents of a directory.
var LsCmd = &cobra.Command{
	Use:   "ls IMAGE [PATH]",
	Short: "List directory contents.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {

		v, err := mountVolume(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		path := "/"
		if len(args) > 1 {
			path = args[1]
		}

		dir, err := v.Seek(path)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		all, err := cmd.Flags().GetBool("almost-all")
		if err != nil {
			panic(err)
		}
		long, err := cmd.Flags().GetBool("long")
		if err != nil {
			panic(err)
		}

		blocks, err := v.Find(dir, fs.FindOpt{Recursive: all, Sort: true})
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		if !long {
			for _, b := range blocks {
				log.Printf("%s", b.Name())
			}
			return
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Block", "Type", "Size", "Name"})
		for _, b := range blocks {
			size := ""
			if b.IsFile() {
				size = bytefmt.ByteSize(uint64(b.FileSize()))
			}
			table.Append([]string{
				fmt.Sprintf("%d", b.Nr),
				b.Type.String(),
				size,
				b.Name(),
			})
		}
		table.Render()
	},
}

func init() {
	LsCmd.Flags().BoolP("almost-all", "a", false, "recurse into subdirectories")
	LsCmd.Flags().BoolP("long", "l", false, "use a long listing format")
}
