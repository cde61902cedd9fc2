package fsutil

import (
	"fmt"
	"os"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/retrovault/amiga/pkg/fs"
)

// DuCmd calculates file space usage.
var DuCmd = &cobra.Command{
	Use:   "du IMAGE [PATH]",
	Short: "Calculate file space usage.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {

		v, err := mountVolume(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		free, err := cmd.Flags().GetBool("free")
		if err != nil {
			panic(err)
		}

		if free {
			a := v.Allocator()
			log.Printf("free: %s (%d blocks)",
				bytefmt.ByteSize(uint64(a.NumUnallocated()*v.BSize())), a.NumUnallocated())
			log.Printf("used: %s (%d blocks)",
				bytefmt.ByteSize(uint64(a.NumAllocated()*v.BSize())), a.NumAllocated())
			return
		}

		path := "/"
		if len(args) > 1 {
			path = args[1]
		}

		root, err := v.Seek(path)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		var total uint64
		blocks, err := v.Find(root, fs.FindOpt{Recursive: true})
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		for _, b := range blocks {
			if b.IsFile() {
				total += uint64(b.FileSize())
			}
		}

		log.Printf("%s\t%s", bytefmt.ByteSize(total), path)
	},
}

func init() {
	DuCmd.Flags().BoolP("free", "f", false, "report free space instead")
}

// StatCmd prints the metadata of a single directory entry.
var StatCmd = &cobra.Command{
	Use:   "stat IMAGE FILEPATH",
	Short: "Print detailed file information.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		v, err := mountVolume(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		b, err := v.Seek(args[1])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		log.Printf("Name:   %s", b.Name())
		log.Printf("Block:  %d", b.Nr)
		log.Printf("Type:   %s", b.Type)

		if b.IsFile() {
			log.Printf("Size:   %d bytes", b.FileSize())
			log.Printf("Blocks: %s", fmt.Sprint(len(v.CollectDataBlocks(b))))
			if ext := len(v.CollectListBlocks(b)); ext > 0 {
				log.Printf("Ext:    %d list blocks", ext)
			}
		}
	},
}
