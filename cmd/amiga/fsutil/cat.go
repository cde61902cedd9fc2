package fsutil

import (
	"os"

	"github.com/spf13/cobra"
)

// CatCmd prints the contents of a file to stdout.
var CatCmd = &cobra.Command{
	Use:   "cat IMAGE FILEPATH...",
	Short: "Concatenate files and print on the standard output.",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		v, err := mountVolume(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		for _, path := range args[1:] {

			b, err := v.Seek(path)
			if err != nil {
				log.Errorf("%v", err)
				os.Exit(1)
			}

			data, err := v.ReadFile(b)
			if err != nil {
				log.Errorf("%v", err)
				os.Exit(1)
			}

			if _, err := os.Stdout.Write(data); err != nil {
				log.Errorf("%v", err)
				os.Exit(1)
			}
		}
	},
}
