package fsutil

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/kennygrant/sanitize"
	"github.com/spf13/cobra"

	"github.com/retrovault/amiga/pkg/fs"
)

// CpCmd extracts files from an image into a host directory. The
// pattern is matched against the full path inside the image.
var CpCmd = &cobra.Command{
	Use:   "cp IMAGE PATTERN DEST",
	Short: "Copy files out of an image onto the host.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {

		v, err := mountVolume(args[0])
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		matcher, err := glob.Compile(args[1])
		if err != nil {
			log.Errorf("bad pattern: %v", err)
			os.Exit(1)
		}
		dest := args[2]

		root, err := v.Root()
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		blocks, err := v.Find(root, fs.FindOpt{Recursive: true})
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		copied := 0
		for _, b := range blocks {

			if !b.IsFile() {
				continue
			}

			path := imagePath(v, b)
			if !matcher.Match(path) {
				continue
			}

			data, err := v.ReadFile(b)
			if err != nil {
				log.Errorf("%s: %v", path, err)
				os.Exit(1)
			}

			// Amiga names may contain characters the host filesystem
			// rejects
			target := filepath.Join(dest, sanitize.Name(b.Name()))
			if err := ioutil.WriteFile(target, data, 0644); err != nil {
				log.Errorf("%v", err)
				os.Exit(1)
			}

			log.Infof("%s -> %s", path, target)
			copied++
		}

		log.Printf("%d file(s) copied", copied)
	},
}

// imagePath reassembles the full path of a block inside the image.
func imagePath(v *fs.Volume, b *fs.Block) string {

	if b.Nr == v.RootBlock {
		return "/"
	}

	parent, err := v.Parent(b)
	if err != nil || parent.Nr == b.Nr {
		return "/" + b.Name()
	}

	if parent.Nr == v.RootBlock {
		return "/" + b.Name()
	}
	return imagePath(v, parent) + "/" + b.Name()
}
