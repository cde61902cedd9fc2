package fsutil

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/retrovault/amiga/pkg/fs"
)

// TreeCmd renders the directory tree of an image.
var TreeCmd = &cobra.Command{
	Use:   "tree IMAGE [PATH]",
	Short: "List contents of an image in a tree-like format.",
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

		root, err := v.Seek(path)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		tree, err := v.Build(root, fs.FindOpt{Sort: true})
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		name := v.Name()
		if root.Nr != v.RootBlock {
			name = root.Name()
		}
		log.Printf("%s", name)
		printTree(tree, "")
	},
}

func printTree(node *fs.TreeNode, prefix string) {

	for i, child := range node.Children {

		connector, extension := "├── ", "│   "
		if i == len(node.Children)-1 {
			connector, extension = "└── ", "    "
		}

		log.Printf("%s%s%s", prefix, connector, child.Block.Name())
		printTree(child, prefix+extension)
	}
}
