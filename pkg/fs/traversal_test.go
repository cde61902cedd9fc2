package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindVisitsEachBlockOnce(t *testing.T) {

	v := populatedVolume(t)
	root, _ := v.Root()

	blocks, err := v.Find(root, FindOpt{Recursive: true})
	assert.NoError(t, err)

	seen := map[uint32]bool{}
	for _, b := range blocks {
		assert.False(t, seen[b.Nr], "block %d visited twice", b.Nr)
		seen[b.Nr] = true
	}

	// Two directories and two files are reachable
	assert.Len(t, blocks, 4)
}

func TestFindDetectsCycles(t *testing.T) {

	v := populatedVolume(t)
	root, _ := v.Root()

	// Point a subdirectory's hash table back at its parent directory
	devs, err := v.SeekName(root, "Devs")
	assert.NoError(t, err)
	keymaps, err := v.SeekName(devs, "Keymaps")
	assert.NoError(t, err)

	idx := int(hashName("Devs", keymaps.HashTableSize()))
	keymaps.SetHashRef(idx, devs.Nr)

	_, err = v.Find(root, FindOpt{Recursive: true})
	assert.ErrorIs(t, err, ErrHasCycles)
}

func TestFindWithFilterAndSort(t *testing.T) {

	v := populatedVolume(t)
	root, _ := v.Root()

	blocks, err := v.Find(root, FindOpt{
		Recursive: true,
		Sort:      true,
		Accept:    func(b *Block) bool { return b.IsFile() },
	})
	assert.NoError(t, err)
	assert.Len(t, blocks, 2)
	assert.Equal(t, "Startup-Sequence", blocks[0].Name())
	assert.Equal(t, "system-configuration", blocks[1].Name())
}

func TestBuildTreeAndFlatten(t *testing.T) {

	v := populatedVolume(t)
	root, _ := v.Root()

	tree, err := v.Build(root, FindOpt{})
	assert.NoError(t, err)

	dfs := tree.DFS()
	bfs := tree.BFS()
	assert.Len(t, dfs, 5)
	assert.Len(t, bfs, 5)

	// Both orders start at the root and cover the same set
	assert.Equal(t, v.RootBlock, dfs[0].Nr)
	assert.Equal(t, v.RootBlock, bfs[0].Nr)

	set := func(blocks []*Block) map[uint32]bool {
		m := map[uint32]bool{}
		for _, b := range blocks {
			m[b.Nr] = true
		}
		return m
	}
	assert.Equal(t, set(dfs), set(bfs))
}

func TestPatternTranslation(t *testing.T) {

	p := NewPattern("*.info")
	assert.True(t, p.Match("Disk.info"))
	assert.True(t, p.Match("PREFS.INFO"))
	assert.False(t, p.Match("Disk.inf"))

	p = NewPattern("df?.adf")
	assert.True(t, p.Match("df0.adf"))
	assert.False(t, p.Match("df10.adf"))

	// Regex metacharacters match literally
	p = NewPattern("a+b")
	assert.True(t, p.Match("a+b"))
	assert.False(t, p.Match("aab"))
}

func TestFindMatching(t *testing.T) {

	v := populatedVolume(t)
	root, _ := v.Root()

	blocks, err := v.FindMatching(root, NewPattern("*sequence"))
	assert.NoError(t, err)
	assert.Len(t, blocks, 1)
	assert.Equal(t, "Startup-Sequence", blocks[0].Name())
}

func TestCollectDataBlocksOrder(t *testing.T) {

	v := ddVolume(t, OFS)
	root, _ := v.Root()

	data := make([]byte, 3*488)
	header, err := v.CreateFile(root, "threeblocks", data)
	assert.NoError(t, err)

	blocks := v.CollectDataBlocks(header)
	assert.Len(t, blocks, 3)

	// The first collected block is the first data block
	assert.Equal(t, header.Read32(offFirstData), blocks[0])
}
