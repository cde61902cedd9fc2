package defaults

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackShadowing(t *testing.T) {

	s := New()
	s.SetFallback("DF0_TYPE", "dd")

	assert.Equal(t, "dd", s.GetRaw("DF0_TYPE"))

	assert.NoError(t, s.Set("DF0_TYPE", "hd"))
	assert.Equal(t, "hd", s.GetRaw("DF0_TYPE"))

	s.Remove("DF0_TYPE")
	assert.Equal(t, "dd", s.GetRaw("DF0_TYPE"))
}

func TestUnknownKeyIsRejectedWithHint(t *testing.T) {

	s := New()
	s.SetFallback("CHIP_RAM", "512")
	s.SetFallback("DF0_TYPE", "dd")

	err := s.Set("CHIPRAM", "1024")
	assert.ErrorIs(t, err, ErrInvalidOption)
	assert.Contains(t, err.Error(), "CHIP_RAM")
	assert.Contains(t, err.Error(), "DF0_TYPE")
}

func TestTypedGetters(t *testing.T) {

	s := New()
	s.SetFallback("CHIP_RAM", "512")
	s.SetFallback("WARP", "true")

	v, err := s.GetInt("CHIP_RAM")
	assert.NoError(t, err)
	assert.Equal(t, int64(512), v)
	assert.True(t, s.GetBool("WARP"))

	s.SetFallback("BROKEN", "abc")
	_, err = s.GetInt("BROKEN")
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {

	dir, err := ioutil.TempDir("", "defaults")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "defaults.toml")

	s := New()
	s.SetFallback("DF0_TYPE", "dd")
	s.SetFallback("CHIP_RAM", "512")
	assert.NoError(t, s.Set("CHIP_RAM", "1024"))
	assert.NoError(t, s.Save(path))

	loaded := New()
	loaded.SetFallback("DF0_TYPE", "dd")
	loaded.SetFallback("CHIP_RAM", "512")
	assert.NoError(t, loaded.Load(path))

	assert.Equal(t, "1024", loaded.GetRaw("CHIP_RAM"))
	assert.Equal(t, "dd", loaded.GetRaw("DF0_TYPE"))
}

func TestLoadKeepsExistingUserValues(t *testing.T) {

	dir, err := ioutil.TempDir("", "defaults")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "defaults.toml")

	s := New()
	s.SetFallback("CHIP_RAM", "512")
	assert.NoError(t, s.Set("CHIP_RAM", "1024"))
	assert.NoError(t, s.Save(path))

	other := New()
	other.SetFallback("CHIP_RAM", "512")
	assert.NoError(t, other.Set("CHIP_RAM", "2048"))
	assert.NoError(t, other.Load(path))

	// The value set before loading wins
	assert.Equal(t, "2048", other.GetRaw("CHIP_RAM"))
}
