package chipset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMintermLogic(t *testing.T) {

	// 0xCA: D = (A AND B) OR (NOT A AND C)
	a, b, c := uint16(0xF0F0), uint16(0xFFFF), uint16(0x0F0F)
	assert.Equal(t, uint16(0xFFFF), mintermLogic(a, b, c, 0xCA))

	// 0xC0: D = A AND B
	assert.Equal(t, a&b, mintermLogic(a, b, c, 0xC0))

	// 0x00 clears, 0xFF sets
	assert.Equal(t, uint16(0), mintermLogic(a, b, c, 0x00))
	assert.Equal(t, uint16(0xFFFF), mintermLogic(a, b, c, 0xFF))
}

func TestFillLogic(t *testing.T) {

	blt := &Blitter{}

	// Inclusive fill: everything between two set bits is filled
	blt.BLTCON1 = 1 << 3 // IFE
	out, carry := blt.doFill(0x0240, false)
	assert.Equal(t, uint16(0x03C0), out)
	assert.False(t, carry)

	// A single set bit leaves the carry armed
	out, carry = blt.doFill(0x0001, false)
	assert.Equal(t, uint16(0xFFFF), out)
	assert.True(t, carry)
}

func TestCopyBlitAppliesMinterm(t *testing.T) {

	a, _ := testAmiga()

	const (
		srcA = 0x1000
		srcC = 0x2000
		dst  = 0x3000
		h    = 10
		v    = 32
	)

	for i := 0; i < h*v; i++ {
		a.Mem.Poke16(uint32(srcA+2*i), uint16(i)|0x8000)
		a.Mem.Poke16(uint32(srcC+2*i), uint16(i*3))
	}

	// USEA, USEC, USED with minterm 0xCA; B is all ones so the result
	// is A OR C
	a.PokeCustom16(0x096, 0x8000|DMAEN|BLTEN)
	a.PokeCustom16(0x040, 0x0BCA) // BLTCON0
	a.PokeCustom16(0x042, 0x0000) // BLTCON1
	a.PokeCustom16(0x072, 0xFFFF) // BLTBDAT
	a.PokeCustom16(0x044, 0xFFFF) // BLTAFWM
	a.PokeCustom16(0x046, 0xFFFF) // BLTALWM
	a.PokeCustom16(0x050, 0x0000) // BLTAPTH
	a.PokeCustom16(0x052, srcA)
	a.PokeCustom16(0x048, 0x0000) // BLTCPTH
	a.PokeCustom16(0x04A, srcC)
	a.PokeCustom16(0x054, 0x0000) // BLTDPTH
	a.PokeCustom16(0x056, dst)

	a.ExecuteCycles(4) // let the control writes settle

	assert.False(t, a.Blitter.BBUSY)
	a.PokeCustom16(0x058, v<<6|h) // BLTSIZE
	a.ExecuteCycles(3)

	// The blit is running
	assert.True(t, a.Blitter.BBUSY)

	// After H*V+4 DMA cycles the blit has terminated
	a.ExecuteCycles(h*v + 8)
	assert.False(t, a.Blitter.BBUSY)

	// D = A | C for every word
	for i := 0; i < h*v; i++ {
		expected := (uint16(i) | 0x8000) | uint16(i*3)
		assert.Equal(t, expected, a.Mem.Peek16(uint32(dst+2*i)), "word %d", i)
	}

	// The result was not all zeroes
	assert.False(t, a.Blitter.BZERO)

	// The blit interrupt was requested
	assert.NotZero(t, a.Paula.INTREQ&(1<<uint(IrqBLIT)))
}

func TestZeroSizeBlitRaisesInterruptOnly(t *testing.T) {

	a, _ := testAmiga()

	a.PokeCustom16(0x096, 0x8000|DMAEN|BLTEN)
	a.PokeCustom16(0x040, 0x0BCA)
	a.ExecuteCycles(4)

	a.Blitter.SetBLTSIZE(0)
	assert.True(t, a.Blitter.BBUSY)

	a.ExecuteCycles(8)
	assert.False(t, a.Blitter.BBUSY)
	assert.NotZero(t, a.Paula.INTREQ&(1<<uint(IrqBLIT)))
}

func TestSlowBlitProducesSameResult(t *testing.T) {

	a, _ := testAmiga()
	a.Blitter.Accuracy = BlitterSlow

	const (
		srcA = 0x1000
		dst  = 0x3000
		h    = 4
		v    = 2
	)

	for i := 0; i < h*v; i++ {
		a.Mem.Poke16(uint32(srcA+2*i), uint16(0x1111*(i+1)))
	}

	// Plain copy: USEA, USED, minterm A
	a.PokeCustom16(0x096, 0x8000|DMAEN|BLTEN)
	a.PokeCustom16(0x040, 0x09F0)
	a.PokeCustom16(0x042, 0x0000)
	a.PokeCustom16(0x050, 0x0000)
	a.PokeCustom16(0x052, srcA)
	a.PokeCustom16(0x054, 0x0000)
	a.PokeCustom16(0x056, dst)
	a.ExecuteCycles(4)

	a.PokeCustom16(0x058, v<<6|h)

	// Slow blits take one bus access per micro cycle
	a.ExecuteCycles(h*v*4 + 64)
	assert.False(t, a.Blitter.BBUSY)

	for i := 0; i < h*v; i++ {
		assert.Equal(t, uint16(0x1111*(i+1)), a.Mem.Peek16(uint32(dst+2*i)), "word %d", i)
	}
}

func TestBlitWaitsForBlitterDMAEnable(t *testing.T) {

	a, _ := testAmiga()

	a.PokeCustom16(0x096, 0x8000|DMAEN) // no BLTEN
	a.PokeCustom16(0x040, 0x09F0)
	a.ExecuteCycles(4)

	a.Blitter.SetBLTSIZE(1<<6 | 1)
	a.ExecuteCycles(16)
	assert.True(t, a.Blitter.BBUSY)

	// Enabling blitter DMA resumes the pending blit
	a.PokeCustom16(0x096, 0x8000|BLTEN)
	a.ExecuteCycles(16)
	assert.False(t, a.Blitter.BBUSY)
}
