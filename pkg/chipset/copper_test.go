package chipset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeCopperList(a *Amiga, addr uint32, words ...uint16) {
	for i, w := range words {
		a.Mem.Poke16(addr+uint32(2*i), w)
	}
}

func TestCopperMoveWritesRegister(t *testing.T) {

	a, _ := testAmiga()

	// MOVE #$4489, DSKSYNC; then WAIT for an unreachable position
	writeCopperList(a, 0x1000,
		0x007E, 0x4489,
		0xFFFF, 0xFFFE,
	)

	a.PokeCustom16(0x080, 0x0000) // COP1LCH
	a.PokeCustom16(0x082, 0x1000) // COP1LCL
	a.PokeCustom16(0x096, 0x8000|DMAEN|COPEN)
	a.PokeCustom16(0x088, 0x0000) // COPJMP1 strobe

	a.ExecuteCycles(64)

	assert.Equal(t, uint16(0x4489), a.Paula.DSKSYNC)
}

func TestCopperWaitBlocksUntilBeamPosition(t *testing.T) {

	a, _ := testAmiga()

	// WAIT for line 5, then MOVE to DSKSYNC
	writeCopperList(a, 0x1000,
		0x0501, 0xFF00,
		0x007E, 0x1234,
		0xFFFF, 0xFFFE,
	)

	a.PokeCustom16(0x080, 0x0000)
	a.PokeCustom16(0x082, 0x1000)
	a.PokeCustom16(0x096, 0x8000|DMAEN|COPEN)
	a.PokeCustom16(0x088, 0x0000)

	// Before line 5 nothing was written
	for a.Agnus.Pos.V < 4 {
		a.ExecuteLine()
	}
	assert.NotEqual(t, uint16(0x1234), a.Paula.DSKSYNC)

	for a.Agnus.Pos.V < 6 {
		a.ExecuteLine()
	}
	assert.Equal(t, uint16(0x1234), a.Paula.DSKSYNC)
}

func TestCopperSkipSkipsNextInstruction(t *testing.T) {

	a, _ := testAmiga()

	// SKIP if beyond (0,0): always true, so the following MOVE is
	// discarded and the second MOVE executes
	writeCopperList(a, 0x1000,
		0x0001, 0xFF01,
		0x007E, 0xDEAD,
		0x007E, 0x5678,
		0xFFFF, 0xFFFE,
	)

	a.PokeCustom16(0x080, 0x0000)
	a.PokeCustom16(0x082, 0x1000)
	a.PokeCustom16(0x096, 0x8000|DMAEN|COPEN)
	a.PokeCustom16(0x088, 0x0000)

	a.ExecuteCycles(128)

	assert.Equal(t, uint16(0x5678), a.Paula.DSKSYNC)
}

func TestCopperMoveToLowRegistersRequiresCOPCON(t *testing.T) {

	a, _ := testAmiga()

	// MOVE to a register below 0x40 without the danger bit halts the Copper
	writeCopperList(a, 0x1000,
		0x003E, 0xABCD,
		0x007E, 0x9999,
	)

	a.PokeCustom16(0x080, 0x0000)
	a.PokeCustom16(0x082, 0x1000)
	a.PokeCustom16(0x096, 0x8000|DMAEN|COPEN)
	a.PokeCustom16(0x088, 0x0000)

	a.ExecuteCycles(128)
	assert.NotEqual(t, uint16(0x9999), a.Paula.DSKSYNC)

	// With COPCON set the same list runs through
	a.PokeCustom16(0x02E, 0x0002)
	a.PokeCustom16(0x088, 0x0000)
	a.ExecuteCycles(128)
	assert.Equal(t, uint16(0x9999), a.Paula.DSKSYNC)
}

func TestCopperRestartsAtVerticalBlank(t *testing.T) {

	a, _ := testAmiga()

	writeCopperList(a, 0x1000,
		0x007E, 0x4489,
		0xFFFF, 0xFFFE,
	)

	a.PokeCustom16(0x080, 0x0000)
	a.PokeCustom16(0x082, 0x1000)
	a.PokeCustom16(0x096, 0x8000|DMAEN|COPEN)
	a.PokeCustom16(0x088, 0x0000)

	a.ExecuteCycles(64)
	a.Paula.DSKSYNC = 0

	// The list runs again in the next frame
	a.ExecuteFrame()
	a.ExecuteCycles(64)
	assert.Equal(t, uint16(0x4489), a.Paula.DSKSYNC)
}
