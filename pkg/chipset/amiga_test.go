package chipset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retrovault/amiga/pkg/msg"
)

func testAmiga() (*Amiga, *msg.Recorder) {
	rec := &msg.Recorder{}
	cfg := DefaultConfig()
	cfg.DriveMechanics = MechanicsNone
	return NewAmiga(cfg, rec, nil), rec
}

func TestExecuteAdvancesBeam(t *testing.T) {

	a, _ := testAmiga()

	a.ExecuteCycles(10)
	assert.Equal(t, int64(10), a.Agnus.Pos.H)
	assert.Equal(t, int64(40), a.Agnus.Clock)
}

func TestLineWrapAdvancesVerticalPosition(t *testing.T) {

	a, _ := testAmiga()

	a.ExecuteLine()
	assert.Equal(t, int64(1), a.Agnus.Pos.V)
	assert.Equal(t, int64(0), a.Agnus.Pos.H)
}

func TestCIATODTicksOncePerFrame(t *testing.T) {

	a, _ := testAmiga()

	assert.Equal(t, uint32(0), a.CIAA.TOD)

	a.ExecuteFrame()
	assert.Equal(t, uint32(1), a.CIAA.TOD)
	assert.Equal(t, uint32(1), a.CIAB.TOD)

	a.ExecuteFrame()
	assert.Equal(t, uint32(2), a.CIAA.TOD)
	assert.Equal(t, uint32(2), a.CIAB.TOD)
}

func TestBusOwnerUniquenessOverFullLine(t *testing.T) {

	a, _ := testAmiga()

	// Enable bitplane and disk DMA with a standard display
	a.PokeCustom16(0x092, 0x0038) // DDFSTRT
	a.PokeCustom16(0x094, 0x00D0) // DDFSTOP
	a.PokeCustom16(0x08E, 0x2C81) // DIWSTRT
	a.PokeCustom16(0x090, 0xF4C1) // DIWSTOP
	a.PokeCustom16(0x100, 0x4200) // BPLCON0: 4 planes lores
	a.PokeCustom16(0x096, 0x8000|DMAEN|BPLEN|DSKEN)

	// Advance into the display window
	for a.Agnus.Pos.V < 100 {
		a.ExecuteLine()
	}

	// Play the line out up to the last cycle; the owner table is wiped
	// at hsync, so sample it just before
	for a.Agnus.Pos.H != int64(HPosMax) {
		a.Execute()
	}
	counts := map[BusOwner]int{}
	for h := 0; h < HPosMax; h++ {
		counts[a.Agnus.BusOwner[h]]++
	}

	// The refresh slots are always taken
	assert.GreaterOrEqual(t, counts[BusRefresh], 3)

	// Bitplane DMA took place
	bpl := counts[BusBpl1] + counts[BusBpl2] + counts[BusBpl3] + counts[BusBpl4]
	assert.Greater(t, bpl, 0)

	// Every plane fetches the same number of words
	assert.Equal(t, counts[BusBpl1], counts[BusBpl2])
	assert.Equal(t, counts[BusBpl1], counts[BusBpl3])
	assert.Equal(t, counts[BusBpl1], counts[BusBpl4])
}

func TestBitplanePointersAdvanceDuringDMA(t *testing.T) {

	a, _ := testAmiga()

	a.PokeCustom16(0x0E0, 0x0001) // BPL1PTH
	a.PokeCustom16(0x0E2, 0x0000) // BPL1PTL
	a.PokeCustom16(0x092, 0x0038)
	a.PokeCustom16(0x094, 0x00D0)
	a.PokeCustom16(0x08E, 0x2C81)
	a.PokeCustom16(0x090, 0xF4C1)
	a.PokeCustom16(0x100, 0x1200) // one plane
	a.PokeCustom16(0x096, 0x8000|DMAEN|BPLEN)

	for a.Agnus.Pos.V < 100 {
		a.ExecuteLine()
	}

	before := a.Agnus.BplPT[0]
	a.ExecuteLine()
	after := a.Agnus.BplPT[0]

	assert.Greater(t, after, before)
	assert.Equal(t, uint32(0), (after-before)%2)
}

func TestSyncWithEClockAlignment(t *testing.T) {

	a, _ := testAmiga()

	a.Agnus.SyncWithEClock()

	// The clock must land on position (2) of the E cycle
	eClk := (a.Agnus.Clock >> 2) % 10
	assert.Equal(t, int64(2), eClk)

	// Wait states were booked
	assert.Greater(t, a.CPUWaitStates, int64(0))
}

func TestCPUBusAccessStealsFreeCycle(t *testing.T) {

	a, _ := testAmiga()

	a.Mem.Poke16(0x1000, 0xBEEF)
	v := a.CPURead16(0x1000)
	assert.Equal(t, uint16(0xBEEF), v)

	// The stolen cycle is booked to the CPU
	assert.Greater(t, a.Agnus.Usage[BusCPU], int64(0))
}

func TestVerticalBlankRaisesInterrupt(t *testing.T) {

	a, _ := testAmiga()

	a.PokeCustom16(0x09A, 0x8000|0x4000|0x0020) // INTENA: master + VERTB
	a.ExecuteCycles(10)

	a.ExecuteFrame()
	a.ExecuteCycles(10)

	assert.True(t, a.Paula.IrqPending(IrqVERTB))
	assert.Greater(t, a.CPUIPL, 0)
}
