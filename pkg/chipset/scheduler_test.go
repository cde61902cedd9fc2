package chipset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextTriggerTracksMinimum(t *testing.T) {

	s := NewScheduler()

	s.ScheduleAbs(SlotBPL, 100, BplL1)
	assert.Equal(t, int64(100), s.NextTrigger)

	s.ScheduleAbs(SlotDAS, 50, DasRefresh)
	assert.Equal(t, int64(50), s.NextTrigger)

	s.ScheduleAbs(SlotCOP, 200, CopFetch)
	assert.Equal(t, int64(50), s.NextTrigger)

	// NextTrigger never exceeds any slot trigger
	for slot := EventSlot(0); slot < SlotCount; slot++ {
		assert.LessOrEqual(t, s.NextTrigger, s.Trigger[slot])
	}
}

func TestLazyCancelKeepsMonotonicity(t *testing.T) {

	s := NewScheduler()

	s.ScheduleAbs(SlotBPL, 100, BplL1)
	s.ScheduleAbs(SlotDAS, 50, DasRefresh)
	s.Cancel(SlotDAS)

	// The cancelled slot is empty but the cached minimum may lag behind
	assert.False(t, s.HasEvent(SlotDAS))
	for slot := EventSlot(0); slot < SlotCount; slot++ {
		if s.HasEvent(slot) {
			assert.LessOrEqual(t, s.NextTrigger, s.Trigger[slot])
		}
	}
}

func TestSecondarySlotsPropagateIntoAggregators(t *testing.T) {

	s := NewScheduler()
	s.ScheduleAbs(SlotSEC, never, SecTrigger)
	s.ScheduleAbs(SlotTER, never, TerTrigger)

	s.ScheduleAbs(SlotVBL, 400, VblStrobe0)
	assert.Equal(t, int64(400), s.Trigger[SlotSEC])
	assert.Equal(t, int64(never), s.Trigger[SlotTER])

	s.ScheduleAbs(SlotDC0, 300, DchInsert)
	assert.Equal(t, int64(300), s.Trigger[SlotTER])
	assert.Equal(t, int64(300), s.Trigger[SlotSEC])
	assert.Equal(t, int64(300), s.NextTrigger)
}

func TestServiceOrderFollowsSlotIndex(t *testing.T) {

	// The register change slot precedes every bus allocating slot
	assert.Less(t, int(SlotREG), int(SlotBPL))
	assert.Less(t, int(SlotREG), int(SlotDAS))
	assert.Less(t, int(SlotBPL), int(SlotCOP))
	assert.Less(t, int(SlotCOP), int(SlotBLT))
}

func TestRescheduleKeepsIDAndData(t *testing.T) {

	s := NewScheduler()

	s.ScheduleAbsData(SlotDC0, 100, DchInsert, 42)
	s.RescheduleAbs(SlotDC0, 200)

	assert.Equal(t, DchInsert, s.ID[SlotDC0])
	assert.Equal(t, int64(42), s.Data[SlotDC0])
	assert.Equal(t, int64(200), s.Trigger[SlotDC0])
}
