package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

// Scheduler is a fixed-arity event queue keyed by absolute master cycle.
// Secondary and tertiary slots propagate their minimum trigger into the
// SEC and TER aggregator slots, so the emulation hot path only needs to
// compare NextTrigger against the clock.
type Scheduler struct {
	Trigger [SlotCount]int64
	ID      [SlotCount]EventID
	Data    [SlotCount]int64

	// The smallest trigger of all primary slots
	NextTrigger int64
}

// NewScheduler returns a scheduler with all slots empty.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	for i := range s.Trigger {
		s.Trigger[i] = never
	}
	s.NextTrigger = never
	return s
}

// HasEvent reports whether the slot holds an event.
func (s *Scheduler) HasEvent(slot EventSlot) bool {
	return s.ID[slot] != EventNone
}

// IsPending reports whether the slot holds an armed event.
func (s *Scheduler) IsPending(slot EventSlot) bool {
	return s.Trigger[slot] != never
}

// IsDue reports whether the slot's event is due at the given cycle.
func (s *Scheduler) IsDue(slot EventSlot, cycle int64) bool {
	return cycle >= s.Trigger[slot]
}

// ScheduleAbs arms an event to trigger at an absolute cycle.
func (s *Scheduler) ScheduleAbs(slot EventSlot, cycle int64, id EventID) {
	s.Trigger[slot] = cycle
	s.ID[slot] = id

	if cycle < s.NextTrigger {
		s.NextTrigger = cycle
	}

	if slot.isTertiary() && cycle < s.Trigger[SlotTER] {
		s.Trigger[SlotTER] = cycle
	}
	if (slot.isTertiary() || slot.isSecondary()) && cycle < s.Trigger[SlotSEC] {
		s.Trigger[SlotSEC] = cycle
	}
}

// ScheduleAbsData arms an event carrying a payload.
func (s *Scheduler) ScheduleAbsData(slot EventSlot, cycle int64, id EventID, data int64) {
	s.ScheduleAbs(slot, cycle, id)
	s.Data[slot] = data
}

// ScheduleImm arms an event to trigger as soon as possible.
func (s *Scheduler) ScheduleImm(slot EventSlot, id EventID) {
	s.ScheduleAbs(slot, 0, id)
}

// ScheduleInc arms an event relative to the slot's current trigger cycle.
func (s *Scheduler) ScheduleInc(slot EventSlot, cycle int64, id EventID) {
	s.ScheduleAbs(slot, s.Trigger[slot]+cycle, id)
}

// RescheduleAbs rearms the slot at an absolute cycle, keeping id and data.
func (s *Scheduler) RescheduleAbs(slot EventSlot, cycle int64) {
	s.Trigger[slot] = cycle
	if cycle < s.NextTrigger {
		s.NextTrigger = cycle
	}

	if slot.isTertiary() && cycle < s.Trigger[SlotTER] {
		s.Trigger[SlotTER] = cycle
	}
	if (slot.isTertiary() || slot.isSecondary()) && cycle < s.Trigger[SlotSEC] {
		s.Trigger[SlotSEC] = cycle
	}
}

// RescheduleInc rearms the slot relative to its current trigger cycle.
func (s *Scheduler) RescheduleInc(slot EventSlot, cycle int64) {
	s.RescheduleAbs(slot, s.Trigger[slot]+cycle)
}

// Cancel empties a slot. Cancellation is lazy: aggregator triggers are not
// lowered and the next service pass skips the slot.
func (s *Scheduler) Cancel(slot EventSlot) {
	s.ID[slot] = EventNone
	s.Data[slot] = 0
	s.Trigger[slot] = never
}
