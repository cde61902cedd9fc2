package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"errors"
	"math/rand"

	"github.com/retrovault/amiga/pkg/beam"
	"github.com/retrovault/amiga/pkg/floppy"
	"github.com/retrovault/amiga/pkg/msg"
)

// DriveType selects the kind of floppy drive attached to a port.
type DriveType int

const (
	DriveDD35 DriveType = iota
	DriveHD35
	DriveDD525
)

// DriveMechanics selects the mechanical timing model.
type DriveMechanics int

const (
	MechanicsNone DriveMechanics = iota
	MechanicsA1010
)

var (
	ErrDiskIncompatible = errors.New("disk is incompatible with this drive")
	ErrDiskMissing      = errors.New("no disk in drive")
)

// CIA B port B drive control lines
const (
	prbStep  uint8 = 1 << 0
	prbDir   uint8 = 1 << 1
	prbSide  uint8 = 1 << 2
	prbSel0  uint8 = 1 << 3
	prbMotor uint8 = 1 << 7
)

// Head is the mechanical position of the drive head.
type Head struct {
	Cylinder int
	Side     int
	Offset   int
}

// FloppyDrive models the drive mechanics: motor ramp, head stepping,
// identification shift register and disk change handling.
type FloppyDrive struct {
	amiga *Amiga
	Nr    int

	Type      DriveType
	Mechanics DriveMechanics

	Head Head

	// Motor state. The current speed is derived from the switch time.
	motor       bool
	switchCycle int64
	switchSpeed float64

	// Identification shift register
	idCount int
	idBit   bool

	// Step bookkeeping
	latestStep          int64
	latestStepUp        int64
	latestStepDown      int64
	latestStepCompleted int64

	// 64 bit history of visited cylinders, for disk polling detection
	cylinderHistory uint64

	// Disk change latch: false after an eject until a disk is inserted
	// and a step pulse has been seen
	dskchange bool

	// Last seen CIA B port value
	prb uint8

	Disk *floppy.Disk

	// Disk waiting in the insertion slot
	diskToInsert *floppy.Disk

	rng *rand.Rand
}

func newFloppyDrive(amiga *Amiga, nr int) *FloppyDrive {
	return &FloppyDrive{
		amiga:     amiga,
		Nr:        nr,
		Type:      DriveDD35,
		Mechanics: MechanicsA1010,
		prb:       0xFF,
		rng:       rand.New(rand.NewSource(int64(nr))),
	}
}

func (d *FloppyDrive) slot() EventSlot {
	return SlotDC0 + EventSlot(d.Nr)
}

// HasDisk reports whether a disk is inserted.
func (d *FloppyDrive) HasDisk() bool { return d.Disk != nil }

// HasUnprotectedDisk reports whether a writable disk is inserted.
func (d *FloppyDrive) HasUnprotectedDisk() bool {
	return d.Disk != nil && !d.Disk.WriteProtected
}

// IsSelected reports whether this drive's select line is pulled low.
func (d *FloppyDrive) IsSelected() bool {
	return d.prb&(prbSel0<<uint(d.Nr)) == 0
}

// Mechanical timing constants

func (d *FloppyDrive) startDelay() int64 {
	if d.Mechanics == MechanicsNone {
		return 0
	}
	return MSec(380)
}

func (d *FloppyDrive) stopDelay() int64 {
	if d.Mechanics == MechanicsNone {
		return 0
	}
	return MSec(80)
}

func (d *FloppyDrive) stepPulseDelay() int64 {
	if d.Mechanics == MechanicsNone {
		return 0
	}
	return USec(40)
}

func (d *FloppyDrive) revStepPulseDelay() int64 {
	if d.Mechanics == MechanicsNone {
		return 0
	}
	return USec(40)
}

func (d *FloppyDrive) trackToTrackDelay() int64 {
	if d.Mechanics == MechanicsNone {
		return 0
	}
	return MSec(3)
}

func (d *FloppyDrive) headSettleTime() int64 {
	if d.Mechanics == MechanicsNone {
		return 0
	}
	return MSec(9)
}

// MotorSpeed returns the motor speed in percent, following a linear ramp
// between the switch time and the full start or stop delay.
func (d *FloppyDrive) MotorSpeed() float64 {

	elapsed := d.amiga.Agnus.Clock - d.switchCycle

	if d.motor {
		delay := d.startDelay()
		if delay == 0 {
			return 100.0
		}
		speed := d.switchSpeed + 100.0*float64(elapsed)/float64(delay)
		if speed > 100.0 {
			speed = 100.0
		}
		return speed
	}

	delay := d.stopDelay()
	if delay == 0 {
		return 0.0
	}
	speed := d.switchSpeed - 100.0*float64(elapsed)/float64(delay)
	if speed < 0.0 {
		speed = 0.0
	}
	return speed
}

// SetMotor switches the drive motor.
func (d *FloppyDrive) SetMotor(value bool) {

	if d.motor == value {
		return
	}

	d.switchSpeed = d.MotorSpeed()
	d.switchCycle = d.amiga.Agnus.Clock
	d.motor = value

	// Restart the identification sequence when the motor stops
	d.idCount = 0

	d.amiga.Queue.Put(msg.Message{Type: msg.DriveLED, Drive: d.Nr, Value: boolValue(value)})
	d.amiga.Queue.Put(msg.Message{Type: msg.DriveMotor, Drive: d.Nr, Value: boolValue(value)})
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (d *FloppyDrive) motorSpeedingUp() bool  { return d.motor && d.MotorSpeed() < 100.0 }
func (d *FloppyDrive) motorAtFullSpeed() bool { return d.MotorSpeed() == 100.0 }
func (d *FloppyDrive) motorSlowingDown() bool { return !d.motor && d.MotorSpeed() > 0.0 }
func (d *FloppyDrive) motorStopped() bool     { return d.MotorSpeed() == 0.0 }

// idMode reports whether the drive shifts out its identification
// signature instead of the ready signal.
func (d *FloppyDrive) idMode() bool {
	return d.motorStopped() || d.motorSpeedingUp()
}

// driveID returns the 32 bit identification signature of this drive.
func (d *FloppyDrive) driveID() uint32 {

	// The internal drive identifies itself as 0
	if d.Nr == 0 {
		return 0x00000000
	}

	switch d.Type {
	case DriveDD35:
		return 0xFFFFFFFF
	case DriveHD35:
		if d.Disk != nil && d.Disk.Density == floppy.HD {
			return 0xAAAAAAAA
		}
		return 0xFFFFFFFF
	case DriveDD525:
		return 0x55555555
	}

	panic("invalid drive type")
}

// DriveStatusFlags assembles the bits this drive contributes to CIA A
// port A. All signals are active low.
func (d *FloppyDrive) DriveStatusFlags() uint8 {

	result := uint8(0xFF)

	if d.IsSelected() {

		// PA5: /DSKRDY
		if d.idMode() {
			if d.idBit {
				result &= 0b11011111
			}
		} else if d.HasDisk() {
			if d.motorAtFullSpeed() || d.motorSlowingDown() {
				result &= 0b11011111
			}
		}

		// PA4: /DSKTRACK0
		if d.Head.Cylinder == 0 {
			result &= 0b11101111
		}

		// PA3: /DSKPROT
		if !d.HasUnprotectedDisk() {
			result &= 0b11110111
		}

		// PA2: /DSKCHANGE
		if !d.dskchange {
			result &= 0b11111011
		}
	}

	return result
}

// PRBDidChange reacts to a write of the CIA B data port: select lines,
// motor switch, side select, head steps and the id shift register.
func (d *FloppyDrive) PRBDidChange(old, value uint8) {

	oldSelected := old&(prbSel0<<uint(d.Nr)) == 0
	d.prb = value
	selected := d.IsSelected()

	// Head side
	if value&prbSide == 0 {
		d.Head.Side = 1
	} else {
		d.Head.Side = 0
	}

	if selected {

		// The motor line is latched on the falling select edge
		if !oldSelected {
			d.SetMotor(value&prbMotor == 0)

			// Falling select edge shifts the identification register
			if d.idMode() {
				id := d.driveID()
				d.idBit = id<<uint(d.idCount)&0x80000000 != 0
				d.idCount = (d.idCount + 1) % 32
			}
		}

		// A rising edge on the step line moves the head
		if old&prbStep == 0 && value&prbStep != 0 {
			if value&prbDir != 0 {
				d.Step(-1)
			} else {
				d.Step(+1)
			}
		}
	}
}

func (d *FloppyDrive) readyToStepUp() bool {

	clock := d.amiga.Agnus.Clock

	if clock-d.latestStep < d.stepPulseDelay() {
		return false
	}
	if clock-d.latestStepDown < d.revStepPulseDelay() {
		return false
	}
	return true
}

func (d *FloppyDrive) readyToStepDown() bool {

	clock := d.amiga.Agnus.Clock

	if clock-d.latestStep < d.stepPulseDelay() {
		return false
	}
	if clock-d.latestStepUp < d.revStepPulseDelay() {
		return false
	}
	return true
}

// Step moves the drive head one cylinder. dir > 0 steps inwards, towards
// the higher cylinders.
func (d *FloppyDrive) Step(dir int) {

	clock := d.amiga.Agnus.Clock

	// A step pulse with a disk inserted releases the change latch
	if d.HasDisk() {
		d.dskchange = true
	}

	if dir < 0 {

		if !d.readyToStepDown() {
			return
		}

		if d.Head.Cylinder > 0 {
			d.Head.Cylinder--
			d.recordCylinder(d.Head.Cylinder)
			d.latestStepCompleted = clock + d.trackToTrackDelay() + d.headSettleTime()
			d.latestStep = clock
			d.latestStepDown = clock
		}

	} else {

		if !d.readyToStepUp() {
			return
		}

		if d.Head.Cylinder < floppy.MaxCylinders-1 {
			d.Head.Cylinder++
			d.recordCylinder(d.Head.Cylinder)
			d.latestStepCompleted = clock + d.trackToTrackDelay() + d.headSettleTime()
			d.latestStep = clock
			d.latestStepUp = clock
		}
	}

	if d.PollsForDisk() {
		d.amiga.Queue.Put(msg.Message{Type: msg.DrivePoll, Drive: d.Nr, Value: int64(d.Head.Cylinder)})
	} else {
		d.amiga.Queue.Put(msg.Message{Type: msg.DriveStep, Drive: d.Nr, Value: int64(d.Head.Cylinder)})
	}
}

func (d *FloppyDrive) recordCylinder(cylinder int) {
	d.cylinderHistory = d.cylinderHistory&0x00FFFFFFFFFFFFFF<<8 | uint64(cylinder)
}

// PollsForDisk detects the cylinder dances Kickstart performs while
// waiting for a disk.
func (d *FloppyDrive) PollsForDisk() bool {

	// Disk polling is only performed if no disk is inserted
	if d.HasDisk() {
		return false
	}

	/* Head polling sequences of different Kickstart versions:
	 *
	 * Kickstart 1.2 and 1.3: 0-1-0-1-0-1-...
	 * Kickstart 2.0:         0-1-2-3-2-3-...
	 */
	signatures := [4]uint64{
		0x010001000100,
		0x000100010001,
		0x020302030203,
		0x030203020302,
	}

	const mask = 0xFFFFFFFF
	for _, sig := range signatures {
		if d.cylinderHistory&mask == sig&mask {
			return true
		}
	}

	return false
}

// ReadByte returns the byte under the drive head. During head settling
// random bytes are returned; without a disk the data line floats high.
func (d *FloppyDrive) ReadByte() byte {

	if d.Disk == nil {
		return 0xFF
	}

	if d.amiga.Agnus.Clock < d.latestStepCompleted {
		return byte(d.rng.Intn(256)) & 0x55
	}

	return d.Disk.ReadByteCH(d.Head.Cylinder, d.Head.Side, d.Head.Offset)
}

// ReadByteAndRotate reads a byte and advances the disk if the motor is
// spinning.
func (d *FloppyDrive) ReadByteAndRotate() byte {
	result := d.ReadByte()
	if d.motor {
		d.rotate()
	}
	return result
}

// ReadWordAndRotate reads a big-endian word.
func (d *FloppyDrive) ReadWordAndRotate() uint16 {
	hi := d.ReadByteAndRotate()
	lo := d.ReadByteAndRotate()
	return uint16(hi)<<8 | uint16(lo)
}

// WriteByte stores a byte at the current head position.
func (d *FloppyDrive) WriteByte(value byte) {
	if d.Disk != nil {
		d.Disk.WriteByteCH(value, d.Head.Cylinder, d.Head.Side, d.Head.Offset)
	}
}

// WriteByteAndRotate stores a byte and advances the disk.
func (d *FloppyDrive) WriteByteAndRotate(value byte) {
	d.WriteByte(value)
	if d.motor {
		d.rotate()
	}
}

// WriteWordAndRotate stores a big-endian word.
func (d *FloppyDrive) WriteWordAndRotate(value uint16) {
	d.WriteByteAndRotate(byte(value >> 8))
	d.WriteByteAndRotate(byte(value))
}

func (d *FloppyDrive) rotate() {

	last := floppy.TrackSizeDD
	if d.Disk != nil {
		last = d.Disk.TrackLength(2*d.Head.Cylinder + d.Head.Side)
	}

	if d.Head.Offset++; d.Head.Offset >= last {

		d.Head.Offset = 0

		// The index pulse is wired to the CIA B flag pin
		if d.IsSelected() {
			d.amiga.CIAB.EmulateFallingEdgeOnFlagPin()
		}
	}
}

// FindSyncMark fast-forwards the head to the next sector sync mark.
func (d *FloppyDrive) FindSyncMark() {

	if d.Disk == nil {
		return
	}

	length := d.Disk.TrackLength(2*d.Head.Cylinder + d.Head.Side)
	for i := 0; i < length; i++ {
		if d.ReadByteAndRotate() != 0x44 {
			continue
		}
		if d.ReadByteAndRotate() != 0x89 {
			continue
		}
		break
	}
}

// IsInsertable reports whether a disk of the given geometry fits this
// drive.
func (d *FloppyDrive) IsInsertable(dia floppy.Diameter, den floppy.Density) bool {

	switch d.Type {
	case DriveDD35:
		return dia == floppy.Inch35 && den == floppy.DD
	case DriveHD35:
		return dia == floppy.Inch35
	case DriveDD525:
		return dia == floppy.Inch525 && den == floppy.DD
	}

	panic("invalid drive type")
}

// InsertDisk transfers ownership of the disk into the drive's insertion
// slot. The actual swap happens when the scheduled event fires.
func (d *FloppyDrive) InsertDisk(disk *floppy.Disk, delay int64) error {

	if disk == nil {
		return ErrDiskMissing
	}
	if !d.IsInsertable(disk.Diameter, disk.Density) {
		return ErrDiskIncompatible
	}

	d.diskToInsert = disk
	d.amiga.Agnus.Sched.ScheduleAbs(d.slot(), d.amiga.Agnus.Clock+delay, DchInsert)
	if delay == 0 {
		d.ServiceDiskChangeEvent()
	}

	return nil
}

// EjectDisk schedules the removal of the inserted disk.
func (d *FloppyDrive) EjectDisk(delay int64) {

	d.amiga.Agnus.Sched.ScheduleAbs(d.slot(), d.amiga.Agnus.Clock+delay, DchEject)
	if delay == 0 {
		d.ServiceDiskChangeEvent()
	}
}

// SwapDisk ejects the current disk and inserts another one with the
// mechanical delays of a human disk change.
func (d *FloppyDrive) SwapDisk(disk *floppy.Disk) error {

	if !d.IsInsertable(disk.Diameter, disk.Density) {
		return ErrDiskIncompatible
	}

	delay := int64(0)
	if d.HasDisk() {
		d.EjectDisk(beam.DMACycles(1))
		delay = MSec(1500)
	}

	return d.InsertDisk(disk, delay)
}

// ServiceDiskChangeEvent performs the pointer swap queued in the drive's
// scheduler slot.
func (d *FloppyDrive) ServiceDiskChangeEvent() {

	sched := d.amiga.Agnus.Sched
	slot := d.slot()

	switch sched.ID[slot] {

	case DchEject:
		d.Disk = nil
		d.dskchange = false
		d.amiga.Queue.Put(msg.Message{Type: msg.DiskEject, Drive: d.Nr})

	case DchInsert:
		d.Disk = d.diskToInsert
		d.diskToInsert = nil
		d.Head.Offset = 0
		d.amiga.Queue.Put(msg.Message{Type: msg.DiskInsert, Drive: d.Nr})

	case EventNone:
		// Spurious service of a cancelled slot

	default:
		panic("unhandled disk change event")
	}

	sched.Cancel(slot)
}

// SetWriteProtection toggles the write protection of the inserted disk.
func (d *FloppyDrive) SetWriteProtection(value bool) {

	if d.Disk == nil || d.Disk.WriteProtected == value {
		return
	}
	d.Disk.WriteProtected = value

	if value {
		d.amiga.Queue.Put(msg.Message{Type: msg.DiskProtected, Drive: d.Nr})
	} else {
		d.amiga.Queue.Put(msg.Message{Type: msg.DiskUnprotected, Drive: d.Nr})
	}
}
