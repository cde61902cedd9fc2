package beam

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

// Cycle counts master clock cycles (color clocks). One DMA cycle covers
// four color clocks.
type Cycle = int64

// DMACycles converts a DMA cycle count to a master cycle count.
func DMACycles(n int64) Cycle {
	return n << 2
}

// AsDMACycles converts a master cycle count to a DMA cycle count.
func AsDMACycles(c Cycle) int64 {
	return c >> 2
}

// Horizontal and vertical raster limits.
const (
	HPosCntPAL    = 227
	HPosMaxPAL    = 226
	HPosCntNTSCLL = 228 // long line
	HPosCntNTSCSL = 227 // short line

	VPosCntPALLF  = 313
	VPosCntPALSF  = 312
	VPosCntNTSCLF = 263
	VPosCntNTSCSF = 262
)

// VideoFormat selects the color system the chipset is wired for.
type VideoFormat int

const (
	PAL VideoFormat = iota
	NTSC
)

func (f VideoFormat) String() string {
	if f == NTSC {
		return "NTSC"
	}
	return "PAL"
}

// FrameType distinguishes the six raster frame layouts. NTSC frames come in
// two flavors depending on whether the first line is a long line.
type FrameType int

const (
	FramePALLF FrameType = iota
	FramePALSF
	FrameNTSCLFLL
	FrameNTSCLFSL
	FrameNTSCSFLL
	FrameNTSCSFSL
)

// Beam tracks the raster position of the virtual electron beam. All fields
// are mutated in lockstep with the master clock.
type Beam struct {
	V int64
	H int64

	Frame int64

	// Long frame flipflop
	LOF       bool
	LOFToggle bool

	// Long line flipflop (NTSC only)
	LOL       bool
	LOLToggle bool

	Format VideoFormat

	// Coordinates latched at the end of the previous line / frame
	HLatched int64
	VLatched int64
}

// HCnt returns the number of DMA cycles in the current line.
func (b *Beam) HCnt() int64 {
	if b.LOL {
		return 228
	}
	return 227
}

// HMax returns the highest horizontal position of the current line.
func (b *Beam) HMax() int64 {
	return b.HCnt() - 1
}

// VCnt returns the number of lines in the current frame.
func (b *Beam) VCnt() int64 {
	if b.Format == PAL {
		if b.LOF {
			return VPosCntPALLF
		}
		return VPosCntPALSF
	}
	if b.LOF {
		return VPosCntNTSCLF
	}
	return VPosCntNTSCSF
}

// VMax returns the highest vertical position of the current frame.
func (b *Beam) VMax() int64 {
	return b.VCnt() - 1
}

// Advance moves the beam forward by n DMA cycles.
func (b *Beam) Advance(n int64) {
	if n < 0 {
		b.Rewind(-n)
		return
	}

	// Jump near the target frame
	cycles := b.CyclesPerFrames(4)
	b.Frame += (n / cycles) * 4
	n %= cycles

	for n > 0 {
		step := n
		if step > HPosMaxPAL {
			step = HPosMaxPAL
		}
		n -= step
		b.H += step

		if b.H >= b.HCnt() {
			b.H -= b.HCnt()
			if b.LOLToggle {
				b.LOL = !b.LOL
			}
			if b.V++; b.V >= b.VCnt() {
				b.Frame++
				if b.LOFToggle {
					b.LOF = !b.LOF
				}
				b.V = 0
			}
		}
	}
}

// Rewind moves the beam backward by n DMA cycles.
func (b *Beam) Rewind(n int64) {
	if n < 0 {
		b.Advance(-n)
		return
	}

	cycles := b.CyclesPerFrames(4)
	b.Frame -= (n / cycles) * 4
	n %= cycles

	for n > 0 {
		step := n
		if step > HPosMaxPAL {
			step = HPosMaxPAL
		}
		n -= step
		b.H -= step

		if b.H < 0 {
			if b.LOLToggle {
				b.LOL = !b.LOL
			}
			b.H += b.HCnt()
			if b.V--; b.V < 0 {
				b.Frame--
				if b.LOFToggle {
					b.LOF = !b.LOF
				}
				b.V = b.VMax()
			}
		}
	}
}

// Plus returns a copy of the beam advanced by n DMA cycles.
func (b Beam) Plus(n int64) Beam {
	b.Advance(n)
	return b
}

// Diff returns the number of DMA cycles between the current position and
// (v2,h2). The target must not lie before the current position.
func (b *Beam) Diff(v2, h2 int64) int64 {
	var result int64

	pos := *b
	for pos.V != v2 {
		pos = pos.Plus(HPosCntPAL)
		result += HPosCntPAL
	}
	result += h2 - pos.H

	return result
}

// Sentinel coordinates returned by Translate for out-of-frame targets.
const (
	PosMin = int64(-0x80000000)
	PosMax = int64(0x7FFFFFFF)
)

// Translate converts a cycle delta into a beam position. The result is
// only precise between the current position and the frame end: negative
// deltas yield (PosMin, PosMin), deltas beyond the frame end yield
// (PosMax, PosMax).
func (b *Beam) Translate(diff int64) Beam {

	if diff < 0 {
		return Beam{V: PosMin, H: PosMin}
	}

	result := b.Plus(diff)
	if result.Frame != b.Frame {
		return Beam{V: PosMax, H: PosMax}
	}
	return result
}

// FrameType returns the type of the current frame.
func (b *Beam) FrameType() FrameType {
	if b.Format == PAL {
		if b.LOF {
			return FramePALLF
		}
		return FramePALSF
	}
	if b.V%2 == 0 && b.LOL {
		if b.LOF {
			return FrameNTSCLFLL
		}
		return FrameNTSCSFLL
	}
	if b.LOF {
		return FrameNTSCLFSL
	}
	return FrameNTSCSFSL
}

// NextFrameType predicts the type of the frame following a frame of the
// given type.
func NextFrameType(t FrameType, toggle bool) FrameType {
	switch t {

	case FramePALLF:
		if toggle {
			return FramePALSF
		}
		return FramePALLF

	case FramePALSF:
		if toggle {
			return FramePALLF
		}
		return FramePALSF

	case FrameNTSCLFLL:
		if toggle {
			return FrameNTSCSFSL
		}
		return FrameNTSCLFSL

	case FrameNTSCLFSL:
		if toggle {
			return FrameNTSCSFLL
		}
		return FrameNTSCLFLL

	case FrameNTSCSFLL:
		if toggle {
			return FrameNTSCLFLL
		}
		return FrameNTSCSFLL

	case FrameNTSCSFSL:
		if toggle {
			return FrameNTSCLFSL
		}
		return FrameNTSCSFSL
	}

	panic("invalid frame type")
}

// CyclesPerFrame returns the number of DMA cycles in a frame of the given type.
func CyclesPerFrame(t FrameType) int64 {
	switch t {

	case FramePALLF:
		return VPosCntPALLF * HPosCntPAL

	case FramePALSF:
		return VPosCntPALSF * HPosCntPAL

	case FrameNTSCLFLL:
		return 132*HPosCntNTSCLL + 131*HPosCntNTSCSL

	case FrameNTSCLFSL:
		return 132*HPosCntNTSCSL + 131*HPosCntNTSCLL

	case FrameNTSCSFLL, FrameNTSCSFSL:
		return 131*HPosCntNTSCSL + 131*HPosCntNTSCLL
	}

	panic("invalid frame type")
}

// CyclesPerFrame returns the number of DMA cycles in the current frame.
func (b *Beam) CyclesPerFrame() int64 {
	return CyclesPerFrame(b.FrameType())
}

// CyclesPerFrames returns the number of DMA cycles in the next count frames.
func (b *Beam) CyclesPerFrames(count int64) int64 {
	var result int64

	t := b.FrameType()
	for i := int64(0); i < count; i++ {
		result += CyclesPerFrame(t)
		t = NextFrameType(t, b.LOFToggle)
	}

	return result
}

// EOL latches the horizontal coordinate and advances the beam to the next
// line, toggling the line length if toggling is enabled.
func (b *Beam) EOL() {
	b.HLatched = b.H

	b.H = 0
	if b.V++; b.V > b.VMax() {
		b.EOF()
	}

	if b.LOLToggle {
		b.LOL = !b.LOL
	}
}

// EOF latches the vertical coordinate and advances the beam to the next
// frame, toggling the frame length if toggling is enabled.
func (b *Beam) EOF() {
	b.VLatched = b.V

	b.V = 0
	b.Frame++

	if b.LOFToggle {
		b.LOF = !b.LOF
	}
}

// SwitchMode reconfigures the beam for the given video format.
func (b *Beam) SwitchMode(format VideoFormat) {
	switch format {

	case PAL:
		b.Format = PAL
		b.LOL = false
		b.LOLToggle = false
		b.VLatched = VPosCntPALLF - 1

	case NTSC:
		b.Format = NTSC
		b.LOL = false
		b.LOLToggle = true
		b.VLatched = VPosCntNTSCLF - 1

	default:
		panic("invalid video format")
	}
}
