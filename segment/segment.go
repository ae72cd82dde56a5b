// Package segment maps decimal digits onto the addressable LEDs of the
// clock's two digit-pair assemblies.  The hour and minute assemblies are
// different products with different internal wiring, so each gets its own
// pattern table and its own logical-to-physical permutation.
package segment

// Unit selects one of the two physical digit-pair assemblies.
type Unit int

const (
	Hour Unit = iota
	Minute
)

// NumSegments is the number of illuminable strokes per digit glyph.
const NumSegments = 7

// Glyph patterns, one per decimal digit.  Bit (6-i) of a pattern is
// logical segment i in the standard A-G labeling.  Values transcribed
// from the PCBs; the two assemblies do not share a table.
var (
	hourPatterns = [10]uint8{
		0b1111110, 0b0110000, 0b1101101, 0b1111001, 0b0110011,
		0b1011011, 0b1011111, 0b1110000, 0b1111111, 0b1111011,
	}
	minutePatterns = [10]uint8{
		0b1110111, 0b0010010, 0b1011101, 0b1011011, 0b0111010,
		0b1101011, 0b1101111, 0b1010010, 0b1111111, 0b1111011,
	}
)

// Logical segment index -> LED offset within a digit's 7-LED block.
var (
	hourWiring   = [NumSegments]int{1, 0, 4, 5, 6, 2, 3}
	minuteWiring = [NumSegments]int{5, 4, 6, 3, 0, 2, 1}
)

// PatternFor returns the segment bitmask for digit on the given unit.
// digit must be in [0,9]; anything else is a caller bug.
func PatternFor(u Unit, digit int) uint8 {
	if u == Minute {
		return minutePatterns[digit]
	}
	return hourPatterns[digit]
}

// PhysicalOffset translates a logical segment index (0-6) to the LED
// offset within the digit's block on the given unit.
func PhysicalOffset(u Unit, seg int) int {
	if u == Minute {
		return minuteWiring[seg]
	}
	return hourWiring[seg]
}

// Draw writes digit's glyph into buf at base.  Lit segments get color,
// unlit segments get 0, so a previously drawn glyph at the same base is
// fully overwritten.  Draw does not flush anything to hardware.
func Draw(buf []uint32, u Unit, base, digit int, color uint32) {
	pattern := PatternFor(u, digit)
	for i := 0; i < NumSegments; i++ {
		c := uint32(0)
		if pattern>>(NumSegments-1-i)&1 == 1 {
			c = color
		}
		buf[base+PhysicalOffset(u, i)] = c
	}
}
