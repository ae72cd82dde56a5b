package segment

import (
	"math/bits"
	"testing"
)

func TestPatternPopCounts(t *testing.T) {
	// Canonical 7-segment glyphs light a fixed number of strokes per
	// digit, regardless of how the assembly is wired.
	want := [10]int{6, 2, 5, 5, 4, 5, 6, 3, 7, 6}
	for _, u := range []Unit{Hour, Minute} {
		for d := 0; d <= 9; d++ {
			p := PatternFor(u, d)
			if p&^0x7f != 0 {
				t.Errorf("unit %v digit %d: pattern %#08b has bits outside the 7 segments", u, d, p)
			}
			if got := bits.OnesCount8(p); got != want[d] {
				t.Errorf("unit %v digit %d: %d segments lit, want %d", u, d, got, want[d])
			}
		}
	}
}

func TestWiringIsBijective(t *testing.T) {
	for _, u := range []Unit{Hour, Minute} {
		seen := map[int]int{}
		for i := 0; i < NumSegments; i++ {
			off := PhysicalOffset(u, i)
			if off < 0 || off >= NumSegments {
				t.Errorf("unit %v segment %d: offset %d out of range", u, i, off)
			}
			if prev, dup := seen[off]; dup {
				t.Errorf("unit %v: segments %d and %d both map to offset %d", u, prev, i, off)
			}
			seen[off] = i
		}
	}
}

func TestDraw(t *testing.T) {
	const color = 0xff0000
	buf := make([]uint32, 15)
	for i := range buf {
		buf[i] = 0xbadbad // stale frame data that Draw must overwrite
	}
	Draw(buf, Hour, 1, 1, color)

	// Digit 1 on the hour unit is pattern 0b0110000: logical segments
	// 1 and 2 lit, which the hour wiring sends to offsets 0 and 4.
	for off := 0; off < NumSegments; off++ {
		want := uint32(0)
		if off == 0 || off == 4 {
			want = color
		}
		if got := buf[1+off]; got != want {
			t.Errorf("offset %d: got %#x, want %#x", off, got, want)
		}
	}
	// Slots outside the digit's block are untouched.
	if buf[0] != 0xbadbad || buf[8] != 0xbadbad {
		t.Errorf("Draw wrote outside its block: buf[0]=%#x buf[8]=%#x", buf[0], buf[8])
	}
}

func TestDrawEight(t *testing.T) {
	for _, u := range []Unit{Hour, Minute} {
		buf := make([]uint32, 15)
		Draw(buf, u, 8, 8, 0x00ff00)
		for off := 0; off < NumSegments; off++ {
			if buf[8+off] != 0x00ff00 {
				t.Errorf("unit %v: digit 8 left offset %d dark", u, off)
			}
		}
	}
}
