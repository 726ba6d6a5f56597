package ppu

import (
	"testing"

	"github.com/ferrite-systems/gbcore/internal/interrupts"
)

func newTestPPU(isGBC bool, tileCacheCapacity int) *PPU {
	return New(interrupts.NewService(), isGBC, tileCacheCapacity)
}

// solidTilePattern returns the 16 pattern bytes for a tile whose every
// pixel is the given 2-bit colour index.
func solidTilePattern(idx uint8) [16]byte {
	var pattern [16]byte
	lo, hi := idx&1, (idx>>1)&1
	for row := 0; row < 8; row++ {
		if lo != 0 {
			pattern[row*2] = 0xFF
		}
		if hi != 0 {
			pattern[row*2+1] = 0xFF
		}
	}
	return pattern
}

func writeTile(p *PPU, bank uint8, addr uint16, pattern [16]byte) {
	for i, b := range pattern {
		p.vram[bank].Write(addr+uint16(i), b)
	}
}

func TestTile_CachesRepeatedLookups(t *testing.T) {
	p := newTestPPU(false, 0)
	writeTile(p, 0, 0, solidTilePattern(3))
	pal := paletteColours(p.BGPalette.Colors)

	p.tile(0, 0, pal, false, false)
	if got := p.tiles.len(); got != 1 {
		t.Fatalf("expected 1 cache entry after first lookup, got %d", got)
	}
	p.tile(0, 0, pal, false, false)
	if got := p.tiles.len(); got != 1 {
		t.Fatalf("expected repeated lookup to hit the cache, got %d entries", got)
	}
}

func TestTile_DistinctAttrsAreDistinctEntries(t *testing.T) {
	p := newTestPPU(false, 0)
	writeTile(p, 0, 0, solidTilePattern(3))
	pal := paletteColours(p.BGPalette.Colors)

	p.tile(0, 0, pal, false, false)
	p.tile(0, 0, pal, true, false) // flipX changes the key
	if got := p.tiles.len(); got != 2 {
		t.Fatalf("expected flipX to produce a distinct cache entry, got %d entries", got)
	}
}

func TestTile_VRAMWriteInvalidatesByContent(t *testing.T) {
	p := newTestPPU(false, 0)
	writeTile(p, 0, 0, solidTilePattern(3))
	pal := paletteColours(p.BGPalette.Colors)

	before := p.tile(0, 0, pal, false, false)
	if before.idx[0][0] != 3 {
		t.Fatalf("expected colour index 3, got %d", before.idx[0][0])
	}

	// A write to the tile's bytes (within 0x8000-0x97FF once offset by the
	// MMU) changes the pattern hash baked into the cache key, so the next
	// lookup misses and decodes the new bytes rather than returning the
	// stale image.
	writeTile(p, 0, 0, solidTilePattern(1))
	after := p.tile(0, 0, pal, false, false)
	if after.idx[0][0] != 1 {
		t.Fatalf("expected the new pattern to be decoded, got colour index %d", after.idx[0][0])
	}
	if got := p.tiles.len(); got != 2 {
		t.Fatalf("expected both the stale and fresh images to occupy cache slots, got %d", got)
	}
}

func TestTile_PaletteMutationInvalidatesByContent(t *testing.T) {
	p := newTestPPU(false, 0)
	writeTile(p, 0, 0, solidTilePattern(3))

	greyscale := paletteColours(p.BGPalette.Colors)
	before := p.tile(0, 0, greyscale, false, false)
	if before.rgba[0][0] != [4]uint8{0x00, 0x00, 0x00, 0xFF} {
		t.Fatalf("expected black, got %v", before.rgba[0][0])
	}

	p.WriteRegister(0xFF47, 0x00) // BGP: every shade maps to index 0 (white)
	after := p.tile(0, 0, paletteColours(p.BGPalette.Colors), false, false)
	if after.rgba[0][0] != [4]uint8{0xFF, 0xFF, 0xFF, 0xFF} {
		t.Fatalf("expected the new palette to resolve to white, got %v", after.rgba[0][0])
	}
}

func TestTileCache_EvictsLeastRecentlyUsed(t *testing.T) {
	p := newTestPPU(false, 2)
	pal := paletteColours(p.BGPalette.Colors)

	writeTile(p, 0, 0, solidTilePattern(1))
	p.tile(0, 0, pal, false, false)
	writeTile(p, 0, 16, solidTilePattern(2))
	p.tile(0, 16, pal, false, false)
	if got := p.tiles.len(); got != 2 {
		t.Fatalf("expected 2 entries at capacity, got %d", got)
	}

	// a third distinct tile evicts the least recently used entry (tile 0)
	writeTile(p, 0, 32, solidTilePattern(3))
	p.tile(0, 32, pal, false, false)
	if got := p.tiles.len(); got != 2 {
		t.Fatalf("expected capacity to stay bounded at 2, got %d", got)
	}
	if oldest := p.tiles.order.Back().Value.(*tileCacheEntry).img.idx[0][0]; oldest != 2 {
		t.Fatalf("expected tile 0 to be evicted, leaving tile 16 (colour 2) as least recently used, got colour %d", oldest)
	}
}

func TestRenderScanline_BackgroundPixelIsOpaqueRGBA(t *testing.T) {
	p := newTestPPU(false, 0)
	p.setLCDC(0x91) // LCD on, BG on, unsigned tile addressing, 0x9800 BG map
	writeTile(p, 0, 0, solidTilePattern(3))
	p.vram[0].Write(0x1800, 0) // map entry (0,0) -> tile 0

	p.renderScanline()

	want := [4]uint8{0x00, 0x00, 0x00, 0xFF}
	if got := p.PreparedFrame[0][0]; got != want {
		t.Fatalf("expected opaque black at (0,0), got %v", got)
	}
}

func TestBackdropColour_IsFullyOpaque(t *testing.T) {
	p := newTestPPU(false, 0)
	c := p.backdropColour()
	if c[3] != 0xFF {
		t.Fatalf("expected backdrop alpha to be fully opaque, got %d", c[3])
	}
}

func TestRenderScanline_BackgroundDisabledShowsBackdrop(t *testing.T) {
	p := newTestPPU(false, 0)
	p.setLCDC(0x80) // LCD on, everything else off
	writeTile(p, 0, 0, solidTilePattern(3))
	p.vram[0].Write(0x1800, 0)

	p.renderScanline()

	want := p.backdropColour()
	if got := p.PreparedFrame[0][0]; got != want {
		t.Fatalf("expected backdrop colour with BG disabled, got %v want %v", got, want)
	}
}

func TestBgPaletteColours_CGBUsesPaletteRow(t *testing.T) {
	p := newTestPPU(true, 0)
	p.cgbBG.SetIndex(0x80) // palette 0, colour 0, low byte, auto-increment
	p.cgbBG.Write(0x1F)    // red channel maxed in the low byte
	p.cgbBG.Write(0x00)    // high byte

	attr := bgAttributes{palette: 0}
	colours := p.bgPaletteColours(attr)
	if colours[0] != p.cgbBG.GetColour(0, 0) {
		t.Fatalf("expected bgPaletteColours to read through to the CGB BG palette, got %v", colours[0])
	}
}
