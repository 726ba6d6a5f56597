package ppu

import (
	"container/list"

	"github.com/cespare/xxhash"
)

// defaultTileCacheCapacity bounds the number of decoded tile images kept
// when a PPU is constructed without an explicit capacity.
const defaultTileCacheCapacity = 1024

// paletteColours is the 4 RGB colours a tile image is resolved against:
// either a DMG palette register or one row of a CGB BG/OBJ palette.
type paletteColours [4][3]uint8

// tileImage is a fully decoded 8x8 tile: idx holds the raw 2-bit colour
// index (palette-independent, used by callers that need to know whether
// a background pixel is transparent for sprite-priority purposes) and
// rgba holds the same pixels resolved against the palette the image was
// built with.
type tileImage struct {
	idx  [8][8]uint8
	rgba [8][8][4]uint8
}

// tileCacheKey identifies a decoded tile by the hash of its 16 source
// pattern bytes, XORed with the hash of the 4 palette colours applied to
// it and the flip bits governing its orientation, exactly as spec'd by
// the (pattern, palette, attr) tile invariant. Because the key is derived
// from content rather than an address, a VRAM write or palette mutation
// that changes a tile's appearance produces a different key on the next
// lookup; the old entry is simply never retrieved again and ages out of
// the LRU rather than needing an explicit invalidation pass keyed by
// address (which would mean tracking a reverse index back from every
// VRAM byte to the tiles referencing it).
type tileCacheKey uint64

type tileCacheEntry struct {
	key tileCacheKey
	img tileImage
}

// tileCache is a capacity-bounded, least-recently-used cache of decoded
// tile images, sized at construction from Config rather than grown
// against live runtime memory.
type tileCache struct {
	capacity int
	entries  map[tileCacheKey]*list.Element
	order    *list.List // front = most recently used
}

func newTileCache(capacity int) *tileCache {
	if capacity <= 0 {
		capacity = defaultTileCacheCapacity
	}
	return &tileCache{
		capacity: capacity,
		entries:  make(map[tileCacheKey]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *tileCache) get(key tileCacheKey) (tileImage, bool) {
	el, ok := c.entries[key]
	if !ok {
		return tileImage{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*tileCacheEntry).img, true
}

func (c *tileCache) put(key tileCacheKey, img tileImage) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*tileCacheEntry).img = img
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&tileCacheEntry{key: key, img: img})
	c.entries[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*tileCacheEntry).key)
	}
}

func (c *tileCache) len() int { return c.order.Len() }

func hashPalette(pal paletteColours) uint64 {
	var buf [12]byte
	for i, col := range pal {
		buf[i*3] = col[0]
		buf[i*3+1] = col[1]
		buf[i*3+2] = col[2]
	}
	return xxhash.Sum64(buf[:])
}

// decodeTile builds the 8x8 index/RGBA image for 16 raw pattern bytes (2
// bytes per row, low/high bitplane), applying pal and the flip bits. The
// resulting image is stored in display order: img.idx[row][col] is
// already the pixel a viewer sees after any flip, so callers never need
// to re-derive flipped coordinates once they have it.
func decodeTile(pattern [16]byte, pal paletteColours, flipX, flipY bool) tileImage {
	var img tileImage
	for row := 0; row < 8; row++ {
		srcRow := row
		if flipY {
			srcRow = 7 - row
		}
		lo, hi := pattern[srcRow*2], pattern[srcRow*2+1]
		for col := 0; col < 8; col++ {
			srcCol := col
			if flipX {
				srcCol = 7 - col
			}
			bit := 7 - srcCol
			idx := (lo>>bit)&1 | ((hi>>bit)&1)<<1
			img.idx[row][col] = idx
			c := pal[idx]
			img.rgba[row][col] = [4]uint8{c[0], c[1], c[2], 0xFF}
		}
	}
	return img
}

// tile returns the decoded image for the 16 pattern bytes at addr in the
// given VRAM bank, resolved against pal with the given flip bits,
// consulting and populating the tile cache.
func (p *PPU) tile(bank uint8, addr uint16, pal paletteColours, flipX, flipY bool) tileImage {
	var pattern [16]byte
	for i := range pattern {
		pattern[i] = p.vram[bank].Read(addr + uint16(i))
	}

	var attrBits uint64
	if flipX {
		attrBits |= 0x1
	}
	if flipY {
		attrBits |= 0x2
	}

	key := tileCacheKey(xxhash.Sum64(pattern[:]) ^ hashPalette(pal) ^ attrBits)
	if img, ok := p.tiles.get(key); ok {
		return img
	}
	img := decodeTile(pattern, pal, flipX, flipY)
	p.tiles.put(key, img)
	return img
}
