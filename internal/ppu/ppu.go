// Package ppu implements the Game Boy/Game Boy Color picture
// processing unit: the LCDC/STAT register pair, background, window and
// sprite compositing, and the DMG and CGB palettes.
package ppu

import (
	"github.com/ferrite-systems/gbcore/internal/interrupts"
	"github.com/ferrite-systems/gbcore/internal/ppu/palette"
	"github.com/ferrite-systems/gbcore/internal/ram"
	"github.com/ferrite-systems/gbcore/internal/types"
)

const (
	// ScreenWidth is the width of the LCD in pixels.
	ScreenWidth = 160
	// ScreenHeight is the height of the LCD in pixels.
	ScreenHeight = 144

	dotsOAM     = 80
	dotsTransfer = 80 + 172
	dotsPerLine = 456
)

// Mode is the current PPU scan mode, mirrored in the low two bits of STAT.
type Mode uint8

const (
	HBlank Mode = iota
	VBlank
	OAMScan
	PixelTransfer
)

// PPU renders the background, window and sprite layers scanline by
// scanline and composes them into PreparedFrame.
type PPU struct {
	irq   *interrupts.Service
	isGBC bool

	// LCDC (0xFF40)
	lcdEnabled        bool
	windowTileMapHigh bool
	windowEnabled     bool
	tileDataLow       bool // true selects the 0x8000 unsigned addressing method
	bgTileMapHigh     bool
	spriteSize16      bool
	spritesEnabled    bool
	bgEnabled         bool

	// STAT (0xFF41)
	lycInterrupt    bool
	oamInterrupt    bool
	vblankInterrupt bool
	hblankInterrupt bool
	coincidence     bool
	Mode            Mode
	statLine        bool // level of the STAT interrupt line, for edge detection

	LY, LYC          uint8
	ScrollY, ScrollX uint8
	WindowY, WindowX uint8
	windowLine       uint8 // internal window line counter

	BGPalette  palette.Palette
	OBPalette  [2]palette.Palette
	cgbBG      *palette.CGBPalette
	cgbOBJ     *palette.CGBPalette

	vramBank uint8
	vram     [2]*ram.Ram

	oam *OAM
	DMA *DMA

	dot        uint16
	frameReady bool

	tiles *tileCache

	PreparedFrame [ScreenHeight][ScreenWidth][4]uint8

	Debug struct {
		BackgroundDisabled bool
		WindowDisabled     bool
		SpritesDisabled    bool
	}
}

// New returns a new PPU. isGBC selects Game Boy Color register and
// rendering behaviour (second VRAM bank, BG/OBJ colour palettes, tile
// attribute bytes, priority bit reuse on LCDC.0). tileCacheCapacity
// bounds the number of decoded tile images kept in the PPU's tile
// cache; 0 selects defaultTileCacheCapacity.
func New(irq *interrupts.Service, isGBC bool, tileCacheCapacity int) *PPU {
	p := &PPU{
		irq:   irq,
		isGBC: isGBC,
		oam:   NewOAM(),
		vram:  [2]*ram.Ram{ram.NewRAM(0x2000), ram.NewRAM(0x2000)},
		BGPalette: palette.Palettes[palette.Greyscale],
		OBPalette: [2]palette.Palette{palette.Palettes[palette.Greyscale], palette.Palettes[palette.Greyscale]},
		cgbBG:     palette.NewCGBPallette(),
		cgbOBJ:    palette.NewCGBPallette(),
		tiles:     newTileCache(tileCacheCapacity),
	}
	p.DMA = NewDMA(busNotSet{}, p.oam)
	return p
}

// AttachDMABus finishes wiring the OAM DMA controller's source once the
// owning MMU exists (PPU is constructed before the MMU that embeds it).
func (p *PPU) AttachDMABus(bus Bus) {
	p.DMA = NewDMA(bus, p.oam)
}

// busNotSet is a placeholder Bus used only between New and AttachDMABus.
type busNotSet struct{}

func (busNotSet) Read(uint16) uint8 { return 0xFF }

// ReadVRAM returns a byte from the currently-selected VRAM bank, relative
// to 0x8000 (0x0000-0x1FFF).
func (p *PPU) ReadVRAM(address uint16) uint8 {
	if !p.vramUnlocked() {
		return 0xFF
	}
	return p.vram[p.vramBank].Read(address)
}

// WriteVRAM writes a byte to the currently-selected VRAM bank, relative
// to 0x8000. HDMA bypasses the VRAM lock (CGB games DMA during HBlank
// while the bus is momentarily free). A write within the tile data area
// (0x0000-0x17FF, i.e. 0x8000-0x97FF) changes the bytes tilecache.go hashes
// into its cache key, so any cached image built from this tile is
// simply never looked up again rather than needing to be evicted here.
func (p *PPU) WriteVRAM(address uint16, value uint8) {
	p.vram[p.vramBank].Write(address, value)
}

// ReadOAM returns a byte from OAM, relative to 0xFE00 (0-159).
func (p *PPU) ReadOAM(address uint16) uint8 {
	if !p.oamUnlocked() || p.DMA.IsTransferring() {
		return 0xFF
	}
	return p.oam.Read(address)
}

// WriteOAM writes a byte to OAM, relative to 0xFE00.
func (p *PPU) WriteOAM(address uint16, value uint8) {
	if !p.oamUnlocked() || p.DMA.IsTransferring() {
		return
	}
	p.oam.Write(address, value)
}

func (p *PPU) vramUnlocked() bool {
	return !p.lcdEnabled || p.Mode != PixelTransfer
}

func (p *PPU) oamUnlocked() bool {
	return !p.lcdEnabled || (p.Mode != OAMScan && p.Mode != PixelTransfer)
}

// ReadRegister services the LCDC/STAT/scroll/palette registers
// (0xFF40-0xFF4B) plus the CGB-only VBK/BCPS/BCPD/OCPS/OCPD registers.
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case types.LCDC:
		return p.lcdc()
	case types.STAT:
		return p.stat()
	case types.SCY:
		return p.ScrollY
	case types.SCX:
		return p.ScrollX
	case types.LY:
		return p.LY
	case types.LYC:
		return p.LYC
	case types.DMA:
		return p.DMA.Read(addr)
	case types.BGP:
		return paletteToByte(p.BGPalette)
	case types.OBP0:
		return paletteToByte(p.OBPalette[0])
	case types.OBP1:
		return paletteToByte(p.OBPalette[1])
	case types.WY:
		return p.WindowY
	case types.WX:
		return p.WindowX
	case types.VBK:
		if p.isGBC {
			return p.vramBank | 0xFE
		}
		return 0xFF
	case types.BCPS:
		if p.isGBC {
			return p.cgbBG.GetIndex() | 0x40
		}
		return 0xFF
	case types.BCPD:
		if p.isGBC {
			return p.cgbBG.Read()
		}
		return 0xFF
	case types.OCPS:
		if p.isGBC {
			return p.cgbOBJ.GetIndex() | 0x40
		}
		return 0xFF
	case types.OCPD:
		if p.isGBC {
			return p.cgbOBJ.Read()
		}
		return 0xFF
	}
	return 0xFF
}

// WriteRegister services writes to the same register range. Like
// WriteVRAM, a write to a palette register (BGP/OBP0/OBP1, or the CGB
// BCPD/OCPD indirect ports) changes the colours tilecache.go hashes into the
// cache key for any tile resolved against it, so cached images for the
// old colours simply stop being matched.
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	switch addr {
	case types.LCDC:
		p.setLCDC(value)
	case types.STAT:
		p.lycInterrupt = value&types.Bit6 != 0
		p.oamInterrupt = value&types.Bit5 != 0
		p.vblankInterrupt = value&types.Bit4 != 0
		p.hblankInterrupt = value&types.Bit3 != 0
	case types.SCY:
		p.ScrollY = value
	case types.SCX:
		p.ScrollX = value
	case types.LY:
		// any write resets the counter
		p.LY = 0
	case types.LYC:
		p.LYC = value
		p.checkLYC()
	case types.DMA:
		p.DMA.Write(addr, value)
	case types.BGP:
		p.BGPalette = byteToPalette(value)
	case types.OBP0:
		p.OBPalette[0] = byteToPalette(value)
	case types.OBP1:
		p.OBPalette[1] = byteToPalette(value)
	case types.WY:
		p.WindowY = value
	case types.WX:
		p.WindowX = value
	case types.VBK:
		if p.isGBC {
			p.vramBank = value & types.Bit0
		}
	case types.BCPS:
		if p.isGBC {
			p.cgbBG.SetIndex(value)
		}
	case types.BCPD:
		if p.isGBC && p.vramUnlocked() {
			p.cgbBG.Write(value)
		}
	case types.OCPS:
		if p.isGBC {
			p.cgbOBJ.SetIndex(value)
		}
	case types.OCPD:
		if p.isGBC && p.vramUnlocked() {
			p.cgbOBJ.Write(value)
		}
	}
}

func (p *PPU) lcdc() uint8 {
	var v uint8
	if p.lcdEnabled {
		v |= types.Bit7
	}
	if p.windowTileMapHigh {
		v |= types.Bit6
	}
	if p.windowEnabled {
		v |= types.Bit5
	}
	if p.tileDataLow {
		v |= types.Bit4
	}
	if p.bgTileMapHigh {
		v |= types.Bit3
	}
	if p.spriteSize16 {
		v |= types.Bit2
	}
	if p.spritesEnabled {
		v |= types.Bit1
	}
	if p.bgEnabled {
		v |= types.Bit0
	}
	return v
}

func (p *PPU) setLCDC(v uint8) {
	wasEnabled := p.lcdEnabled
	p.lcdEnabled = v&types.Bit7 != 0
	p.windowTileMapHigh = v&types.Bit6 != 0
	p.windowEnabled = v&types.Bit5 != 0
	p.tileDataLow = v&types.Bit4 != 0
	p.bgTileMapHigh = v&types.Bit3 != 0
	p.spriteSize16 = v&types.Bit2 != 0
	p.spritesEnabled = v&types.Bit1 != 0
	p.bgEnabled = v&types.Bit0 != 0

	if wasEnabled && !p.lcdEnabled {
		p.dot = 0
		p.LY = 0
		p.Mode = HBlank
		p.windowLine = 0
	} else if !wasEnabled && p.lcdEnabled {
		p.dot = 0
		p.Mode = OAMScan
		p.checkLYC()
	}
}

func (p *PPU) stat() uint8 {
	v := uint8(0x80)
	if p.lycInterrupt {
		v |= types.Bit6
	}
	if p.oamInterrupt {
		v |= types.Bit5
	}
	if p.vblankInterrupt {
		v |= types.Bit4
	}
	if p.hblankInterrupt {
		v |= types.Bit3
	}
	if p.coincidence {
		v |= types.Bit2
	}
	v |= uint8(p.Mode) & 0x03
	return v
}

func (p *PPU) checkLYC() {
	p.coincidence = p.LY == p.LYC
	p.updateStatLine()
}

// updateStatLine re-evaluates the STAT interrupt line and requests an
// LCD interrupt on its rising edge, matching the real hardware's
// OR-of-conditions latch.
func (p *PPU) updateStatLine() {
	line := (p.lycInterrupt && p.coincidence) ||
		(p.hblankInterrupt && p.Mode == HBlank) ||
		(p.vblankInterrupt && p.Mode == VBlank) ||
		(p.oamInterrupt && p.Mode == OAMScan)

	if line && !p.statLine {
		p.irq.Request(interrupts.LCDFlag)
	}
	p.statLine = line
}

// HasFrame reports whether a full frame has been composed since the
// last call to ClearFrame.
func (p *PPU) HasFrame() bool {
	return p.frameReady
}

// ClearFrame acknowledges the current frame.
func (p *PPU) ClearFrame() {
	p.frameReady = false
}

// Tick advances the PPU by one T-cycle.
func (p *PPU) Tick() {
	p.DMA.Tick()

	if !p.lcdEnabled {
		return
	}

	p.dot++
	switch p.Mode {
	case OAMScan:
		if p.dot == dotsOAM {
			p.Mode = PixelTransfer
			p.updateStatLine()
		}
	case PixelTransfer:
		if p.dot == dotsTransfer {
			p.Mode = HBlank
			p.renderScanline()
			p.updateStatLine()
		}
	case HBlank:
		if p.dot == dotsPerLine {
			p.dot = 0
			p.LY++
			p.checkLYC()
			if p.LY == ScreenHeight {
				p.Mode = VBlank
				p.irq.Request(interrupts.VBlankFlag)
				p.frameReady = true
			} else {
				p.Mode = OAMScan
			}
			p.updateStatLine()
		}
	case VBlank:
		if p.dot == dotsPerLine {
			p.dot = 0
			p.LY++
			if p.LY > 153 {
				p.LY = 0
				p.windowLine = 0
				p.Mode = OAMScan
			}
			p.checkLYC()
			p.updateStatLine()
		}
	}
}

// tileAddress returns the VRAM-relative address (bank 0) of the first
// byte of the given tile ID, honouring the LCDC.4 addressing mode.
func (p *PPU) tileAddress(id uint8) uint16 {
	if p.tileDataLow {
		return uint16(id) * 16
	}
	return uint16(0x1000 + int32(int8(id))*16)
}

type bgAttributes struct {
	palette  uint8
	bank     uint8
	flipX    bool
	flipY    bool
	priority bool
}

func decodeBGAttributes(v uint8) bgAttributes {
	return bgAttributes{
		palette:  v & 0x07,
		bank:     (v >> 3) & 1,
		flipX:    v&0x20 != 0,
		flipY:    v&0x40 != 0,
		priority: v&0x80 != 0,
	}
}

// bgPaletteColours returns the 4 colours a background/window tile with
// the given attributes resolves against: a CGB BG palette row selected
// by attr.palette, or the single DMG BGP register.
func (p *PPU) bgPaletteColours(attr bgAttributes) paletteColours {
	if p.isGBC {
		return p.cgbBG.Colours(attr.palette)
	}
	return paletteColours(p.BGPalette.Colors)
}

// bgPixel returns the 2-bit colour index, the resolved RGBA colour, and
// the tile attributes for the background/window pixel at tile map
// (mapBase) position (tileX,tileY) with the given pixel-within-tile
// offsets. The underlying 8x8 tile image is served from the PPU's tile
// cache rather than re-decoded one pixel at a time.
func (p *PPU) bgPixel(mapBase uint16, tileX, tileY, px, py uint8) (uint8, [4]uint8, bgAttributes) {
	mapOffset := mapBase + uint16(tileY)*32 + uint16(tileX)
	tileID := p.vram[0].Read(mapOffset)

	var attr bgAttributes
	if p.isGBC {
		attr = decodeBGAttributes(p.vram[1].Read(mapOffset))
	}

	base := p.tileAddress(tileID)
	img := p.tile(attr.bank, base, p.bgPaletteColours(attr), attr.flipX, attr.flipY)
	return img.idx[py][px], img.rgba[py][px], attr
}

// renderScanline composes the background, window and sprite layers for
// the current LY into PreparedFrame. Background/window/sprite pixels are
// all resolved through the tile cache (tilecache.go), so the same (pattern,
// palette, attr) combination is decoded once regardless of how many
// scanlines or frames reuse it.
func (p *PPU) renderScanline() {
	var colourIndex [ScreenWidth]uint8
	var bgAttrs [ScreenWidth]bgAttributes
	var bgOpaque [ScreenWidth]bool

	backdrop := p.backdropColour()
	var pixel [ScreenWidth][4]uint8
	for x := range pixel {
		pixel[x] = backdrop
	}

	drawBG := p.bgEnabled && !p.Debug.BackgroundDisabled
	if drawBG {
		mapBase := uint16(0x1800)
		if p.bgTileMapHigh {
			mapBase = 0x1C00
		}
		y := p.LY + p.ScrollY
		tileY := y / 8
		py := y % 8
		for x := uint8(0); x < ScreenWidth; x++ {
			bx := x + p.ScrollX
			idx, rgba, attr := p.bgPixel(mapBase, bx/8, tileY, bx%8, py)
			colourIndex[x] = idx
			bgAttrs[x] = attr
			bgOpaque[x] = true
			pixel[x] = rgba
		}
	}

	windowVisible := p.windowEnabled && drawBG && !p.Debug.WindowDisabled &&
		p.LY >= p.WindowY && p.WindowX < ScreenWidth+7
	if windowVisible {
		mapBase := uint16(0x1800)
		if p.windowTileMapHigh {
			mapBase = 0x1C00
		}
		tileY := p.windowLine / 8
		py := p.windowLine % 8
		usedWindow := false
		for x := uint8(0); x < ScreenWidth; x++ {
			wx := int16(x) - (int16(p.WindowX) - 7)
			if wx < 0 {
				continue
			}
			usedWindow = true
			idx, rgba, attr := p.bgPixel(mapBase, uint8(wx)/8, tileY, uint8(wx)%8, py)
			colourIndex[x] = idx
			bgAttrs[x] = attr
			pixel[x] = rgba
		}
		if usedWindow {
			p.windowLine++
		}
	}

	if p.spritesEnabled && !p.Debug.SpritesDisabled {
		p.renderSprites(&colourIndex, &bgAttrs, &bgOpaque, &pixel)
	}

	p.PreparedFrame[p.LY] = pixel
}

// backdropColour is the RGBA colour shown where neither the background
// nor window layer drew a pixel (LCDC.0 clear on DMG).
func (p *PPU) backdropColour() [4]uint8 {
	c := p.BGPalette.Colors[0]
	return [4]uint8{c[0], c[1], c[2], 0xFF}
}

func (p *PPU) spritePaletteColours(s spriteAttributes) paletteColours {
	if p.isGBC {
		return p.cgbOBJ.Colours(s.cgbPalette())
	}
	return paletteColours(p.OBPalette[s.dmgPalette()].Colors)
}

// renderSprites composites up to 10 per-line sprites over pixel,
// respecting DMG/CGB priority rules against the background pixels
// already resolved into colourIndex/bgAttrs/bgOpaque.
func (p *PPU) renderSprites(colourIndex *[ScreenWidth]uint8, bgAttrs *[ScreenWidth]bgAttributes, bgOpaque *[ScreenWidth]bool, pixel *[ScreenWidth][4]uint8) {
	height := uint8(8)
	if p.spriteSize16 {
		height = 16
	}

	var onLine []int
	for i := 0; i < 40; i++ {
		s := p.oam.sprite(i)
		spriteY := int16(s.y) - 16
		if int16(p.LY) < spriteY || int16(p.LY) >= spriteY+int16(height) {
			continue
		}
		onLine = append(onLine, i)
		if len(onLine) == 10 {
			break
		}
	}

	// lower-indexed OAM entries win ties; iterate in reverse OAM order so
	// earlier (higher-priority) sprites are drawn last, overwriting later ones.
	for i := len(onLine) - 1; i >= 0; i-- {
		s := p.oam.sprite(onLine[i])
		spriteY := int16(s.y) - 16
		spriteX := int16(s.x) - 8

		row := uint8(int16(p.LY) - spriteY)
		if s.flipY() {
			row = height - 1 - row
		}
		tile := s.tile
		if height == 16 {
			tile &^= 1
			if row >= 8 {
				tile |= 1
				row -= 8
			}
		}

		bank := uint8(0)
		if p.isGBC {
			bank = s.vramBank()
		}
		base := uint16(tile) * 16
		// row's flip is already resolved by the selection above, so the
		// tile is fetched unflipped vertically and only X-flipped here.
		img := p.tile(bank, base, p.spritePaletteColours(s), s.flipX(), false)

		for col := uint8(0); col < 8; col++ {
			px := spriteX + int16(col)
			if px < 0 || px >= ScreenWidth {
				continue
			}
			colour := img.idx[row][col]
			if colour == 0 {
				continue // transparent
			}

			x := uint8(px)
			if s.priorityBehindBG() && bgOpaque[x] && colourIndex[x] != 0 {
				continue
			}
			if p.isGBC && bgAttrs[x].priority && bgOpaque[x] && colourIndex[x] != 0 && p.bgEnabled {
				continue
			}

			pixel[x] = img.rgba[row][col]
		}
	}
}

func byteToPalette(v uint8) palette.Palette {
	src := palette.Palettes[palette.Greyscale]
	var p palette.Palette
	for i := 0; i < 4; i++ {
		shift := uint(i) * 2
		shade := (v >> shift) & 0x03
		p.Colors[i] = src.Colors[shade]
	}
	return p
}

func paletteToByte(p palette.Palette) uint8 {
	src := palette.Palettes[palette.Greyscale]
	var v uint8
	for i := 0; i < 4; i++ {
		for shade, colour := range src.Colors {
			if colour == p.Colors[i] {
				v |= uint8(shade) << uint(i*2)
				break
			}
		}
	}
	return v
}

var _ types.Stater = (*PPU)(nil)

// Load restores the PPU's full state, including VRAM and OAM contents.
func (p *PPU) Load(s *types.State) {
	p.setLCDC(s.Read8())
	p.lycInterrupt = s.ReadBool()
	p.oamInterrupt = s.ReadBool()
	p.vblankInterrupt = s.ReadBool()
	p.hblankInterrupt = s.ReadBool()
	p.coincidence = s.ReadBool()
	p.Mode = Mode(s.Read8())
	p.LY = s.Read8()
	p.LYC = s.Read8()
	p.ScrollX = s.Read8()
	p.ScrollY = s.Read8()
	p.WindowX = s.Read8()
	p.WindowY = s.Read8()
	p.windowLine = s.Read8()
	p.dot = s.Read16()
	p.vramBank = s.Read8()

	p.BGPalette = byteToPalette(s.Read8())
	p.OBPalette[0] = byteToPalette(s.Read8())
	p.OBPalette[1] = byteToPalette(s.Read8())

	for bank := 0; bank < 2; bank++ {
		for i := uint16(0); i < 0x2000; i++ {
			p.vram[bank].Write(i, s.Read8())
		}
	}
	for i := uint16(0); i < 160; i++ {
		p.oam.Write(i, s.Read8())
	}
}

// Save persists the PPU's full state, including VRAM and OAM contents.
func (p *PPU) Save(s *types.State) {
	s.Write8(p.lcdc())
	s.WriteBool(p.lycInterrupt)
	s.WriteBool(p.oamInterrupt)
	s.WriteBool(p.vblankInterrupt)
	s.WriteBool(p.hblankInterrupt)
	s.WriteBool(p.coincidence)
	s.Write8(uint8(p.Mode))
	s.Write8(p.LY)
	s.Write8(p.LYC)
	s.Write8(p.ScrollX)
	s.Write8(p.ScrollY)
	s.Write8(p.WindowX)
	s.Write8(p.WindowY)
	s.Write8(p.windowLine)
	s.Write16(p.dot)
	s.Write8(p.vramBank)

	s.Write8(paletteToByte(p.BGPalette))
	s.Write8(paletteToByte(p.OBPalette[0]))
	s.Write8(paletteToByte(p.OBPalette[1]))

	for bank := 0; bank < 2; bank++ {
		for i := uint16(0); i < 0x2000; i++ {
			s.Write8(p.vram[bank].Read(i))
		}
	}
	for i := uint16(0); i < 160; i++ {
		s.Write8(p.oam.Read(i))
	}
}
