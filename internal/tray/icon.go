package tray

import (
	"encoding/binary"
	"sync"
)

const iconSize = 16

var (
	iconOnce  sync.Once
	iconIdle  []byte
	iconArmed []byte
)

// icon returns a 16x16 ICO: a grey dot when idle, a red one while clicking
func icon(armed bool) []byte {
	iconOnce.Do(func() {
		iconIdle = makeIcon(0x90, 0x90, 0x90)
		iconArmed = makeIcon(0xe5, 0x3e, 0x3e)
	})
	if armed {
		return iconArmed
	}
	return iconIdle
}

// makeIcon draws a filled circle into a single-image 32-bit ICO
func makeIcon(r, g, b byte) []byte {
	const (
		headerLen = 6 + 16
		dibLen    = 40
		pixelLen  = iconSize * iconSize * 4
		maskLen   = iconSize * 4 // one bit per pixel, rows padded to 32 bits
	)

	buf := make([]byte, headerLen+dibLen+pixelLen+maskLen)
	le := binary.LittleEndian

	// ICONDIR
	le.PutUint16(buf[2:], 1) // type: icon
	le.PutUint16(buf[4:], 1) // count

	// ICONDIRENTRY
	buf[6] = iconSize
	buf[7] = iconSize
	le.PutUint16(buf[10:], 1)  // planes
	le.PutUint16(buf[12:], 32) // bpp
	le.PutUint32(buf[14:], dibLen+pixelLen+maskLen)
	le.PutUint32(buf[18:], headerLen)

	// BITMAPINFOHEADER, height doubled for the AND mask
	dib := buf[headerLen:]
	le.PutUint32(dib[0:], dibLen)
	le.PutUint32(dib[4:], iconSize)
	le.PutUint32(dib[8:], iconSize*2)
	le.PutUint16(dib[12:], 1)
	le.PutUint16(dib[14:], 32)
	le.PutUint32(dib[20:], pixelLen+maskLen)

	// BGRA rows, bottom-up. The mask stays zero; alpha does the work.
	pixels := buf[headerLen+dibLen:]
	const c = (iconSize - 1) / 2.0
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy > 6.5*6.5 {
				continue
			}
			i := ((iconSize-1-y)*iconSize + x) * 4
			pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = b, g, r, 0xff
		}
	}
	return buf
}
