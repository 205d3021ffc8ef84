package fetch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register gif favicons
	_ "image/jpeg" // register jpeg favicons
	_ "image/png"  // register png favicons

	_ "golang.org/x/image/bmp" // register bmp favicons
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp favicons
)

// MaxIconSide is the largest width or height DecodeIcon accepts.
const MaxIconSide = 512

var (
	// ErrEmptyIcon is returned when there is nothing to decode.
	ErrEmptyIcon = errors.New("empty icon data")
	// ErrIconTooLarge is returned for images wider or taller than MaxIconSide.
	ErrIconTooLarge = errors.New("icon too large")
)

var (
	icoMagic = []byte{0, 0, 1, 0}
	pngMagic = []byte("\x89PNG\r\n\x1a\n")
)

const (
	icoHeaderLen      = 6
	icoEntryLen       = 16
	bmpFileHeaderLen  = 14
	dibHeightOffset   = 8
	dibBitCountOffset = 14
	dibClrUsedOffset  = 32
)

// DecodeIcon decodes favicon bytes into an RGBA raster. ICO containers are
// unpacked to their largest entry; other formats go through image.Decode.
// Dimensions are read from the header first and anything over MaxIconSide
// is rejected without decoding pixels.
func DecodeIcon(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyIcon
	}

	var (
		img image.Image
		err error
	)
	if bytes.HasPrefix(data, icoMagic) {
		img, err = decodeICO(data)
	} else {
		img, err = decodeBounded(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding icon: %w", err)
	}
	return toRGBA(img), nil
}

// decodeBounded checks the declared size before decoding the pixels.
func decodeBounded(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width > MaxIconSide || cfg.Height > MaxIconSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrIconTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(dst, image.Point{}, img, b, xdraw.Src, nil)
	return dst
}

type icoEntry struct {
	width, height int
	bitCount      int
	size, offset  int
}

// decodeICO picks the largest image in an ICO directory and decodes it. PNG
// entries are decoded directly; BMP entries are given a file header and
// handed to the bmp decoder.
func decodeICO(data []byte) (image.Image, error) {
	if len(data) < icoHeaderLen {
		return nil, errors.New("ico: short header")
	}
	count := int(binary.LittleEndian.Uint16(data[4:6]))
	if count == 0 {
		return nil, errors.New("ico: no images")
	}
	if len(data) < icoHeaderLen+count*icoEntryLen {
		return nil, errors.New("ico: truncated directory")
	}

	var best *icoEntry
	for i := range count {
		raw := data[icoHeaderLen+i*icoEntryLen:]
		e := icoEntry{
			width:    int(raw[0]),
			height:   int(raw[1]),
			bitCount: int(binary.LittleEndian.Uint16(raw[6:8])),
			size:     int(binary.LittleEndian.Uint32(raw[8:12])),
			offset:   int(binary.LittleEndian.Uint32(raw[12:16])),
		}
		// A stored dimension of 0 means 256.
		if e.width == 0 {
			e.width = 256
		}
		if e.height == 0 {
			e.height = 256
		}
		if e.offset < 0 || e.size <= 0 || e.offset+e.size > len(data) {
			continue
		}
		if best == nil ||
			e.width*e.height > best.width*best.height ||
			(e.width*e.height == best.width*best.height && e.bitCount > best.bitCount) {
			best = &e
		}
	}
	if best == nil {
		return nil, errors.New("ico: no readable images")
	}

	// Directory sizes stop at 256, but the embedded image declares its own.
	payload := data[best.offset : best.offset+best.size]
	if bytes.HasPrefix(payload, pngMagic) {
		return decodeBounded(payload)
	}
	return decodeICOBitmap(payload)
}

// decodeICOBitmap wraps a headerless DIB from an ICO entry in a BMP file
// header. The DIB height counts both the color and the AND mask, so it is
// halved first.
func decodeICOBitmap(dib []byte) (image.Image, error) {
	if len(dib) < 40 {
		return nil, errors.New("ico: short bitmap header")
	}
	headerLen := int(binary.LittleEndian.Uint32(dib[0:4]))
	if headerLen < 40 || headerLen > len(dib) {
		return nil, fmt.Errorf("ico: bad bitmap header length %d", headerLen)
	}

	fixed := bytes.Clone(dib)
	height := int32(binary.LittleEndian.Uint32(fixed[dibHeightOffset:]))
	binary.LittleEndian.PutUint32(fixed[dibHeightOffset:], uint32(height/2))

	paletteLen := 0
	if bitCount := int(binary.LittleEndian.Uint16(fixed[dibBitCountOffset:])); bitCount <= 8 {
		colors := int(binary.LittleEndian.Uint32(fixed[dibClrUsedOffset:]))
		if colors == 0 {
			colors = 1 << bitCount
		}
		paletteLen = colors * 4
	}

	file := make([]byte, bmpFileHeaderLen, bmpFileHeaderLen+len(fixed))
	file[0], file[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(file[2:], uint32(bmpFileHeaderLen+len(fixed)))
	binary.LittleEndian.PutUint32(file[10:], uint32(bmpFileHeaderLen+headerLen+paletteLen))
	file = append(file, fixed...)

	return decodeBounded(file)
}
