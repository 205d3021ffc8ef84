package tabs

import (
	"fmt"
	"image"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/tabfetch/internal/fetch"
	"github.com/zjrosen/tabfetch/internal/log"
)

const halfBlock = "▀"

// renderIcon draws a favicon as one terminal cell: the upper half block
// takes the average color of the image's top half, the background the
// bottom half. Undecodable or fully transparent icons render as a blank.
func renderIcon(data []byte) string {
	if len(data) == 0 {
		return " "
	}
	img, err := fetch.DecodeIcon(data)
	if err != nil {
		log.Debug(log.CatUI, "Favicon not drawable", "bytes", len(data), "error", err)
		return " "
	}

	top, bottom := iconColors(img)
	if top == "" && bottom == "" {
		return " "
	}

	style := lipgloss.NewStyle()
	if top != "" {
		style = style.Foreground(lipgloss.Color(top))
	}
	if bottom != "" {
		style = style.Background(lipgloss.Color(bottom))
	}
	return style.Render(halfBlock)
}

// iconColors returns the hex colors of the top and bottom halves. An empty
// string means that half is fully transparent.
func iconColors(img *image.RGBA) (top, bottom string) {
	b := img.Bounds()
	mid := b.Min.Y + b.Dy()/2
	if b.Dy() == 1 {
		c := averageColor(img, b)
		return c, c
	}
	return averageColor(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, mid)),
		averageColor(img, image.Rect(b.Min.X, mid, b.Max.X, b.Max.Y))
}

// averageColor returns the alpha-weighted mean color of r as #rrggbb.
func averageColor(img *image.RGBA, r image.Rectangle) string {
	var sumR, sumG, sumB, sumA uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			// RGBA is alpha-premultiplied, so the color sums are already
			// weighted.
			sumR += uint64(c.R)
			sumG += uint64(c.G)
			sumB += uint64(c.B)
			sumA += uint64(c.A)
		}
	}
	if sumA == 0 {
		return ""
	}
	scale := func(v uint64) uint64 { return min(v*255/sumA, 255) }
	return fmt.Sprintf("#%02x%02x%02x", scale(sumR), scale(sumG), scale(sumB))
}
