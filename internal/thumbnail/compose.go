package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // generated backgrounds usually arrive as PNG

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"postcast/internal/textutil"
)

var (
	badgeFill    = color.NRGBA{A: 200}
	badgeText    = color.NRGBA{R: 255, G: 220, B: 0, A: 255}
	labelFill    = color.NRGBA{R: 255, G: 140, B: 0, A: 230}
	labelText    = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor = color.NRGBA{A: 255}
)

// composeCanvas scales the generated image onto the 1280x720 canvas,
// flattening any alpha onto white.
func composeCanvas(src image.Image) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, thumbWidth, thumbHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return canvas
}

// drawBadge puts the "EP NN" marker in the top-right corner: a translucent
// black rounded box with yellow outlined text.
func drawBadge(canvas *image.RGBA, face font.Face, episode int) {
	text := fmt.Sprintf("EP %02d", episode)
	width := font.MeasureString(face, text).Ceil()
	x := thumbWidth - width - 45
	y := 20
	fillRoundedRect(canvas, image.Rect(x-18, y-8, x+width+18, y+58), 12, badgeFill)
	drawTextWithOutline(canvas, face, text, x, y, badgeText, 3)
}

// drawLabel puts the topic in the top-left corner on an orange rounded box.
func drawLabel(canvas *image.RGBA, face font.Face, topic string) {
	label := textutil.Clip(topic, labelMaxRunes)
	width := font.MeasureString(face, label).Ceil()
	fillRoundedRect(canvas, image.Rect(15, 15, width+55, 68), 10, labelFill)
	drawTextWithOutline(canvas, face, label, 32, 22, labelText, 2)
}

// drawTextWithOutline draws text whose top-left corner sits at (x, y),
// stamping the outline color at every offset within the given width before
// the fill color lands on top.
func drawTextWithOutline(dst *image.RGBA, face font.Face, text string, x, y int, fill color.Color, outlineWidth int) {
	ascent := face.Metrics().Ascent.Ceil()
	drawer := font.Drawer{Dst: dst, Src: image.NewUniform(outlineColor), Face: face}
	for dx := -outlineWidth; dx <= outlineWidth; dx++ {
		for dy := -outlineWidth; dy <= outlineWidth; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawer.Dot = fixed.P(x+dx, y+dy+ascent)
			drawer.DrawString(text)
		}
	}
	drawer.Src = image.NewUniform(fill)
	drawer.Dot = fixed.P(x, y+ascent)
	drawer.DrawString(text)
}

func fillRoundedRect(dst *image.RGBA, r image.Rectangle, radius int, fill color.NRGBA) {
	mask := roundedRectMask(r.Dx(), r.Dy(), radius)
	draw.DrawMask(dst, r, image.NewUniform(fill), image.Point{}, mask, image.Point{}, draw.Over)
}

func roundedRectMask(width, height, radius int) *image.Alpha {
	if radius < 0 {
		radius = 0
	}
	if radius*2 > width {
		radius = width / 2
	}
	if radius*2 > height {
		radius = height / 2
	}
	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if insideRoundedRect(x, y, width, height, radius) {
				mask.SetAlpha(x, y, color.Alpha{A: 0xff})
			}
		}
	}
	return mask
}

func insideRoundedRect(x, y, width, height, radius int) bool {
	if x >= radius && x < width-radius {
		return true
	}
	if y >= radius && y < height-radius {
		return true
	}
	cx, cy := radius, radius
	if x >= width-radius {
		cx = width - radius - 1
	}
	if y >= height-radius {
		cy = height - radius - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}

// encodeJPEG encodes the canvas, walking the quality down in steps until the
// result fits the platform cap or the floor quality is reached. It returns
// the bytes and the quality that produced them.
func encodeJPEG(img image.Image) ([]byte, int, error) {
	var buf bytes.Buffer
	quality := jpegStartQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, 0, fmt.Errorf("encode thumbnail: %w", err)
		}
		if buf.Len() <= maxFileBytes || quality <= jpegFloorQuality {
			return buf.Bytes(), quality, nil
		}
		quality -= jpegQualityStep
	}
}
