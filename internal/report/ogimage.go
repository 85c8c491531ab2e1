package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// OGWidth and OGHeight are the standard Open Graph image dimensions.
const (
	OGWidth  = 1200
	OGHeight = 630
)

const minutesPerDay = 24 * 60

var (
	fontTitle   font.Face
	fontRegular font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Bold: %w", err)
			return
		}
		fontTitle, err = opentype.NewFace(bold, &opentype.FaceOptions{
			Size:    56,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create title face: %w", err)
			return
		}

		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Regular: %w", err)
			return
		}
		fontRegular, err = opentype.NewFace(regular, &opentype.FaceOptions{
			Size:    36,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create regular face: %w", err)
			return
		}
	})
}

var (
	white     = color.RGBA{255, 255, 255, 255}
	lightGray = color.RGBA{200, 200, 210, 255}
	trackGray = color.RGBA{60, 66, 90, 255}
	sunYellow = color.RGBA{255, 196, 61, 255}
	dimYellow = color.RGBA{214, 150, 40, 255}
)

// OGImage renders a preview card comparing today's day length with the
// match, each as a bar scaled against a full 24 hours.
func OGImage(page Page) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, OGWidth, OGHeight))
	drawBackground(img)

	res := page.Result
	drawText(img, "Daylight in "+page.Place, 60, 110, white, fontTitle)

	drawText(img, fmt.Sprintf("Today, %s  %s", res.Today.Date.Format("Jan 2"), res.Today.DayLength), 60, 220, lightGray, fontRegular)
	drawBar(img, 60, 250, res.TodayMinutes, sunYellow)

	if res.HasMatch() {
		label := fmt.Sprintf("%s  %s  (%s)", res.BestMatch.Date.Format("Jan 2, 2006"), res.BestMatch.DayLength, diffLabel(*res.DiffMinutes))
		drawText(img, label, 60, 400, lightGray, fontRegular)
		drawBar(img, 60, 430, res.MatchMinutes, dimYellow)
	} else {
		drawText(img, "No similar day found", 60, 400, lightGray, fontRegular)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode OG image: %w", err)
	}
	return buf.Bytes(), nil
}

func diffLabel(diff int) string {
	if diff == 0 {
		return "same length"
	}
	if diff == 1 {
		return "1 min apart"
	}
	return fmt.Sprintf("%d min apart", diff)
}

// drawBackground fills a dusk-blue vertical gradient.
func drawBackground(img *image.RGBA) {
	for y := 0; y < OGHeight; y++ {
		progress := float64(y) / float64(OGHeight)
		c := color.RGBA{
			R: uint8(20 + progress*10),
			G: uint8(24 + progress*15),
			B: uint8(48 + progress*30),
			A: 255,
		}
		for x := 0; x < OGWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

const (
	barWidth  = OGWidth - 120
	barHeight = 60
)

// drawBar draws a track for a whole day with the daylight portion filled.
func drawBar(img *image.RGBA, x, y, minutes int, fill color.RGBA) {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > minutesPerDay {
		minutes = minutesPerDay
	}
	filled := barWidth * minutes / minutesPerDay
	for dy := 0; dy < barHeight; dy++ {
		for dx := 0; dx < barWidth; dx++ {
			c := trackGray
			if dx < filled {
				c = fill
			}
			img.SetRGBA(x+dx, y+dy, c)
		}
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
