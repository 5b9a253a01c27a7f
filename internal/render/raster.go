package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/vector"

	"draw-relay/internal/models"
)

// Canvas dimensions of the export frame. Strokes are rasterized in the
// coordinate space the drawing clients use.
const (
	CanvasWidth  = 800
	CanvasHeight = 600
)

// Stroke half-width range mapped from pressure.
const (
	minHalfWidth = 1.0
	maxHalfWidth = 8.0

	// Maximum half-width change between adjacent samples. Smoothing the
	// width this way avoids visual popping at pressure jumps.
	maxWidthStep = 1.5

	dotSegments = 16
)

// Point is a vertex of a stroke outline polygon in canvas coordinates.
type Point struct {
	X, Y float64
}

// Render rasterizes a submission's strokes onto a white canvas. Strokes
// paint in array order, so later strokes occlude earlier ones at overlaps,
// the same layering real ink has.
func Render(strokes []models.Stroke) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for _, stroke := range strokes {
		polygon := Outline(stroke)
		if len(polygon) == 0 {
			continue
		}
		fillPolygon(img, polygon)
	}
	return img
}

// EncodePNG serializes a rendered canvas for export.
func EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Outline converts a stroke into a single closed polygon: the left-side
// offsets walked forward concatenated with the right-side offsets walked
// backward. An empty stroke yields no polygon. A single sample yields a
// small disc so isolated taps still render as a dot.
func Outline(stroke models.Stroke) []Point {
	switch len(stroke) {
	case 0:
		return nil
	case 1:
		return dot(stroke[0])
	}

	widths := halfWidths(stroke)

	left := make([]Point, 0, len(stroke))
	right := make([]Point, 0, len(stroke))
	var prevNormal Point

	for i, sample := range stroke {
		n, ok := normalAt(stroke, i)
		if !ok {
			// Degenerate segment (repeated point): carry the previous
			// normal so the outline stays continuous.
			n = prevNormal
			if n == (Point{}) {
				n = Point{0, 1}
			}
		}
		prevNormal = n

		left = append(left, Point{sample.X + n.X*widths[i], sample.Y + n.Y*widths[i]})
		right = append(right, Point{sample.X - n.X*widths[i], sample.Y - n.Y*widths[i]})
	}

	polygon := left
	for i := len(right) - 1; i >= 0; i-- {
		polygon = append(polygon, right[i])
	}
	return polygon
}

// halfWidths maps each sample's pressure to a half-width, then clamps the
// step between neighbors in both directions.
func halfWidths(stroke models.Stroke) []float64 {
	widths := make([]float64, len(stroke))
	for i, sample := range stroke {
		widths[i] = minHalfWidth + sample.Pressure*(maxHalfWidth-minHalfWidth)
	}
	for i := 1; i < len(widths); i++ {
		if widths[i] > widths[i-1]+maxWidthStep {
			widths[i] = widths[i-1] + maxWidthStep
		}
	}
	for i := len(widths) - 2; i >= 0; i-- {
		if widths[i] > widths[i+1]+maxWidthStep {
			widths[i] = widths[i+1] + maxWidthStep
		}
	}
	return widths
}

// normalAt returns the unit normal of the path at sample i, using the
// neighboring samples for direction. Reports false when the local
// direction is degenerate.
func normalAt(stroke models.Stroke, i int) (Point, bool) {
	prev := i - 1
	if prev < 0 {
		prev = 0
	}
	next := i + 1
	if next >= len(stroke) {
		next = len(stroke) - 1
	}

	dx := stroke[next].X - stroke[prev].X
	dy := stroke[next].Y - stroke[prev].Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return Point{}, false
	}
	return Point{-dy / length, dx / length}, true
}

func dot(sample models.Sample) []Point {
	radius := minHalfWidth + sample.Pressure*(maxHalfWidth-minHalfWidth)
	polygon := make([]Point, 0, dotSegments)
	for i := 0; i < dotSegments; i++ {
		angle := 2 * math.Pi * float64(i) / dotSegments
		polygon = append(polygon, Point{
			sample.X + radius*math.Cos(angle),
			sample.Y + radius*math.Sin(angle),
		})
	}
	return polygon
}

func fillPolygon(img *image.RGBA, polygon []Point) {
	r := vector.NewRasterizer(CanvasWidth, CanvasHeight)
	r.DrawOp = draw.Over
	r.MoveTo(float32(polygon[0].X), float32(polygon[0].Y))
	for _, p := range polygon[1:] {
		r.LineTo(float32(p.X), float32(p.Y))
	}
	r.ClosePath()
	r.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{})
}
