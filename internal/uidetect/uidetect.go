// Package uidetect guesses which trading platform a screenshot came
// from using cheap color statistics. The result only sharpens the
// extraction prompt, so a wrong guess is harmless and Unknown is a
// perfectly good answer.
package uidetect

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

type Source string

const (
	SourceSBI         Source = "SBI"
	SourceRakuten     Source = "Rakuten"
	SourceMatsui      Source = "Matsui"
	SourceTradingView Source = "TradingView"
	SourceUnknown     Source = "Unknown"
)

const sampleGrid = 32

// Detect classifies raw PNG/JPEG bytes. Undecodable input maps to
// Unknown, never an error.
func Detect(data []byte) Source {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return SourceUnknown
	}
	return classify(img)
}

func classify(img image.Image) Source {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return SourceUnknown
	}

	var rSum, gSum, bSum float64
	var samples float64
	for gy := 0; gy < sampleGrid; gy++ {
		for gx := 0; gx < sampleGrid; gx++ {
			x := bounds.Min.X + gx*bounds.Dx()/sampleGrid
			y := bounds.Min.Y + gy*bounds.Dy()/sampleGrid
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += float64(r >> 8)
			gSum += float64(g >> 8)
			bSum += float64(b >> 8)
			samples++
		}
	}

	meanR := rSum / samples
	meanG := gSum / samples
	meanB := bSum / samples
	brightness := 0.2126*meanR + 0.7152*meanG + 0.0722*meanB

	total := rSum + gSum + bSum
	if total == 0 {
		total = 1
	}
	domR := rSum / total
	domG := gSum / total
	domB := bSum / total

	// Heuristic palette rules, roughest first match wins:
	// dark blue-green chart → TradingView; bright with red accents →
	// Rakuten; bright and blue-leaning → SBI; bright near-gray → Matsui.
	switch {
	case brightness < 60 && domB > 0.36 && domG > 0.30:
		return SourceTradingView
	case brightness > 140 && domR > 0.40:
		return SourceRakuten
	case brightness > 140 && domB > 0.38 && domB > domR:
		return SourceSBI
	case brightness > 180 && abs(domR-domG) < 0.03 && abs(domG-domB) < 0.03:
		return SourceMatsui
	default:
		return SourceUnknown
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
