package world

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	previewScale        = 8
	previewAmbientLight = 0.2
)

// SurfaceHeight returns the highest solid voxel in the column, or -1 when the
// column is empty.
func SurfaceHeight(chunk *Chunk, x, z int) int {
	for y := ChunkHeight - 1; y >= 0; y-- {
		if chunk.Solid(Index(x, y, z)) {
			return y
		}
	}
	return -1
}

// SavePreview renders a top-down PNG of the chunk's surface: colour comes from
// the surface material, brightness from surface height and the sun light just
// above it.
func SavePreview(chunk *Chunk, outputDir string) (string, error) {
	if chunk == nil {
		return "", fmt.Errorf("chunk is nil")
	}
	if err := ensurePreviewDir(outputDir); err != nil {
		return "", err
	}

	img := image.NewNRGBA(image.Rect(0, 0, ChunkSizeX*previewScale, ChunkSizeZ*previewScale))
	background, _ := parseHexColor(DefaultAppearances[MaterialAir].Color)
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	for z := 0; z < ChunkSizeZ; z++ {
		for x := 0; x < ChunkSizeX; x++ {
			y := SurfaceHeight(chunk, x, z)
			if y < 0 {
				continue
			}
			base := resolveMaterialColor(chunk.Material[Index(x, y, z)])
			sun := 0.0
			if y+1 < ChunkHeight {
				sun = float64(SunLight(chunk.Light[Index(x, y+1, z)])) / MaxLight
			}
			height := float64(y) / float64(ChunkHeight-1)
			factor := previewAmbientLight + 0.4*height + 0.4*sun
			rect := image.Rect(x*previewScale, z*previewScale, (x+1)*previewScale, (z+1)*previewScale)
			draw.Draw(img, rect, &image.Uniform{applyLighting(base, factor)}, image.Point{}, draw.Src)
		}
	}

	path := filepath.Join(outputDir, fmt.Sprintf("chunk_%d_%d.png", chunk.Key.X, chunk.Key.Z))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return path, nil
}

func resolveMaterialColor(m Material) color.NRGBA {
	if appearance, ok := DefaultAppearances[m]; ok {
		if col, ok := parseHexColor(appearance.Color); ok {
			return col
		}
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	var rgb [3]uint8
	for i := range rgb {
		v, err := strconv.ParseUint(trimmed[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, false
		}
		rgb[i] = uint8(v)
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = clamp(factor, 0, 1)
	r := uint8(math.Round(float64(base.R) * factor))
	g := uint8(math.Round(float64(base.G) * factor))
	b := uint8(math.Round(float64(base.B) * factor))
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func ensurePreviewDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is empty")
	}
	return os.MkdirAll(dir, 0o755)
}
