// Package render writes PNG snapshots of positions so a session leaves a
// reviewable trail on disk.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"

	"go.uber.org/zap"

	"github.com/park285/voicechess/internal/obslog"
)

const (
	boardSquares = 8
	cell         = 64 // SVG units per square
	supersample  = 2  // rasterize larger, then scale down

	lightFill = "#f0d9b5"
	darkFill  = "#b58863"
	whiteFill = "#fafafa"
	blackFill = "#2b2b2b"
	edgeColor = "#333333"
)

// Renderer rasterizes positions into sizePx-square PNG files under dir.
// A nil *Renderer is valid and renders nothing.
type Renderer struct {
	dir    string
	sizePx int
}

func NewRenderer(dir string, sizePx int) (*Renderer, error) {
	if sizePx <= 0 {
		sizePx = 512
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Renderer{dir: dir, sizePx: sizePx}, nil
}

// Snapshot renders the position in fen and writes <gameID>-<ply>.png.
// Failures are logged and swallowed: snapshots never interrupt a game.
func (r *Renderer) Snapshot(fen, gameID string, ply int) string {
	if r == nil {
		return ""
	}
	img, err := r.Render(fen)
	if err != nil {
		obslog.L().Warn("board snapshot failed", zap.String("fen", fen), zap.Error(err))
		return ""
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s-%03d.png", gameID, ply))
	f, err := os.Create(path)
	if err != nil {
		obslog.L().Warn("board snapshot write failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		obslog.L().Warn("board snapshot encode failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

// Render rasterizes the position into an image without touching disk.
func (r *Renderer) Render(fen string) (image.Image, error) {
	svg, err := boardSVG(fen)
	if err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(svg)))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}

	big := r.sizePx * supersample
	icon.SetTarget(0, 0, float64(big), float64(big))
	raster := image.NewRGBA(image.Rect(0, 0, big, big))
	scanner := rasterx.NewScannerGV(big, big, raster, raster.Bounds())
	icon.Draw(rasterx.NewDasher(big, big, scanner), 1.0)

	out := image.NewRGBA(image.Rect(0, 0, r.sizePx, r.sizePx))
	xdraw.CatmullRom.Scale(out, out.Bounds(), raster, raster.Bounds(), xdraw.Src, nil)
	return out, nil
}

// boardSVG builds an SVG of the placement field of fen: colored squares plus
// a simple geometric glyph per piece.
func boardSVG(fen string) (string, error) {
	placement := strings.Fields(strings.TrimSpace(fen))
	if len(placement) == 0 {
		return "", fmt.Errorf("empty fen")
	}
	rows := strings.Split(placement[0], "/")
	if len(rows) != boardSquares {
		return "", fmt.Errorf("malformed fen placement %q", placement[0])
	}

	var sb strings.Builder
	size := boardSquares * cell
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, size, size, size, size)

	for rank := 0; rank < boardSquares; rank++ {
		for file := 0; file < boardSquares; file++ {
			fill := lightFill
			if (rank+file)%2 == 1 {
				fill = darkFill
			}
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
				file*cell, rank*cell, cell, cell, fill)
		}
	}

	for rank, row := range rows {
		file := 0
		for _, c := range row {
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			if file >= boardSquares {
				return "", fmt.Errorf("rank %d overflows in %q", rank, row)
			}
			glyph, err := pieceGlyph(c, file, rank)
			if err != nil {
				return "", err
			}
			sb.WriteString(glyph)
			file++
		}
		if file != boardSquares {
			return "", fmt.Errorf("rank %d short in %q", rank, row)
		}
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}

func pieceGlyph(c rune, file, rank int) (string, error) {
	fill := blackFill
	kind := c
	if c >= 'A' && c <= 'Z' {
		fill = whiteFill
		kind = c + ('a' - 'A')
	}

	// square-local coordinates
	cx := float64(file*cell) + cell/2
	cy := float64(rank*cell) + cell/2
	style := fmt.Sprintf(`fill="%s" stroke="%s" stroke-width="3"`, fill, edgeColor)

	switch kind {
	case 'p':
		return fmt.Sprintf(`<circle cx="%.0f" cy="%.0f" r="%d" %s/>`, cx, cy, cell/5, style), nil
	case 'r':
		s := float64(cell) * 0.3
		return fmt.Sprintf(`<rect x="%.0f" y="%.0f" width="%.0f" height="%.0f" %s/>`,
			cx-s, cy-s, 2*s, 2*s, style), nil
	case 'n':
		// leaning triangle
		return fmt.Sprintf(`<path d="M %.0f %.0f L %.0f %.0f L %.0f %.0f Z" %s/>`,
			cx-18, cy+20, cx+20, cy+20, cx+8, cy-20, style), nil
	case 'b':
		// mitre: triangle over a base circle
		return fmt.Sprintf(`<path d="M %.0f %.0f L %.0f %.0f L %.0f %.0f Z" %s/><circle cx="%.0f" cy="%.0f" r="6" %s/>`,
			cx-16, cy+20, cx+16, cy+20, cx, cy-20, style, cx, cy-20, style), nil
	case 'q':
		// diamond
		return fmt.Sprintf(`<path d="M %.0f %.0f L %.0f %.0f L %.0f %.0f L %.0f %.0f Z" %s/>`,
			cx, cy-24, cx+20, cy, cx, cy+24, cx-20, cy, style), nil
	case 'k':
		// diamond with a cross above
		return fmt.Sprintf(`<path d="M %.0f %.0f L %.0f %.0f L %.0f %.0f L %.0f %.0f Z" %s/><rect x="%.0f" y="%.0f" width="4" height="16" %s/><rect x="%.0f" y="%.0f" width="16" height="4" %s/>`,
			cx, cy-14, cx+18, cy+6, cx, cy+26, cx-18, cy+6, style,
			cx-2, cy-30, style, cx-8, cy-24, style), nil
	}
	return "", fmt.Errorf("unknown piece %q", c)
}
