package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// SVGOptions controls tree rendering.
type SVGOptions struct {
	Title string
	// VisibleOnly draws only rows whose ancestors are all expanded.
	VisibleOnly bool
	// HideSecondary omits the secondary checkbox column.
	HideSecondary bool
	// PrimaryLabel and SecondaryLabel title the checkbox columns.
	PrimaryLabel   string
	SecondaryLabel string
}

const (
	svgWidth      = 720
	svgHeader     = 72
	svgRowHeight  = 24
	svgIndent     = 20
	svgBoxSize    = 14
	svgLabelChars = 60
	svgMargin     = 24
)

var (
	colorStroke    = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop  = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG  = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorChecked   = color.RGBA{0x3b, 0x82, 0xf6, 0xff}
	colorPartial   = color.RGBA{0x93, 0xc5, 0xfd, 0xff}
	colorUnchecked = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorMatch     = color.RGBA{0xfe, 0xf0, 0x8a, 0xff}
	colorGuide     = color.RGBA{0xd1, 0xd5, 0xdb, 0xff}
)

// SaveSVG renders snap to the file at path.
func SaveSVG(path string, snap *Snapshot, opts SVGOptions) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSVG(file, snap, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteSVG renders snap as an indented checkbox list with one tri-state box
// per layer.
func WriteSVG(w io.Writer, snap *Snapshot, opts SVGOptions) error {
	rows := snap.Nodes
	if opts.VisibleOnly {
		rows = visibleRows(snap.Nodes)
	}
	if opts.PrimaryLabel == "" {
		opts.PrimaryLabel = "Primary"
	}
	if opts.SecondaryLabel == "" {
		opts.SecondaryLabel = "Secondary"
	}
	if opts.Title == "" {
		opts.Title = "checktree"
	}

	height := svgHeader + svgMargin + len(rows)*svgRowHeight + svgMargin
	canvas := svg.New(w)
	canvas.Start(svgWidth, height)
	canvas.Rect(0, 0, svgWidth, height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, svgWidth-32, svgHeader-24, 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	drawHeaderSVG(canvas, snap, opts)

	labelX := svgMargin + 2*(svgBoxSize+8)
	if opts.HideSecondary {
		labelX = svgMargin + svgBoxSize + 8
	}
	for i, row := range rows {
		y := svgHeader + svgMargin + i*svgRowHeight
		x := svgMargin
		drawBoxSVG(canvas, x, y, row.Primary)
		if !opts.HideSecondary {
			drawBoxSVG(canvas, x+svgBoxSize+8, y, row.Secondary)
		}

		lx := labelX + row.Depth*svgIndent
		for d := 1; d <= row.Depth; d++ {
			gx := labelX + d*svgIndent - svgIndent/2
			canvas.Line(gx, y-6, gx, y+svgRowHeight-6, fmt.Sprintf("stroke:%s;stroke-width:1", css(colorGuide)))
		}
		marker := "  "
		if !row.Leaf {
			marker = "▸ "
			if row.Expanded {
				marker = "▾ "
			}
		}
		label := marker + truncate(row.Label, svgLabelChars-row.Depth)
		if row.Matching {
			canvas.Rect(lx-2, y-2, 8*len([]rune(label))+4, svgBoxSize+4, fmt.Sprintf("fill:%s", css(colorMatch)))
		}
		canvas.Text(lx, y+svgBoxSize-2, label, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorText)))
	}

	canvas.End()
	return nil
}

func drawHeaderSVG(canvas *svg.SVG, snap *Snapshot, opts SVGOptions) {
	canvas.Text(32, 40, opts.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))

	checked, _, partial := snap.Counts(model.LayerPrimary)
	summary := fmt.Sprintf("%s: %d checked, %d partial", opts.PrimaryLabel, checked, partial)
	if !opts.HideSecondary {
		sc, _, sp := snap.Counts(model.LayerSecondary)
		summary += fmt.Sprintf("   %s: %d checked, %d partial", opts.SecondaryLabel, sc, sp)
	}
	if snap.Query != "" {
		summary += fmt.Sprintf("   query: %q", snap.Query)
	}
	canvas.Text(32, 58, summary, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
}

func drawBoxSVG(canvas *svg.SVG, x, y int, st model.Status) {
	fill := colorUnchecked
	switch st {
	case model.StatusChecked:
		fill = colorChecked
	case model.StatusIndeterminate:
		fill = colorPartial
	}
	canvas.Roundrect(x, y, svgBoxSize, svgBoxSize, 3, 3,
		fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(fill), css(colorStroke)))

	switch st {
	case model.StatusChecked:
		canvas.Polyline(
			[]int{x + 3, x + 6, x + 11},
			[]int{y + 7, y + 10, y + 4},
			"fill:none;stroke:#ffffff;stroke-width:2",
		)
	case model.StatusIndeterminate:
		canvas.Line(x+3, y+svgBoxSize/2, x+svgBoxSize-3, y+svgBoxSize/2,
			fmt.Sprintf("stroke:%s;stroke-width:2", css(colorStroke)))
	}
}

// visibleRows keeps rows whose every ancestor is expanded. Rows are in
// pre-order, so a collapsed node hides everything until depth returns to
// its own level.
func visibleRows(rows []NodeRow) []NodeRow {
	out := make([]NodeRow, 0, len(rows))
	hideBelow := -1
	for _, row := range rows {
		if hideBelow >= 0 {
			if row.Depth > hideBelow {
				continue
			}
			hideBelow = -1
		}
		out = append(out, row)
		if !row.Leaf && !row.Expanded {
			hideBelow = row.Depth
		}
	}
	return out
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
