package watermark

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// DiagonalEvery is the page interval of the large rotated mark: pages
// 1, 1+DiagonalEvery, 1+2*DiagonalEvery and so on.
const DiagonalEvery = 3

const (
	cornerStyle   = "fontname:Helvetica, points:7, scalefactor:1 abs, opacity:0.35, rotation:0, fillcolor:#555555"
	diagonalStyle = "fontname:Helvetica, points:48, position:c, scalefactor:0.8 rel, opacity:0.06, rotation:45, fillcolor:#808080"
)

// anchors maps each corner to its pdfcpu position and offset.
var anchors = []struct {
	position string
	offset   string
	text     func(Marks) string
}{
	{"tl", "20 -14", func(m Marks) string { return m.HeaderLeft }},
	{"tr", "-20 -14", func(m Marks) string { return m.HeaderRight }},
	{"bl", "20 14", func(m Marks) string { return m.FooterLeft }},
	{"br", "-20 14", func(m Marks) string { return m.FooterRight }},
}

var configOnce sync.Once

func newConfiguration() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Render stamps marks onto every page of src and writes the metadata. It
// returns common.ErrCorruptSource when src cannot be parsed.
func Render(src []byte, m Marks) ([]byte, error) {
	conf := newConfiguration()
	conf.Cmd = model.ADDWATERMARKS

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(src), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCorruptSource, err)
	}
	if ctx.PageCount < 1 {
		return nil, fmt.Errorf("%w: document has no pages", common.ErrCorruptSource)
	}

	all := pageSet(ctx.PageCount, 1)
	for _, a := range anchors {
		text := a.text(m)
		if text == "" {
			continue
		}
		desc := fmt.Sprintf("%s, position:%s, offset:%s", cornerStyle, a.position, a.offset)
		if err := stamp(ctx, all, text, desc); err != nil {
			return nil, err
		}
	}

	if m.Diagonal != "" {
		if err := stamp(ctx, pageSet(ctx.PageCount, DiagonalEvery), m.Diagonal, diagonalStyle); err != nil {
			return nil, err
		}
	}

	if err := writeInfo(ctx, m.Meta); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return out.Bytes(), nil
}

func stamp(ctx *model.Context, pages types.IntSet, text, desc string) error {
	wm, err := api.TextWatermark(stampText(text), desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("stamp config: %w", err)
	}
	if err := pdfcpu.AddWatermarks(ctx, pages, wm); err != nil {
		return fmt.Errorf("stamp pages: %w", err)
	}
	return nil
}

// pageSet selects pages 1, 1+step, 1+2*step, ... up to n.
func pageSet(n, step int) types.IntSet {
	set := types.IntSet{}
	for p := 1; p <= n; p += step {
		set[p] = true
	}
	return set
}

// PageCount returns the number of pages in pdf.
func PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrCorruptSource, err)
	}
	return n, nil
}
