package watermark

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const creator = "docdelivery watermark engine"

// Metadata mirrors the document information dictionary entries the engine writes.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
}

// Keyword returns the value of a "name:value" keyword tag.
func (m Metadata) Keyword(name string) (string, bool) {
	for _, kw := range strings.Split(m.Keywords, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kw), ":")
		if ok && k == name {
			return v, true
		}
	}
	return "", false
}

func (m Metadata) entries() map[string]string {
	return map[string]string{
		"Title":    m.Title,
		"Author":   m.Author,
		"Subject":  m.Subject,
		"Keywords": m.Keywords,
		"Creator":  m.Creator,
	}
}

func writeInfo(ctx *model.Context, m Metadata) error {
	var d types.Dict
	if ctx.Info == nil {
		d = types.NewDict()
		ir, err := ctx.IndRefForNewObject(d)
		if err != nil {
			return err
		}
		ctx.Info = ir
	} else {
		var err error
		d, err = ctx.DereferenceDict(*ctx.Info)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("info dict missing")
		}
	}

	for k, v := range m.entries() {
		if v == "" {
			continue
		}
		s, err := types.EscapedUTF16String(v)
		if err != nil {
			return fmt.Errorf("info %s: %w", k, err)
		}
		d.Update(k, types.StringLiteral(*s))
	}
	return nil
}

// ReadMetadata parses pdf and returns its information dictionary.
func ReadMetadata(pdf []byte) (Metadata, error) {
	conf := newConfiguration()
	ctx, err := api.ReadContext(bytes.NewReader(pdf), conf)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", common.ErrCorruptSource, err)
	}
	if ctx.Info == nil {
		return Metadata{}, nil
	}
	d, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", common.ErrCorruptSource, err)
	}

	var m Metadata
	for key, dst := range map[string]*string{
		"Title":    &m.Title,
		"Author":   &m.Author,
		"Subject":  &m.Subject,
		"Keywords": &m.Keywords,
		"Creator":  &m.Creator,
	} {
		o, ok := d[key]
		if !ok {
			continue
		}
		o, err = ctx.Dereference(o)
		if err != nil {
			return Metadata{}, err
		}
		s, err := decodeText(o)
		if err != nil {
			return Metadata{}, fmt.Errorf("info %s: %w", key, err)
		}
		*dst = s
	}
	return m, nil
}

func decodeText(o types.Object) (string, error) {
	switch v := o.(type) {
	case types.StringLiteral:
		return types.StringLiteralToString(v)
	case types.HexLiteral:
		return types.HexLiteralToString(v)
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected type %T", o)
	}
}
