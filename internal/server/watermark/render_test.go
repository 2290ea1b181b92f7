package watermark

import (
	"bytes"
	"testing"

	"github.com/dmitrijs2005/docdelivery/internal/pdftest"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xobjectsPerPage(t *testing.T, pdf []byte) []int {
	t.Helper()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), newConfiguration())
	require.NoError(t, err)

	counts := make([]int, 0, ctx.PageCount)
	for p := 1; p <= ctx.PageCount; p++ {
		page, _, _, err := ctx.PageDict(p, true)
		require.NoError(t, err)
		res, err := ctx.DereferenceDict(page["Resources"])
		require.NoError(t, err)
		xo, err := ctx.DereferenceDict(res["XObject"])
		require.NoError(t, err)
		counts = append(counts, len(xo))
	}
	return counts
}

func TestRender_CornerMarksOnEveryPageDiagonalEveryThird(t *testing.T) {
	marks := BuildMarks(testDoc, testPurchaser, testPurchase, "0123456789abcdef", DefaultCopyright, testNow)

	out, err := Render(pdftest.Minimal(5), marks)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 4, 4, 5, 4}, xobjectsPerPage(t, out))
}

func TestRender_EmptyLinesAreSkipped(t *testing.T) {
	marks := BuildMarks(testDoc, testPurchaser, testPurchase, "0123456789abcdef", DefaultCopyright, testNow)
	marks.FooterRight = ""
	marks.Diagonal = ""

	out, err := Render(pdftest.Minimal(2), marks)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3}, xobjectsPerPage(t, out))
}
