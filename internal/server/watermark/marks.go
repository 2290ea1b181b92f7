package watermark

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/docdelivery/internal/cryptox"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

// Marks is the full set of text stamped into one copy.
type Marks struct {
	HeaderLeft  string
	HeaderRight string
	FooterLeft  string
	FooterRight string
	// Diagonal is the large rotated mark placed on every third page.
	Diagonal string
	Meta     Metadata
}

// BuildMarks derives stamp texts and document metadata for a purchaser.
func BuildMarks(doc models.Document, purchaser models.Purchaser, purchase models.Purchase, fingerprint, copyright string, now time.Time) Marks {
	masked := cryptox.MaskEmail(purchaser.Email)
	date := purchase.CompletedAt
	if date.IsZero() {
		date = now
	}

	return Marks{
		HeaderLeft:  fmt.Sprintf("Licensed to %s <%s>", purchaser.DisplayName, masked),
		HeaderRight: fmt.Sprintf("Order %s - %s", purchase.ReferenceNumber, date.UTC().Format("2006-01-02")),
		FooterLeft:  fmt.Sprintf("ID %s - FP %s", truncate(purchaser.ID, 8), fingerprint),
		FooterRight: copyright,
		Diagonal:    purchaser.DisplayName,
		Meta: Metadata{
			Title:   doc.Title,
			Author:  purchaser.DisplayName,
			Subject: fmt.Sprintf("Licensed copy for %s, order %s", purchaser.DisplayName, purchase.ReferenceNumber),
			Keywords: strings.Join([]string{
				"purchaser:" + purchaser.ID,
				"purchase:" + purchase.ID,
				"fingerprint:" + fingerprint,
				"email:" + cryptox.EmailHash(purchaser.Email),
			}, ", "),
			Creator: creator,
		},
	}
}

// CopyPath is the deterministic blob path of a purchaser's copy. Writing
// the same triple twice overwrites the same object.
func CopyPath(purchaserID, documentID, purchaseID string) string {
	return path.Join("watermarked", url.PathEscape(purchaserID), url.PathEscape(documentID), url.PathEscape(purchaseID)+".pdf")
}

// FileName turns a document title into a download file name.
func FileName(title, documentID string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteRune('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = documentID
	}
	return name + ".pdf"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// stampText keeps characters the standard Helvetica encoding can render.
func stampText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return ' '
		case r > 0xff:
			return '?'
		default:
			return r
		}
	}, s)
}
