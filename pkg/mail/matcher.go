package mail

import (
	"path/filepath"
	"regexp"
	"strings"

	"hoadon/pkg/models"
)

// DefaultKeywords mark a message as carrying financial documents, in
// Vietnamese with and without diacritics plus the common English terms.
var DefaultKeywords = []string{
	"hóa đơn", "hoa don", "hoadon",
	"chứng từ", "chung tu",
	"thanh toán", "thanh toan",
	"bảng kê", "bang ke",
	"invoice", "receipt", "bill", "billing", "statement",
}

// documentExts are attachment types worth processing even when neither
// subject nor filename mentions an invoice. E-invoice providers send
// generic subjects with the document as the only payload.
var documentExts = map[string]bool{
	".pdf": true, ".xml": true, ".zip": true, ".rar": true,
	".xls": true, ".xlsx": true,
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".tif": true, ".tiff": true,
}

// decorationNames flag inline images that are mail dressing, not documents.
var decorationNames = []string{"logo", "icon", "banner", "invite", "signature", "footer"}

// Relevant reports whether a message is worth downloading.
func Relevant(m Message, keywords []string) bool {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if MatchesKeywords(m.Subject, keywords) {
		return true
	}
	for _, att := range m.Attachments {
		if Decoration(att.Filename) {
			continue
		}
		if MatchesKeywords(att.Filename, keywords) {
			return true
		}
		if documentExts[strings.ToLower(filepath.Ext(att.Filename))] {
			return true
		}
	}
	return false
}

// Decoration reports whether a filename looks like an inline logo or icon
// rather than a document scan.
func Decoration(filename string) bool {
	if !imageExts[strings.ToLower(filepath.Ext(filename))] {
		return false
	}
	lower := strings.ToLower(filename)
	for _, name := range decorationNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// MatchesKeywords folds both sides before comparing, so "Hóa đơn" matches
// "hoa don". Word boundary matches are preferred, plain containment is the
// fallback for keywords that are substrings of filenames.
func MatchesKeywords(text string, keywords []string) bool {
	folded := models.NormalizeName(text)
	if folded == "" {
		return false
	}
	for _, keyword := range keywords {
		k := models.NormalizeName(keyword)
		if k == "" {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(k) + `\b`
		if matched, err := regexp.MatchString(pattern, folded); err == nil && matched {
			return true
		}
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}
