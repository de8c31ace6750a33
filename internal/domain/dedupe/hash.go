package dedupe

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	hashTitleLimit = 64
	hashRowLimit   = 40
	unitSep        = "\x1f"
)

// HashInput is the normalized content a table is identified by. The table
// index is not part of the identity.
type HashInput struct {
	Page           *int
	Title          *string
	Headers        []string
	RawHeaderParts [][]string
	Rows           [][]string
}

// ContentHash returns the hex md5 of page, title prefix, headers, header
// parts and the first rows.
func ContentHash(in HashInput) string {
	var b strings.Builder
	page := -1
	if in.Page != nil {
		page = *in.Page
	}
	title := ""
	if in.Title != nil {
		title = *in.Title
		if r := []rune(title); len(r) > hashTitleLimit {
			title = string(r[:hashTitleLimit])
		}
	}
	b.WriteString("pg:" + strconv.Itoa(page) + "|title:" + title + "|")
	b.WriteString(strings.Join(in.Headers, unitSep))
	b.WriteString("|")
	for i, p := range in.RawHeaderParts {
		if i > 0 {
			b.WriteString(unitSep)
		}
		b.WriteString(strings.Join(p, " "))
	}
	b.WriteString("|")
	for i, r := range in.Rows {
		if i == hashRowLimit {
			break
		}
		b.WriteString(strings.Join(r, unitSep))
		b.WriteString("\n")
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
