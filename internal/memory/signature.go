package memory

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/okian/tabletriage/internal/domain/features"
	"github.com/okian/tabletriage/internal/domain/model"
)

const (
	signatureRows  = 12
	minhashTokens  = 32
	bigramLimit    = 16
	idSliceLimit   = 8
	strongColumn   = 0.7
	pageBandFront  = "front"
	pageBandMid    = "mid"
	pageBandBack   = "back"
	frontBandLimit = 2
	midBandLimit   = 6
)

var (
	headerTokenRe = regexp.MustCompile(`[a-zA-Z]{2,}`)
	sketchNumRe   = regexp.MustCompile("^[0-9,.\\-()%₹`]+$")

	contactCueTerms = []string{"email", "website", "tel", "phone", "contact", "brlm", "registrar", "anchor investor"}
	periodCueTerms  = []string{"fy", "fiscal", "year", "as on", "ended", "mar", "jun", "sep", "dec", "20", "19"}
)

// Signature is a read-only feature snapshot of a table at decision time.
type Signature struct {
	TableType       model.TableType `json:"table_type"`
	PageNumber      *int            `json:"page_number"`
	TabularityProxy float64         `json:"tabularity_proxy"`
	EmailCount      int             `json:"email_count"`
	URLCount        int             `json:"url_count"`
	PhoneCount      int             `json:"phone_count"`
	KVLabelCount    int             `json:"kv_label_count"`
	LexHits         int             `json:"lex_hits"`
	NonEmptyRatio   float64         `json:"non_empty_ratio"`
	HasPeriodTokens bool            `json:"has_period_tokens"`
	ColCount        int             `json:"col_count"`
	RowCount        int             `json:"row_count"`
	PageBand        string          `json:"page_band"`
	AnchorCount     int             `json:"anchor_count"`

	NumFrac         []float64 `json:"num_frac_per_col"`
	AlphaFrac       []float64 `json:"alpha_frac_per_col"`
	ContactCues     int       `json:"contact_cues"`
	PeriodCues      int       `json:"period_cues"`
	RowLabelDensity float64   `json:"row_label_density"`
	ProtoGrid       float64   `json:"proto_grid_score"`
	HeaderBigrams   []string  `json:"header_ngrams"`
	MinHash         []uint32  `json:"minhash"`
}

// ComputeSignature derives the signature of t.
func ComputeSignature(t model.Table) Signature {
	text := strings.ToLower(features.Flatten(t.Data, signatureRows) + " " + strings.Join(t.Headers, " "))
	sig := Signature{
		TableType:       t.Type,
		PageNumber:      t.PageNumber,
		TabularityProxy: round3(features.TabularityScore(t.Data)),
		EmailCount:      features.EmailCount(text),
		URLCount:        features.URLCount(text),
		PhoneCount:      features.PhoneCount(text),
		KVLabelCount:    len(features.KVRe.FindAllStringIndex(text, -1)),
		LexHits:         features.CountTerms(text, features.LexiconTerms),
		NonEmptyRatio:   features.Density(t.Data),
		HasPeriodTokens: features.HasPeriodTokens(text),
		RowCount:        len(t.Data),
		PageBand:        pageBand(t.PageNumber),
	}
	for _, n := range []int{sig.EmailCount, sig.URLCount, sig.PhoneCount} {
		if n > 0 {
			sig.AnchorCount++
		}
	}

	cols := 0
	for _, r := range t.Data {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if len(t.Data) == 0 {
		cols = len(t.Headers)
	}
	sig.ColCount = cols
	sketch(&sig, t, cols)
	return sig
}

func sketch(sig *Signature, t model.Table, cols int) {
	strong := 0
	sig.NumFrac = make([]float64, cols)
	sig.AlphaFrac = make([]float64, cols)
	for j := 0; j < cols; j++ {
		total, nums, alphas := 0, 0, 0
		for _, r := range t.Data {
			if j >= len(r) || strings.TrimSpace(r[j]) == "" {
				continue
			}
			c := strings.TrimSpace(r[j])
			total++
			if sketchNumRe.MatchString(c) {
				nums++
			}
			if strings.IndexFunc(c, unicode.IsLetter) >= 0 {
				alphas++
			}
		}
		if total == 0 {
			continue
		}
		sig.NumFrac[j] = float64(nums) / float64(total)
		sig.AlphaFrac[j] = float64(alphas) / float64(total)
		if sig.NumFrac[j] > strongColumn {
			strong++
		}
		if sig.AlphaFrac[j] > strongColumn {
			strong++
		}
	}
	if cols > 0 {
		sig.ProtoGrid = float64(strong) / float64(cols)
	}

	hText := strings.ToLower(strings.Join(t.Headers, " "))
	for _, term := range contactCueTerms {
		sig.ContactCues += strings.Count(hText, term)
	}
	for _, term := range periodCueTerms {
		sig.PeriodCues += strings.Count(hText, term)
	}

	labels := 0
	for _, r := range t.Data {
		if len(r) == 0 {
			continue
		}
		if v := strings.TrimSpace(r[0]); v != "" && !sketchNumRe.MatchString(v) {
			labels++
		}
	}
	if len(t.Data) > 0 {
		sig.RowLabelDensity = float64(labels) / float64(len(t.Data))
	}

	tokens := headerTokenRe.FindAllString(hText, -1)
	for i := 0; i+1 < len(tokens) && len(sig.HeaderBigrams) < bigramLimit; i++ {
		sig.HeaderBigrams = append(sig.HeaderBigrams, tokens[i]+" "+tokens[i+1])
	}
	if len(tokens) > minhashTokens {
		tokens = tokens[:minhashTokens]
	}
	for _, tok := range tokens {
		sum := md5.Sum([]byte(tok))
		v, _ := strconv.ParseUint(hex.EncodeToString(sum[:4]), 16, 32)
		sig.MinHash = append(sig.MinHash, uint32(v))
	}
}

// ID is the hex md5 of a canonical projection of the structural sketch.
func (s Signature) ID() string {
	proj := struct {
		Page    int       `json:"p"`
		Cols    int       `json:"c"`
		Rows    int       `json:"r"`
		NF      []float64 `json:"nf"`
		AF      []float64 `json:"af"`
		H       []string  `json:"h"`
		CC      int       `json:"cc"`
		PC      int       `json:"pc"`
		RL      float64   `json:"rl"`
		PG      float64   `json:"pg"`
		MH      []uint32  `json:"mh"`
		Type    string    `json:"t"`
		Band    string    `json:"b"`
		Tab     float64   `json:"tp"`
		Anchors int       `json:"a"`
	}{
		Page:    -1,
		Cols:    s.ColCount,
		Rows:    s.RowCount,
		NF:      roundAll(firstN(s.NumFrac)),
		AF:      roundAll(firstN(s.AlphaFrac)),
		H:       firstN(s.HeaderBigrams),
		CC:      s.ContactCues,
		PC:      s.PeriodCues,
		RL:      round3(s.RowLabelDensity),
		PG:      round3(s.ProtoGrid),
		MH:      firstN(s.MinHash),
		Type:    string(s.TableType),
		Band:    s.PageBand,
		Tab:     s.TabularityProxy,
		Anchors: s.AnchorCount,
	}
	if s.PageNumber != nil {
		proj.Page = *s.PageNumber
	}
	b, _ := json.Marshal(proj)
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func pageBand(page *int) string {
	switch {
	case page == nil:
		return pageBandBack
	case *page <= frontBandLimit:
		return pageBandFront
	case *page <= midBandLimit:
		return pageBandMid
	default:
		return pageBandBack
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func roundAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = round3(x)
	}
	return out
}

func firstN[T any](v []T) []T {
	if len(v) > idSliceLimit {
		return v[:idSliceLimit]
	}
	return v
}
