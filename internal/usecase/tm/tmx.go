package tm

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

// ImportReport aggregates per-unit outcomes of a TMX import.
type ImportReport struct {
	TotalUnits   int      `json:"total_units"`
	AddedCount   int      `json:"added_count"`
	UpdatedCount int      `json:"updated_count"`
	SkippedCount int      `json:"skipped_count"`
	Errors       []string `json:"errors"`
}

type tmxDoc struct {
	XMLName xml.Name  `xml:"tmx"`
	Header  tmxHeader `xml:"header"`
	Body    tmxBody   `xml:"body"`
}

type tmxHeader struct {
	SrcLang string `xml:"srclang,attr"`
}

type tmxBody struct {
	Units []tmxUnit `xml:"tu"`
}

type tmxUnit struct {
	Variants []tmxVariant `xml:"tuv"`
}

type tmxVariant struct {
	Lang    string `xml:"lang,attr"`
	XMLLang string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Seg     struct {
		Text string `xml:",chardata"`
	} `xml:"seg"`
}

func (v tmxVariant) lang() string {
	if v.XMLLang != "" {
		return v.XMLLang
	}
	return v.Lang
}

// ImportTMX parses a TMX document and upserts every usable translation
// unit. Units are processed independently: a failing unit is recorded and
// skipped, never aborting the batch. Only a structurally invalid document
// (bad XML, wrong root) returns an error.
func (e *Engine) ImportTMX(ctx context.Context, content []byte, projectID *int64, createdBy string) (*ImportReport, error) {
	var doc tmxDoc
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, domain.Validationf("invalid TMX document: %v", err)
	}
	report := &ImportReport{TotalUnits: len(doc.Body.Units)}
	for i, tu := range doc.Body.Units {
		src, tgt, reason := pickVariants(tu, doc.Header.SrcLang)
		if reason != "" {
			report.SkippedCount++
			report.Errors = append(report.Errors, fmt.Sprintf("unit %d: %s", i+1, reason))
			continue
		}
		_, status, err := e.AddEntry(ctx, src.lang(), tgt.lang(),
			strings.TrimSpace(src.Seg.Text), strings.TrimSpace(tgt.Seg.Text), projectID, createdBy)
		if err != nil {
			report.SkippedCount++
			report.Errors = append(report.Errors, fmt.Sprintf("unit %d: %v", i+1, err))
			continue
		}
		if status == StatusAdded {
			report.AddedCount++
		} else {
			report.UpdatedCount++
		}
	}
	return report, nil
}

// pickVariants selects source and target TUVs. When the header declares a
// srclang, the variant whose xml:lang matches it is the source and the
// first other non-empty variant the target; without language attributes the
// first two non-empty variants are taken in document order.
func pickVariants(tu tmxUnit, srcLang string) (src, tgt tmxVariant, reason string) {
	var usable []tmxVariant
	for _, v := range tu.Variants {
		if strings.TrimSpace(v.Seg.Text) == "" {
			continue
		}
		usable = append(usable, v)
	}
	if len(usable) < 2 {
		return tmxVariant{}, tmxVariant{}, fmt.Sprintf("needs at least 2 non-empty language variants, got %d", len(usable))
	}
	srcIdx := 0
	if srcLang != "" && srcLang != "*all*" {
		srcIdx = -1
		for i, v := range usable {
			if langEqual(v.lang(), srcLang) {
				srcIdx = i
				break
			}
		}
		if srcIdx == -1 {
			srcIdx = 0
		}
	}
	src = usable[srcIdx]
	for i, v := range usable {
		if i == srcIdx {
			continue
		}
		return src, v, ""
	}
	return tmxVariant{}, tmxVariant{}, "no target variant"
}

// langEqual compares language tags case-insensitively, treating a bare
// primary tag as matching any of its regional variants (en ~ en-US).
func langEqual(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return true
	}
	return primaryTag(a) == primaryTag(b)
}

func primaryTag(s string) string {
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		return s[:i]
	}
	return s
}

// ExportTMX writes every entry for the language pair (project scope plus
// globals) as a TMX 1.4 document.
func (e *Engine) ExportTMX(ctx context.Context, sourceLang, targetLang string, projectID *int64) ([]byte, error) {
	entries, err := e.repo.ListByLangPair(ctx, sourceLang, targetLang, projectID)
	if err != nil {
		return nil, fmt.Errorf("tm list: %w", err)
	}
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<tmx version="1.4">`)
	fmt.Fprintf(&b, `<header creationtool="aitcore" segtype="sentence" adminlang="en" srclang="%s" datatype="plaintext"/>`, xmlEscape(sourceLang))
	b.WriteString("<body>")
	for _, entry := range entries {
		b.WriteString("<tu>")
		fmt.Fprintf(&b, `<tuv xml:lang="%s"><seg>%s</seg></tuv>`, xmlEscape(entry.SourceLang), xmlEscape(entry.SourceText))
		fmt.Fprintf(&b, `<tuv xml:lang="%s"><seg>%s</seg></tuv>`, xmlEscape(entry.TargetLang), xmlEscape(entry.TargetText))
		b.WriteString("</tu>")
	}
	b.WriteString("</body></tmx>")
	return []byte(b.String()), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
