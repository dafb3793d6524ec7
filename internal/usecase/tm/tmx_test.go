package tm

import (
	"context"
	"strings"
	"testing"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

const tmxTwoUnits = `<?xml version="1.0" encoding="UTF-8"?>
<tmx version="1.4">
  <header srclang="en"/>
  <body>
    <tu>
      <tuv xml:lang="en"><seg>Hello</seg></tuv>
      <tuv xml:lang="de"><seg>Hallo</seg></tuv>
    </tu>
    <tu>
      <tuv xml:lang="en"><seg>Goodbye</seg></tuv>
      <tuv xml:lang="de"><seg>Tschüss</seg></tuv>
    </tu>
  </body>
</tmx>`

// ---------------------------------------------------------------------------
// ImportTMX
// ---------------------------------------------------------------------------

func TestImportTMX_AddsUnits(t *testing.T) {
	e, repo := newTestEngine()
	report, err := e.ImportTMX(context.Background(), []byte(tmxTwoUnits), nil, "importer")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if report.TotalUnits != 2 || report.AddedCount != 2 || report.SkippedCount != 0 {
		t.Errorf("report = %+v, want 2 units all added", report)
	}
	if len(repo.entries) != 2 {
		t.Errorf("stored entries = %d, want 2", len(repo.entries))
	}
	for _, entry := range repo.entries {
		if entry.SourceLang != "en" || entry.TargetLang != "de" {
			t.Errorf("entry languages = %s/%s, want en/de", entry.SourceLang, entry.TargetLang)
		}
	}
}

func TestImportTMX_ReimportUpdates(t *testing.T) {
	e, repo := newTestEngine()
	ctx := context.Background()
	if _, err := e.ImportTMX(ctx, []byte(tmxTwoUnits), nil, "importer"); err != nil {
		t.Fatalf("first import: %v", err)
	}
	report, err := e.ImportTMX(ctx, []byte(tmxTwoUnits), nil, "importer")
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if report.AddedCount != 0 || report.UpdatedCount != 2 {
		t.Errorf("report = %+v, want 2 updated on re-import", report)
	}
	if len(repo.entries) != 2 {
		t.Errorf("stored entries = %d, want still 2", len(repo.entries))
	}
}

func TestImportTMX_BadUnitDoesNotAbortBatch(t *testing.T) {
	doc := `<?xml version="1.0"?>
<tmx version="1.4">
  <header srclang="en"/>
  <body>
    <tu>
      <tuv xml:lang="en"><seg>One</seg></tuv>
      <tuv xml:lang="de"><seg>Eins</seg></tuv>
    </tu>
    <tu>
      <tuv xml:lang="en"><seg>Lonely</seg></tuv>
    </tu>
    <tu>
      <tuv xml:lang="en"><seg>Two</seg></tuv>
      <tuv xml:lang="de"><seg>Zwei</seg></tuv>
    </tu>
  </body>
</tmx>`
	e, _ := newTestEngine()
	report, err := e.ImportTMX(context.Background(), []byte(doc), nil, "importer")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if report.AddedCount != 2 {
		t.Errorf("added = %d, want 2", report.AddedCount)
	}
	if report.SkippedCount != 1 {
		t.Errorf("skipped = %d, want 1", report.SkippedCount)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "unit 2") {
		t.Errorf("errors = %v, want one entry naming unit 2", report.Errors)
	}
}

func TestImportTMX_StructurallyInvalid(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.ImportTMX(context.Background(), []byte("<tmx><body"), nil, "importer")
	if !domain.IsValidation(err) {
		t.Errorf("want validation error for malformed XML, got %v", err)
	}
}

func TestImportTMX_SrclangPicksSourceRegardlessOfOrder(t *testing.T) {
	doc := `<?xml version="1.0"?>
<tmx version="1.4">
  <header srclang="en-US"/>
  <body>
    <tu>
      <tuv xml:lang="de"><seg>Hallo</seg></tuv>
      <tuv xml:lang="en"><seg>Hello</seg></tuv>
    </tu>
  </body>
</tmx>`
	e, repo := newTestEngine()
	report, err := e.ImportTMX(context.Background(), []byte(doc), nil, "importer")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if report.AddedCount != 1 {
		t.Fatalf("added = %d, want 1", report.AddedCount)
	}
	entry := repo.entries[0]
	if entry.SourceText != "Hello" || entry.TargetText != "Hallo" {
		t.Errorf("entry = %q -> %q, want en variant as source despite order", entry.SourceText, entry.TargetText)
	}
	if entry.SourceLang != "en" || entry.TargetLang != "de" {
		t.Errorf("languages = %s/%s, want en/de", entry.SourceLang, entry.TargetLang)
	}
}

func TestImportTMX_NoHeaderFallsBackToDocumentOrder(t *testing.T) {
	doc := `<?xml version="1.0"?>
<tmx version="1.4">
  <header/>
  <body>
    <tu>
      <tuv xml:lang="fr"><seg>Bonjour</seg></tuv>
      <tuv xml:lang="es"><seg>Hola</seg></tuv>
    </tu>
  </body>
</tmx>`
	e, repo := newTestEngine()
	if _, err := e.ImportTMX(context.Background(), []byte(doc), nil, "importer"); err != nil {
		t.Fatalf("error: %v", err)
	}
	entry := repo.entries[0]
	if entry.SourceLang != "fr" || entry.TargetLang != "es" {
		t.Errorf("languages = %s/%s, want first variant as source", entry.SourceLang, entry.TargetLang)
	}
}

// ---------------------------------------------------------------------------
// langEqual
// ---------------------------------------------------------------------------

func TestLangEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"en", "en", true},
		{"EN", "en", true},
		{"en", "en-US", true},
		{"en_GB", "en-US", true},
		{"en", "de", false},
		{"zh-CN", "zh-TW", true},
	}
	for _, c := range cases {
		if got := langEqual(c.a, c.b); got != c.want {
			t.Errorf("langEqual(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

// ---------------------------------------------------------------------------
// ExportTMX
// ---------------------------------------------------------------------------

func TestExportTMX_RoundTrip(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	_, _, _ = e.AddEntry(ctx, "en", "de", "5 < 6", "5 < 6 & wahr", nil, "u")
	out, err := e.ExportTMX(ctx, "en", "de", nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(out), `srclang="en"`) {
		t.Errorf("export missing srclang header: %s", out)
	}
	// Re-import the exported document into a fresh engine.
	e2, repo2 := newTestEngine()
	report, err := e2.ImportTMX(ctx, out, nil, "u")
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if report.AddedCount != 1 {
		t.Fatalf("re-import added = %d, want 1", report.AddedCount)
	}
	entry := repo2.entries[0]
	if entry.SourceText != "5 < 6" || entry.TargetText != "5 < 6 & wahr" {
		t.Errorf("round-trip entry = %q -> %q, want escaped text preserved", entry.SourceText, entry.TargetText)
	}
}
