package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"phieu/internal/assets"
	"phieu/internal/testsupport"
)

const (
	testMarker = "Phụ lục Ảnh TSSS"
	testAnchor = "Chữ ký cán bộ khảo sát"
)

func testOptions() Options {
	return Options{
		AppendixMarker:       testMarker,
		SignatureAnchor:      testAnchor,
		ImageWidthInches:     3.0,
		SignatureWidthInches: 2.0,
		OnDecodeError:        PolicySkip,
	}
}

func testTemplate(t *testing.T) []byte {
	t.Helper()
	return testsupport.BuildTemplate(t,
		"PHIẾU THU THẬP THÔNG TIN",
		"Thông tin tài sản",
		testMarker,
		testAnchor,
	)
}

func testImages(t *testing.T) []assets.Asset {
	t.Helper()
	return []assets.Asset{
		{Kind: assets.KindPropertyPhoto, SourceOrderIndex: 0, Name: "front.jpg", Content: testsupport.JPEGBytes(t, 40, 30)},
		{Kind: assets.KindPropertyPhoto, SourceOrderIndex: 1, Name: "back.png", Content: testsupport.PNGBytes(t, 40, 30)},
		{Kind: assets.KindTitleDeedScan, SourceOrderIndex: 0, Name: "deed.png", Content: testsupport.PNGBytes(t, 60, 80)},
	}
}

func testSignature(t *testing.T) SignatureImage {
	t.Helper()
	return SignatureImage{Name: "sig.png", Content: testsupport.PNGBytes(t, 20, 10)}
}

func readPart(t *testing.T, data []byte, name string) []byte {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open part %s: %v", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read part %s: %v", name, err)
		}
		return content
	}
	t.Fatalf("artifact has no part %s", name)
	return nil
}

func partNames(t *testing.T, data []byte) map[string]struct{} {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	names := make(map[string]struct{}, len(reader.File))
	for _, file := range reader.File {
		names[file.Name] = struct{}{}
	}
	return names
}

// countDrawings counts wp:docPr elements carrying the given drawing name.
func countDrawings(t *testing.T, document, name string) int {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err != nil {
		t.Fatalf("parse document: %v", err)
	}
	count := 0
	for _, el := range doc.FindElements("//wp:docPr") {
		if el.SelectAttrValue("name", "") == name {
			count++
		}
	}
	return count
}

func TestAssembleAppendsImagesAndSignature(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	template := testTemplate(t)
	original := append([]byte(nil), template...)

	doc, warnings, err := assembler.Assemble(template, testImages(t), testSignature(t))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if doc.ImageBlocks != 3 {
		t.Errorf("image blocks = %d, want 3", doc.ImageBlocks)
	}
	if !bytes.Equal(template, original) {
		t.Error("template bytes were mutated")
	}

	names := partNames(t, doc.Data)
	for _, part := range []string{
		"word/media/phieu_appendix_001.jpeg",
		"word/media/phieu_appendix_002.png",
		"word/media/phieu_appendix_003.png",
		"word/media/phieu_signature.png",
	} {
		if _, ok := names[part]; !ok {
			t.Errorf("artifact missing part %s", part)
		}
	}

	document := string(readPart(t, doc.Data, "word/document.xml"))
	markerAt := strings.Index(document, "Phụ lục Ảnh TSSS")
	if markerAt < 0 {
		t.Fatal("appendix marker missing from output document")
	}
	prev := markerAt
	for _, name := range []string{"phieu_appendix_001", "phieu_appendix_002", "phieu_appendix_003"} {
		at := strings.Index(document, `name="`+name+`"`)
		if at < 0 {
			t.Fatalf("document has no drawing %s", name)
		}
		if at < prev {
			t.Errorf("drawing %s appears before its predecessor", name)
		}
		prev = at
	}
	if got := countDrawings(t, document, "phieu_signature"); got != 1 {
		t.Errorf("signature drawings = %d, want 1", got)
	}

	rels := string(readPart(t, doc.Data, "word/_rels/document.xml.rels"))
	if !strings.Contains(rels, "media/phieu_signature.png") {
		t.Error("relationships missing signature target")
	}
	types := string(readPart(t, doc.Data, "[Content_Types].xml"))
	if !strings.Contains(types, `Extension="png"`) || !strings.Contains(types, `Extension="jpeg"`) {
		t.Error("content types missing image defaults")
	}
}

func TestAssembleSkipsUndecodableImage(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	images := testImages(t)
	images[1].Content = []byte("not an image")

	doc, warnings, err := assembler.Assemble(testTemplate(t), images, testSignature(t))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if doc.ImageBlocks != 2 {
		t.Errorf("image blocks = %d, want 2", doc.ImageBlocks)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", warnings)
	}
	var decodeErr *ImageDecodeError
	if !errors.As(warnings[0].Err, &decodeErr) {
		t.Fatalf("warning error = %v, want *ImageDecodeError", warnings[0].Err)
	}
	if warnings[0].Asset != "back.png" {
		t.Errorf("warning asset = %q", warnings[0].Asset)
	}
}

func TestAssembleFailPolicyAbortsOnBadImage(t *testing.T) {
	opts := testOptions()
	opts.OnDecodeError = PolicyFail
	assembler := NewAssembler(opts, nil)
	images := testImages(t)
	images[0].Content = []byte("garbage")

	_, _, err := assembler.Assemble(testTemplate(t), images, testSignature(t))
	var decodeErr *ImageDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *ImageDecodeError, got %v", err)
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	template := testTemplate(t)
	images := testImages(t)
	signature := testSignature(t)

	first, _, err := assembler.Assemble(template, images, signature)
	if err != nil {
		t.Fatalf("first Assemble: %v", err)
	}
	second, _, err := assembler.Assemble(template, images, signature)
	if err != nil {
		t.Fatalf("second Assemble: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("reruns produced different artifacts")
	}
}

func TestAssembleNoImagesStillSigns(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)

	doc, warnings, err := assembler.Assemble(testTemplate(t), nil, testSignature(t))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if doc.ImageBlocks != 0 || len(warnings) != 0 {
		t.Errorf("blocks = %d, warnings = %v", doc.ImageBlocks, warnings)
	}
	document := string(readPart(t, doc.Data, "word/document.xml"))
	if !strings.Contains(document, `name="phieu_signature"`) {
		t.Error("document has no signature drawing")
	}
}

func TestAssembleMissingAppendixMarker(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	template := testsupport.BuildTemplate(t, "PHIẾU THU THẬP THÔNG TIN", testAnchor)

	_, _, err := assembler.Assemble(template, testImages(t), testSignature(t))
	var structureErr *TemplateStructureError
	if !errors.As(err, &structureErr) {
		t.Fatalf("expected *TemplateStructureError, got %v", err)
	}
	if structureErr.Marker != testMarker {
		t.Errorf("marker = %q", structureErr.Marker)
	}
}

func TestAssembleMissingSignatureAnchor(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	template := testsupport.BuildTemplate(t, "PHIẾU THU THẬP THÔNG TIN", testMarker)

	_, _, err := assembler.Assemble(template, testImages(t), testSignature(t))
	var anchorErr *SignatureAnchorError
	if !errors.As(err, &anchorErr) {
		t.Fatalf("expected *SignatureAnchorError, got %v", err)
	}
}

func TestAssemblePlaceholderAnchorCleared(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	template := testsupport.BuildTemplate(t, testMarker, "{{signature}}")

	doc, _, err := assembler.Assemble(template, nil, testSignature(t))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	document := string(readPart(t, doc.Data, "word/document.xml"))
	if strings.Contains(document, "{{signature}}") {
		t.Error("placeholder text survived the overlay")
	}
	if !strings.Contains(document, `name="phieu_signature"`) {
		t.Error("document has no signature drawing")
	}
}

func TestAssembleCorruptSignatureIsFatal(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)

	_, _, err := assembler.Assemble(testTemplate(t), nil, SignatureImage{Name: "sig.png", Content: []byte("junk")})
	var decodeErr *ImageDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *ImageDecodeError, got %v", err)
	}
}

func TestAssembleMissingSignatureRejected(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	if _, _, err := assembler.Assemble(testTemplate(t), nil, SignatureImage{}); err == nil {
		t.Fatal("expected error for empty signature")
	}
}

func TestAssembleRejectsNonZipTemplate(t *testing.T) {
	assembler := NewAssembler(testOptions(), nil)
	if _, _, err := assembler.Assemble([]byte("not a docx"), nil, testSignature(t)); err == nil {
		t.Fatal("expected error for invalid container")
	}
}

func TestParsePolicy(t *testing.T) {
	if policy, err := ParsePolicy(""); err != nil || policy != PolicySkip {
		t.Errorf("ParsePolicy(\"\") = %s, %v", policy, err)
	}
	if policy, err := ParsePolicy("FAIL"); err != nil || policy != PolicyFail {
		t.Errorf("ParsePolicy(FAIL) = %s, %v", policy, err)
	}
	if _, err := ParsePolicy("ignore"); err == nil {
		t.Error("ParsePolicy accepted unknown policy")
	}
}
