package assets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"phieu/internal/amis"
)

type fakeDownloader struct {
	files  map[string][]byte
	failed map[string]error
}

func (f *fakeDownloader) DownloadFile(_ context.Context, _ *amis.Session, ref amis.FileRef) ([]byte, error) {
	if err, ok := f.failed[ref.URL]; ok {
		return nil, err
	}
	data, ok := f.files[ref.URL]
	if !ok {
		return nil, fmt.Errorf("no such file %s", ref.URL)
	}
	return data, nil
}

func testRecord() *amis.RecordHandle {
	return &amis.RecordHandle{
		RecordID: "R-1001",
		Template: amis.FileRef{URL: "/files/tpl.docx", Name: "Phiếu TTTT - Nhà đất"},
		PropertyPhotos: []amis.FileRef{
			{URL: "/files/p1.jpg", Name: "front.jpg"},
			{URL: "/files/p2.jpg", Name: "back.jpg"},
		},
		TitleDeedScans: []amis.FileRef{
			{URL: "/files/d1.png", Name: "deed.png"},
		},
	}
}

func testFiles() map[string][]byte {
	return map[string][]byte{
		"/files/tpl.docx": []byte("template"),
		"/files/p1.jpg":   []byte("p1"),
		"/files/p2.jpg":   []byte("p2"),
		"/files/d1.png":   []byte("d1"),
	}
}

func TestFetchBundlesInCategoryOrder(t *testing.T) {
	fetcher := NewFetcher(&fakeDownloader{files: testFiles()}, nil)

	bundle, err := fetcher.Fetch(context.Background(), nil, testRecord())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if string(bundle.Template.Content) != "template" {
		t.Errorf("template content = %q", bundle.Template.Content)
	}
	if bundle.Template.Kind != KindTemplate {
		t.Errorf("template kind = %s", bundle.Template.Kind)
	}

	wantKinds := []Kind{KindPropertyPhoto, KindPropertyPhoto, KindTitleDeedScan}
	if len(bundle.Images) != len(wantKinds) {
		t.Fatalf("image count = %d, want %d", len(bundle.Images), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if bundle.Images[i].Kind != kind {
			t.Errorf("image %d kind = %s, want %s", i, bundle.Images[i].Kind, kind)
		}
	}
	if bundle.Images[0].Name != "front.jpg" || bundle.Images[1].Name != "back.jpg" {
		t.Errorf("property order = %q, %q", bundle.Images[0].Name, bundle.Images[1].Name)
	}
	if bundle.CountByKind(KindListingPhoto) != 0 {
		t.Errorf("listing count = %d", bundle.CountByKind(KindListingPhoto))
	}
}

func TestFetchMissingTemplateIsFatal(t *testing.T) {
	record := testRecord()
	record.Template = amis.FileRef{}
	fetcher := NewFetcher(&fakeDownloader{files: testFiles()}, nil)

	_, err := fetcher.Fetch(context.Background(), nil, record)
	if !errors.Is(err, ErrMissingTemplate) {
		t.Fatalf("expected ErrMissingTemplate, got %v", err)
	}
}

func TestFetchTemplateDownloadFailureIsFatal(t *testing.T) {
	downloader := &fakeDownloader{
		files:  testFiles(),
		failed: map[string]error{"/files/tpl.docx": errors.New("boom")},
	}
	fetcher := NewFetcher(downloader, nil)

	_, err := fetcher.Fetch(context.Background(), nil, testRecord())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchImageDownloadFailureIsFatal(t *testing.T) {
	downloader := &fakeDownloader{
		files:  testFiles(),
		failed: map[string]error{"/files/p2.jpg": errors.New("boom")},
	}
	fetcher := NewFetcher(downloader, nil)

	_, err := fetcher.Fetch(context.Background(), nil, testRecord())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchEmptyCategoriesProduceEmptyBundle(t *testing.T) {
	record := &amis.RecordHandle{
		RecordID: "R-2002",
		Template: amis.FileRef{URL: "/files/tpl.docx"},
	}
	fetcher := NewFetcher(&fakeDownloader{files: testFiles()}, nil)

	bundle, err := fetcher.Fetch(context.Background(), nil, record)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(bundle.Images) != 0 {
		t.Errorf("image count = %d, want 0", len(bundle.Images))
	}
}

func TestNewAssetRejectsUnknownKind(t *testing.T) {
	if _, err := NewAsset(Kind("floor-plan"), 0, "x", nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestParseKind(t *testing.T) {
	if kind, ok := ParseKind("property-photo"); !ok || kind != KindPropertyPhoto {
		t.Errorf("ParseKind(property-photo) = %s, %v", kind, ok)
	}
	if _, ok := ParseKind("floor-plan"); ok {
		t.Error("ParseKind accepted unknown kind")
	}
}
