package assets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"phieu/internal/amis"
	"phieu/internal/logging"
)

// Downloader is the slice of the session client the fetcher needs.
type Downloader interface {
	DownloadFile(ctx context.Context, sess *amis.Session, ref amis.FileRef) ([]byte, error)
}

// Fetcher retrieves the template and image assets for a resolved record.
type Fetcher struct {
	client Downloader
	logger *slog.Logger
}

// NewFetcher constructs a fetcher on top of a session client.
func NewFetcher(client Downloader, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logging.NewComponentLogger(logger, "assets"),
	}
}

// Fetch downloads the record's template first, then the optional image
// categories concurrently. An absent optional category contributes nothing;
// an absent template fails the fetch with ErrMissingTemplate.
func (f *Fetcher) Fetch(ctx context.Context, sess *amis.Session, record *amis.RecordHandle) (*Bundle, error) {
	if record == nil {
		return nil, fmt.Errorf("assets: nil record handle")
	}
	if record.Template.IsZero() {
		return nil, ErrMissingTemplate
	}

	templateData, err := f.client.DownloadFile(ctx, sess, record.Template)
	if err != nil {
		return nil, fmt.Errorf("assets: fetch template: %w", err)
	}
	template, err := NewAsset(KindTemplate, 0, record.Template.Name, templateData)
	if err != nil {
		return nil, err
	}
	f.logger.Info("template fetched",
		logging.String(logging.FieldRecordID, record.RecordID),
		logging.Int("bytes", len(templateData)),
	)

	categories := []struct {
		kind Kind
		refs []amis.FileRef
	}{
		{KindPropertyPhoto, record.PropertyPhotos},
		{KindListingPhoto, record.ListingPhotos},
		{KindTitleDeedScan, record.TitleDeedScans},
	}

	// Categories share no state and are downloaded concurrently; ordering is
	// restored afterwards from the fixed category order.
	fetched := make([][]Asset, len(categories))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, category := range categories {
		i, category := i, category
		group.Go(func() error {
			images, err := f.fetchCategory(groupCtx, sess, category.kind, category.refs)
			if err != nil {
				return err
			}
			fetched[i] = images
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var images []Asset
	for _, categoryAssets := range fetched {
		images = append(images, categoryAssets...)
	}

	f.logger.Info("assets fetched",
		logging.String(logging.FieldRecordID, record.RecordID),
		logging.Int("images", len(images)),
	)
	return &Bundle{Template: template, Images: images}, nil
}

func (f *Fetcher) fetchCategory(ctx context.Context, sess *amis.Session, kind Kind, refs []amis.FileRef) ([]Asset, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	images := make([]Asset, 0, len(refs))
	for i, ref := range refs {
		data, err := f.client.DownloadFile(ctx, sess, ref)
		if err != nil {
			return nil, fmt.Errorf("assets: fetch %s %d: %w", kind, i, err)
		}
		asset, err := NewAsset(kind, i, ref.Name, data)
		if err != nil {
			return nil, err
		}
		images = append(images, asset)
	}

	sort.SliceStable(images, func(a, b int) bool {
		return images[a].SourceOrderIndex < images[b].SourceOrderIndex
	})
	return images, nil
}
