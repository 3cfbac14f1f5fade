package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"quicklist/internal/util"
	"quicklist/pkg/ai"
	"quicklist/pkg/domain"
	"quicklist/pkg/imaging"
)

// UploadedImage is one raw client upload. It exists only within a single
// pipeline invocation. The image format is sniffed from the bytes during
// normalization, not taken from client headers.
type UploadedImage struct {
	Data []byte
}

// GenerateOptions carries the optional client context for a pipeline run.
type GenerateOptions struct {
	Location  string
	Condition string
}

// GenerateResult is the pipeline's success output: the persisted listing and
// the raw advisor draft for client display.
type GenerateResult struct {
	Listing domain.Listing
	Draft   domain.ListingDraft
}

// GenerateListing runs the full pipeline: validate, normalize (fan-out),
// advise, store images (fan-out), resolve category, persist. Every step after
// normalization runs at most once; failures surface as classified errors with
// no partial success reported.
func (a *App) GenerateListing(ctx context.Context, sellerID string, images []UploadedImage, opts GenerateOptions) (GenerateResult, error) {
	if len(images) == 0 {
		return GenerateResult{}, invalidInput("at least one image required")
	}
	if len(images) > a.maxImages {
		return GenerateResult{}, invalidInput(fmt.Sprintf("at most %d images allowed", a.maxImages))
	}
	for i, img := range images {
		if int64(len(img.Data)) > a.maxImageBytes {
			return GenerateResult{}, invalidInput(fmt.Sprintf("image %d exceeds %d bytes", i+1, a.maxImageBytes))
		}
		if len(img.Data) == 0 {
			return GenerateResult{}, invalidInput(fmt.Sprintf("image %d is empty", i+1))
		}
	}

	normalized, err := a.normalizeAll(ctx, images)
	if err != nil {
		return GenerateResult{}, err
	}

	draft, err := a.requestDraft(ctx, normalized, opts)
	if err != nil {
		return GenerateResult{}, err
	}

	urls, err := a.storeAll(ctx, sellerID, normalized)
	if err != nil {
		return GenerateResult{}, err
	}

	categoryID, err := a.ResolveCategory(draft.Category)
	if err != nil {
		return GenerateResult{}, err
	}

	location := strings.TrimSpace(opts.Location)
	if location == "" {
		location = "Unknown"
	}
	now := time.Now().UTC()
	listing := domain.Listing{
		ID:          util.NewID(),
		SellerID:    sellerID,
		Title:       draft.Title,
		Description: draft.Description,
		Price:       draft.SuggestedPrice,
		Condition:   draft.Condition,
		CategoryID:  categoryID,
		Location:    location,
		Images:      urls,
		AIGenerated: true,
		AIMetadata: &domain.AIMetadata{
			KeyFeatures: draft.KeyFeatures,
			Brand:       draft.Brand,
		},
		Status:    domain.ListingActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateListing(listing); err != nil {
		return GenerateResult{}, fmt.Errorf("persist listing: %w", err)
	}
	return GenerateResult{Listing: listing, Draft: draft}, nil
}

// normalizeAll resizes every upload concurrently. A single failure is fatal:
// the advisor call needs the complete image set.
func (a *App) normalizeAll(ctx context.Context, images []UploadedImage) ([]imaging.Normalized, error) {
	normalized := make([]imaging.Normalized, len(images))
	g, _ := errgroup.WithContext(ctx)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			out, err := a.normalizer.Normalize(img.Data)
			if err != nil {
				return newError(KindNormalization, fmt.Sprintf("image %d", i+1), err)
			}
			normalized[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var appErr *Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, newError(KindNormalization, "normalize images", err)
	}
	return normalized, nil
}

// requestDraft submits all normalized images in a single advisor call.
func (a *App) requestDraft(ctx context.Context, normalized []imaging.Normalized, opts GenerateOptions) (domain.ListingDraft, error) {
	payloads := make([]ai.ImagePayload, len(normalized))
	for i, n := range normalized {
		payloads[i] = ai.ImagePayload{DataURL: n.DataURL()}
	}
	callCtx, cancel := context.WithTimeout(ctx, a.advisorTimeout)
	defer cancel()
	draft, err := a.advisor.DraftListing(callCtx, ai.DraftRequest{
		Images:    payloads,
		Condition: opts.Condition,
		Location:  opts.Location,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return domain.ListingDraft{}, newError(KindTimeout, "advisor call timed out", err)
		case errors.Is(err, ai.ErrMalformedDraft):
			return domain.ListingDraft{}, newError(KindAdvisorContract, "advisor returned malformed draft", err)
		default:
			return domain.ListingDraft{}, newError(KindUpstream, "advisor call failed", err)
		}
	}
	return draft, nil
}

// storeAll uploads every normalized image concurrently and returns public
// URLs in input order. On any failure the listing is never created; objects
// stored before the failure are reported for manual cleanup, not rolled back.
func (a *App) storeAll(ctx context.Context, sellerID string, normalized []imaging.Normalized) ([]string, error) {
	urls := make([]string, len(normalized))
	stamp := time.Now().UTC().UnixMilli()

	var mu sync.Mutex
	succeeded := make([]string, 0, len(normalized))

	callCtx, cancel := context.WithTimeout(ctx, a.storageTimeout)
	defer cancel()
	g, groupCtx := errgroup.WithContext(callCtx)
	for i, n := range normalized {
		i, n := i, n
		g.Go(func() error {
			key := fmt.Sprintf("listings/%s/%d_%d.jpg", sellerID, stamp, i)
			url, err := a.images.Put(groupCtx, key, n.Data, imaging.NormalizedMIMEType)
			if err != nil {
				return fmt.Errorf("upload image %d: %w", i+1, err)
			}
			urls[i] = url
			mu.Lock()
			succeeded = append(succeeded, url)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Message: "image upload timed out", UploadedURLs: succeeded, Err: err}
		}
		return nil, &Error{Kind: KindPartialUpload, Message: "image upload failed", UploadedURLs: succeeded, Err: err}
	}
	return urls, nil
}
