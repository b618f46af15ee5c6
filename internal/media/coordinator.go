// Package media sequences asset-store and record-store operations so that a
// failure in one never leaves a record pointing at a missing asset.
//
// Ordering rules:
//   - create uploads first and records second; a failed record write
//     triggers best-effort cleanup of the fresh asset.
//   - rename uploads the replacement, updates the record, and only then
//     deletes the old asset.
//   - delete removes the asset first (non-fatal) and the record second.
//
// Asset deletions that fail are logged and counted, never retried inline.
// Once the first side effect has happened, the remaining steps run to
// completion even if the caller's context is cancelled.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/memeboard/internal/asset"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

// File is an uploaded image payload.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// CreateRequest is a single community upload.
type CreateRequest struct {
	Title string
	Tags  []string
	File  *File
}

// RenameRequest is an admin rename. File is optional; when set the asset is
// replaced. Nil Tags keep the current tags.
type RenameRequest struct {
	Title string
	Tags  []string
	File  *File
}

// RenameResult reports what happened to the assets during a rename.
type RenameResult struct {
	Meme            *model.Meme `json:"meme"`
	AssetReplaced   bool        `json:"assetReplaced"`
	OldAssetDeleted bool        `json:"oldAssetDeleted"`
	OldAssetSkipped bool        `json:"oldAssetSkipped"`
}

// DeleteResult reports both sides of a delete. AssetSkipped is set when the
// record's URL is not provider-managed or could not be parsed.
type DeleteResult struct {
	AssetDeleted  bool `json:"assetDeleted"`
	AssetSkipped  bool `json:"assetSkipped"`
	RecordDeleted bool `json:"recordDeleted"`
}

// BulkFailure is one file a bulk upload could not turn into a meme.
type BulkFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// BulkResult is the outcome of BulkUpload.
type BulkResult struct {
	Created []model.Meme  `json:"created"`
	Failed  []BulkFailure `json:"failed"`
}

// Coordinator implements the media lifecycle and the moderation ledger.
type Coordinator struct {
	records store.Store
	assets  asset.Store
	logger  logging.Logger
	metrics *metrics
}

// NewCoordinator wires a coordinator. A nil registerer means the default one.
func NewCoordinator(records store.Store, assets asset.Store, logger logging.Logger, reg prometheus.Registerer) (*Coordinator, error) {
	if records == nil || assets == nil {
		return nil, errors.New("media: record store and asset store are required")
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register media metrics: %w", err)
	}
	return &Coordinator{
		records: records,
		assets:  assets,
		logger:  logging.OrNop(logger),
		metrics: m,
	}, nil
}

// Records exposes the record store for read paths that need no coordination.
func (c *Coordinator) Records() store.Store {
	return c.records
}

// Get loads a single meme.
func (c *Coordinator) Get(ctx context.Context, id string) (*model.Meme, error) {
	m, err := c.records.Get(ctx, id)
	if err != nil {
		return nil, recordErr(err)
	}
	return m, nil
}

// List forwards a listing to the record store.
func (c *Coordinator) List(ctx context.Context, p store.ListParams) ([]model.Meme, error) {
	memes, err := c.records.List(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecordWriteFailed, err)
	}
	return memes, nil
}

// Create validates, uploads the asset, then creates the record.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (*model.Meme, error) {
	title, tags, err := model.ValidateMemeFields(req.Title, req.Tags)
	if err != nil {
		return nil, err
	}
	if err := requireFile(req.File); err != nil {
		return nil, err
	}

	up, err := c.upload(ctx, req.File)
	if err != nil {
		return nil, err
	}
	ctx, cancel := detach(ctx)
	defer cancel()

	m, err := c.records.Create(ctx, store.CreateParams{Title: title, Tags: tags, ImageURL: up.URL})
	if err != nil {
		c.cleanupUpload(ctx, "create", up)
		return nil, fmt.Errorf("%w: %w", ErrRecordWriteFailed, err)
	}
	c.logger.Info("created meme %s with asset %s", m.ID, up.ProviderID)
	return m, nil
}

// Rename applies an admin rename, optionally replacing the asset. The old
// asset is deleted only after the record points at the new one.
func (c *Coordinator) Rename(ctx context.Context, p model.Principal, id string, req RenameRequest) (*RenameResult, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	title, tags, err := model.ValidateMemeFields(req.Title, req.Tags)
	if err != nil {
		return nil, err
	}
	if req.File != nil {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
	}

	current, err := c.records.Get(ctx, id)
	if err != nil {
		return nil, recordErr(err)
	}

	params := store.UpdateParams{Title: &title, Tags: tags}
	if req.Tags == nil {
		params.Tags = nil
	}
	var up *asset.UploadResult
	if req.File != nil {
		res, err := c.upload(ctx, req.File)
		if err != nil {
			return nil, err
		}
		up = &res
		params.ImageURL = &res.URL

		var cancel context.CancelFunc
		ctx, cancel = detach(ctx)
		defer cancel()
	}

	updated, err := c.records.Update(ctx, id, params)
	if err != nil {
		if up != nil {
			c.cleanupUpload(ctx, "rename", *up)
		}
		return nil, recordErr(err)
	}

	result := &RenameResult{Meme: updated, AssetReplaced: up != nil}
	if up != nil {
		oldID, extractErr := asset.ExtractProviderID(current.ImageURL)
		if extractErr == nil && oldID == up.ProviderID {
			// Provider overwrote in place; nothing old to remove.
			result.OldAssetSkipped = true
		} else {
			result.OldAssetDeleted, result.OldAssetSkipped = c.deleteByURL(ctx, "rename", id, current.ImageURL)
		}
	}
	c.logger.Info("renamed meme %s by %s (asset replaced: %t)", id, p.UserID, result.AssetReplaced)
	return result, nil
}

// Delete removes the asset (best effort) and then the record. Only a
// record-side failure fails the operation.
func (c *Coordinator) Delete(ctx context.Context, p model.Principal, id string) (*DeleteResult, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	current, err := c.records.Get(ctx, id)
	if err != nil {
		return nil, recordErr(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := detach(ctx)
	defer cancel()

	result := &DeleteResult{}
	result.AssetDeleted, result.AssetSkipped = c.deleteByURL(ctx, "delete", id, current.ImageURL)

	existed, err := c.records.Delete(ctx, id)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrRecordWriteFailed, err)
	}
	if !existed {
		return result, fmt.Errorf("meme %s: %w", id, ErrRecordNotFound)
	}
	result.RecordDeleted = true
	c.logger.Info("deleted meme %s by %s (asset deleted: %t, skipped: %t)", id, p.UserID, result.AssetDeleted, result.AssetSkipped)
	return result, nil
}

// BulkCreate makes one placeholder meme per already-uploaded asset URL.
// On a record failure the memes created so far are returned with the error.
func (c *Coordinator) BulkCreate(ctx context.Context, p model.Principal, urls []string) ([]model.Meme, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, &model.ValidationError{Field: "images", Message: "at least one image is required"}
	}
	items := make([]store.CreateParams, len(urls))
	for i, u := range urls {
		items[i] = store.CreateParams{
			Title:    model.PlaceholderTitle,
			Tags:     []string{model.PlaceholderTag},
			ImageURL: u,
		}
	}
	created, err := c.records.CreateBulk(ctx, items)
	if err != nil {
		return created, fmt.Errorf("%w: %w", ErrRecordWriteFailed, err)
	}
	c.logger.Info("bulk created %d memes by %s", len(created), p.UserID)
	return created, nil
}

// bulkUploadConcurrency bounds parallel provider uploads in one batch.
const bulkUploadConcurrency = 4

// BulkUpload uploads every file, then bulk-creates records for the ones that
// made it, in input order. Upload failures are reported per file; assets
// whose record could not be written are cleaned up.
func (c *Coordinator) BulkUpload(ctx context.Context, p model.Principal, files []File) (*BulkResult, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &model.ValidationError{Field: "images", Message: "at least one image is required"}
	}

	type outcome struct {
		up  asset.UploadResult
		err error
	}
	outcomes := make([]outcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkUploadConcurrency)
	for i := range files {
		i := i
		f := &files[i]
		g.Go(func() error {
			if err := requireFile(f); err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].up, outcomes[i].err = c.upload(gctx, f)
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkResult{Created: []model.Meme{}, Failed: []BulkFailure{}}
	var uploaded []asset.UploadResult
	var names []string
	for i, o := range outcomes {
		if o.err != nil {
			result.Failed = append(result.Failed, BulkFailure{Name: files[i].Name, Reason: o.err.Error()})
			continue
		}
		uploaded = append(uploaded, o.up)
		names = append(names, files[i].Name)
	}
	if len(uploaded) == 0 {
		return result, nil
	}
	ctx, cancel := detach(ctx)
	defer cancel()

	urls := make([]string, len(uploaded))
	for i, up := range uploaded {
		urls[i] = up.URL
	}
	created, err := c.BulkCreate(ctx, p, urls)
	result.Created = append(result.Created, created...)
	if err != nil {
		for i := len(created); i < len(uploaded); i++ {
			c.cleanupUpload(ctx, "bulk", uploaded[i])
			result.Failed = append(result.Failed, BulkFailure{Name: names[i], Reason: err.Error()})
		}
		return result, err
	}
	return result, nil
}

// detachedTimeout bounds the steps that outlive a cancelled caller.
const detachedTimeout = 30 * time.Second

// detach keeps ctx's values but drops its cancellation, so a sequence that
// has already touched the asset store finishes its record and cleanup steps.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
}

func (c *Coordinator) upload(ctx context.Context, f *File) (asset.UploadResult, error) {
	up, err := c.assets.Upload(ctx, asset.UploadRequest{Name: f.Name, MimeType: f.MimeType, Data: f.Data})
	if err != nil {
		c.logger.Warn("upload %q: %v", f.Name, err)
		return asset.UploadResult{}, fmt.Errorf("%w: %w", ErrAssetUploadFailed, err)
	}
	return up, nil
}

// cleanupUpload removes an asset that never got a record.
func (c *Coordinator) cleanupUpload(ctx context.Context, operation string, up asset.UploadResult) {
	err := c.assets.Delete(ctx, up.ProviderID)
	if err == nil || errors.Is(err, asset.ErrNotFound) {
		return
	}
	c.metrics.orphan(operation)
	c.logger.Error("%v: cleanup of %s after failed %s: %v", ErrAssetDeleteFailed, up.ProviderID, operation, err)
}

// deleteByURL deletes the asset a record URL points at. It never fails:
// an already-missing asset counts as deleted, and URLs that are not
// provider-managed or do not parse are skipped.
func (c *Coordinator) deleteByURL(ctx context.Context, operation, memeID, url string) (deleted, skipped bool) {
	providerID, err := asset.ExtractProviderID(url)
	if errors.Is(err, asset.ErrNotProviderManaged) {
		c.logger.Debug("meme %s: asset %q is not provider-managed, skipping delete", memeID, url)
		return false, true
	}
	if err != nil {
		c.logger.Warn("meme %s: %v, skipping delete", memeID, err)
		return false, true
	}

	err = c.assets.Delete(ctx, providerID)
	switch {
	case err == nil:
		return true, false
	case errors.Is(err, asset.ErrNotFound):
		c.logger.Debug("meme %s: asset %s already gone", memeID, providerID)
		return true, false
	default:
		c.metrics.orphan(operation)
		c.logger.Error("%v: meme %s asset %s during %s: %v", ErrAssetDeleteFailed, memeID, providerID, operation, err)
		return false, false
	}
}

func requireFile(f *File) error {
	if f == nil || len(f.Data) == 0 {
		return &model.ValidationError{Field: "image", Message: "an image file is required"}
	}
	return nil
}

func requireAdmin(p model.Principal) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func recordErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrRecordNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrRecordWriteFailed, err)
}
