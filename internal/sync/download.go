// Package sync implements the two reconciliation directions: download
// (remote state folded into the local catalog) and upload (local changes
// pushed back as remote mutations).
package sync

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/rbxkit/rbxsync/internal/api"
	"github.com/rbxkit/rbxsync/internal/catalog"
)

// Downloader fetches all remote records and merges them into the catalog.
type Downloader struct {
	api         *api.Client
	catalogPath string
	overwrite   bool
}

// NewDownloader creates a downloader. With overwrite set, remote values win
// every merge decision except the censorship guard.
func NewDownloader(client *api.Client, catalogPath string, overwrite bool) *Downloader {
	return &Downloader{api: client, catalogPath: catalogPath, overwrite: overwrite}
}

// Run performs a full download: fetch, merge, persist, export.
func (d *Downloader) Run(ctx context.Context) error {
	cat, err := catalog.Load(d.catalogPath)
	if err != nil {
		return err
	}

	slog.Info("fetching remote products", "universe", cat.Metadata.UniverseID)
	remotes, err := d.api.FetchAll(ctx, cat.Metadata.UniverseID)
	if err != nil {
		return err
	}
	slog.Info("fetched products", "local", cat.Len(), "remote", len(remotes))

	slog.Info("merging remote state into catalog", "overwrite", d.overwrite)
	Merge(cat, remotes, d.overwrite)

	if err := cat.Save(d.catalogPath); err != nil {
		return err
	}
	return cat.WriteLuau()
}

// Merge folds remote records into the catalog. Records are matched to local
// entries by remote id within their kind; unmatched records become new
// entries keyed by a slug of their canonical name.
func Merge(cat *catalog.Catalog, remotes []api.Remote, overwrite bool) {
	filters := cat.Metadata.Filters()
	for _, r := range remotes {
		mergeOne(cat, r, filters, overwrite)
	}
}

func mergeOne(cat *catalog.Catalog, r api.Remote, filters []*regexp.Regexp, overwrite bool) {
	remote := r.Product
	collection := cat.ByKind(r.Kind)

	var existingKey string
	var existing *catalog.Product
	if remote.ID != nil {
		existingKey, existing, _ = cat.FindByID(r.Kind, *remote.ID)
	}

	merged := &catalog.Product{
		ID:     remote.ID,
		Active: remote.Active,
	}

	if existing != nil && !overwrite {
		// Locally edited fields are sticky.
		merged.Name = catalog.Canonicalize(existing.Name, filters)
		merged.Prefix = existing.Prefix
		merged.Description = existing.Description
		merged.Price = existing.Price
		merged.Regional = existing.Regional
	} else {
		merged.Name = catalog.Canonicalize(remote.Name, filters)
		merged.Description = remote.Description
		merged.Price = remote.Price
		merged.Regional = remote.Regional
	}

	// The platform has no discount concept; a discount only survives when
	// the existing entry has one active.
	if existing != nil && existing.HasDiscount() {
		merged.Discount = existing.Discount
	}

	// Censorship guard: a redacted incoming description never replaces an
	// existing one, even under overwrite.
	if existing != nil && existing.Description != nil &&
		merged.Description != nil && catalog.IsCensored(*merged.Description) {
		merged.Description = existing.Description
	}

	merged.Normalize()

	key := existingKey
	if existing == nil {
		key = catalog.Slugify(merged.Name)
	}
	collection[key] = merged
}
