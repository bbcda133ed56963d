package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	gosync "sync"

	"github.com/rbxkit/rbxsync/internal/api"
	"github.com/rbxkit/rbxsync/internal/catalog"
	"github.com/rbxkit/rbxsync/internal/diff"
)

// DefaultDiscountPrefix is the name template for discounted products; the
// {} slot receives the discount percentage.
const DefaultDiscountPrefix = "💲{}% OFF💲"

// ApplyDiscountPrefix prepends the resolved discount template to the product
// name when a discount is active. Applied to a working copy just before a
// create or update call, never to the stored catalog entry.
func ApplyDiscountPrefix(p *catalog.Product, template *string) {
	if !p.HasDiscount() {
		return
	}
	tpl := DefaultDiscountPrefix
	if template != nil {
		tpl = *template
	}
	resolved := strings.Replace(tpl, "{}", strconv.Itoa(int(*p.Discount)), 1)
	p.Name = resolved + " " + p.Name
}

// Uploader pushes local catalog state to the platform in two phases:
// creation of records without a remote id, then update of changed records.
type Uploader struct {
	api         *api.Client
	catalogPath string
	overwrite   bool
	confirm     Confirmer

	cat     *catalog.Catalog
	remotes []api.Remote
}

// NewUploader creates an uploader. With overwrite set, both phases skip
// interactive confirmation and treat every diff as accepted.
func NewUploader(client *api.Client, catalogPath string, overwrite bool, confirm Confirmer) *Uploader {
	return &Uploader{api: client, catalogPath: catalogPath, overwrite: overwrite, confirm: confirm}
}

// Run executes both phases. The catalog is persisted and re-exported even
// when a phase fails, before the error propagates.
func (u *Uploader) Run(ctx context.Context) error {
	cat, err := catalog.Load(u.catalogPath)
	if err != nil {
		return err
	}
	u.cat = cat

	slog.Info("fetching remote products", "universe", cat.Metadata.UniverseID)
	u.remotes, err = u.api.FetchAll(ctx, cat.Metadata.UniverseID)
	if err != nil {
		return err
	}
	slog.Info("fetched products", "local", cat.Len(), "remote", len(u.remotes))

	runErr := func() error {
		if err := u.createMissing(ctx); err != nil {
			return err
		}
		return u.pushModified(ctx)
	}()

	if err := u.cat.Save(u.catalogPath); err != nil {
		return err
	}
	if err := u.cat.WriteLuau(); err != nil {
		return err
	}

	if runErr != nil {
		slog.Error("upload failed", "error", runErr)
		return runErr
	}
	return nil
}

// pendingCreate identifies one local product without a remote id.
type pendingCreate struct {
	kind catalog.Kind
	key  string
}

func (u *Uploader) pendingCreates() []pendingCreate {
	var pending []pendingCreate
	for _, kind := range []catalog.Kind{catalog.KindDevProduct, catalog.KindGamePass} {
		collection := u.cat.ByKind(kind)
		keys := make([]string, 0, len(collection))
		for key, p := range collection {
			if p.ID == nil {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			pending = append(pending, pendingCreate{kind: kind, key: key})
		}
	}
	return pending
}

// createMissing creates every local product lacking a remote id. The batch
// needs a single confirmation; individual create failures are logged and
// skipped so one failure does not abort the rest.
func (u *Uploader) createMissing(ctx context.Context) error {
	pending := u.pendingCreates()
	if len(pending) == 0 {
		return nil
	}

	if !u.overwrite {
		ok, err := u.confirm.Confirm(fmt.Sprintf("Create %d product(s) that do not exist remotely?", len(pending)))
		if err != nil {
			return err
		}
		if !ok {
			slog.Info("skipping creation of missing remote products")
			return nil
		}
	}

	universeID := u.cat.Metadata.UniverseID
	slog.Info("creating missing remote products", "count", len(pending), "universe", universeID)

	// Creation calls for distinct products are independent; results are
	// committed afterwards in the original iteration order so id write-back
	// stays deterministic.
	ids := make([]*uint64, len(pending))
	var wg gosync.WaitGroup
	for i, pc := range pending {
		product := u.cat.ByKind(pc.kind)[pc.key].Clone()
		ApplyDiscountPrefix(product, u.cat.Metadata.DiscountPrefix)

		wg.Add(1)
		go func(i int, pc pendingCreate, product *catalog.Product) {
			defer wg.Done()
			id, err := u.api.Create(ctx, pc.kind, universeID, api.NewUpdateRequest(product))
			if err != nil {
				slog.Error("failed to create product",
					"kind", pc.kind, "name", product.Name, "error", err)
				return
			}
			slog.Info("created product", "kind", pc.kind, "name", product.Name, "id", id)
			ids[i] = &id
		}(i, pc, product)
	}
	wg.Wait()

	for i, pc := range pending {
		if ids[i] != nil {
			u.cat.ByKind(pc.kind)[pc.key].ID = ids[i]
		}
	}

	// Persist what succeeded regardless of per-item failures.
	if err := u.cat.Save(u.catalogPath); err != nil {
		return err
	}
	return u.cat.WriteLuau()
}

// ComputeDiffs builds the full diff set between id-carrying local products
// and the matching remote records, ordered for presentation. Local products
// whose id is unknown remotely are skipped as stale references.
func ComputeDiffs(cat *catalog.Catalog, remotes []api.Remote) []diff.ProductDiff {
	type ref struct {
		kind catalog.Kind
		id   uint64
	}
	index := make(map[ref]*catalog.Product, len(remotes))
	for _, r := range remotes {
		if r.Product.ID != nil {
			index[ref{r.Kind, *r.Product.ID}] = r.Product
		}
	}

	var diffs []diff.ProductDiff
	for _, kind := range []catalog.Kind{catalog.KindDevProduct, catalog.KindGamePass} {
		for _, local := range cat.ByKind(kind) {
			if local.ID == nil {
				continue
			}
			remote, ok := index[ref{kind, *local.ID}]
			if !ok {
				continue
			}
			if d := diff.Compute(kind, local, remote); d != nil {
				diffs = append(diffs, *d)
			}
		}
	}

	diff.Sort(diffs)
	return diffs
}

// pushModified diffs local against remote and updates confirmed records
// sequentially. Unlike creation, an update failure aborts the remaining
// queue; Run still persists the catalog before the error surfaces.
func (u *Uploader) pushModified(ctx context.Context) error {
	diffs := ComputeDiffs(u.cat, u.remotes)
	if len(diffs) == 0 {
		slog.Info("no differences between local catalog and remote state")
		return nil
	}

	var confirmed []diff.Confirmed
	if u.overwrite {
		confirmed, _ = AutoConfirmer{}.SelectDiffs(diffs)
	} else {
		var err error
		confirmed, err = u.confirm.SelectDiffs(diffs)
		if err != nil {
			return err
		}

		apply, err := u.confirm.Confirm("Apply sync?")
		if err != nil {
			return err
		}
		if !apply {
			slog.Info("sync aborted by operator")
			return nil
		}
	}

	if len(confirmed) == 0 {
		slog.Info("no changes confirmed")
		return nil
	}

	slog.Info("syncing products", "count", len(confirmed))
	universeID := u.cat.Metadata.UniverseID

	for _, c := range confirmed {
		_, local, ok := u.cat.FindByID(c.Kind, c.ID)
		if !ok {
			continue
		}

		product := local.Clone()
		ApplyDiscountPrefix(product, u.cat.Metadata.DiscountPrefix)

		if err := u.api.Update(ctx, c.Kind, universeID, c.ID, api.NewUpdateRequest(product)); err != nil {
			return fmt.Errorf("updating %s %q (id %d): %w", c.Kind, local.Name, c.ID, err)
		}
		slog.Info("synced product", "kind", c.Kind, "name", local.Name, "id", c.ID)
	}

	slog.Info("finished syncing products")
	return nil
}
