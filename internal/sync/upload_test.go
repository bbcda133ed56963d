package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"

	"github.com/rbxkit/rbxsync/internal/api"
	"github.com/rbxkit/rbxsync/internal/catalog"
	"github.com/rbxkit/rbxsync/internal/diff"
	"github.com/rbxkit/rbxsync/internal/httpclient"
)

// fakeConfirmer scripts confirmation answers and records prompts.
type fakeConfirmer struct {
	answers []bool
	prompts []string
	selects func([]diff.ProductDiff) []diff.Confirmed
}

func (f *fakeConfirmer) Confirm(prompt string) (bool, error) {
	f.prompts = append(f.prompts, prompt)
	if len(f.answers) == 0 {
		return true, nil
	}
	ans := f.answers[0]
	f.answers = f.answers[1:]
	return ans, nil
}

func (f *fakeConfirmer) SelectDiffs(diffs []diff.ProductDiff) ([]diff.Confirmed, error) {
	if f.selects != nil {
		return f.selects(diffs), nil
	}
	confirmed := make([]diff.Confirmed, len(diffs))
	for i, d := range diffs {
		confirmed[i] = diff.Confirmed{Kind: d.Kind, ID: d.ID}
	}
	return confirmed, nil
}

// platformStub is an in-memory stand-in for the two monetization endpoints.
type platformStub struct {
	passes   []api.GamePass
	products []api.DevProduct

	nextID     atomic.Uint64
	failCreate func(name string) bool
	failPatch  bool

	mu      gosync.Mutex
	creates []map[string]string
	patches map[uint64]map[string]string
}

func (s *platformStub) handler(t *testing.T) http.Handler {
	s.nextID.Store(1000)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/game-passes/creator"):
			json.NewEncoder(w).Encode(map[string]any{"gamePasses": s.passes})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/developer-products/creator"):
			json.NewEncoder(w).Encode(map[string]any{"developerProducts": s.products})
		case r.Method == http.MethodPost:
			form := parseForm(t, r)
			if s.failCreate != nil && s.failCreate(form["name"]) {
				http.Error(w, "creation refused", http.StatusBadRequest)
				return
			}
			s.mu.Lock()
			s.creates = append(s.creates, form)
			s.mu.Unlock()
			id := s.nextID.Add(1)
			if strings.Contains(r.URL.Path, "game-passes") {
				json.NewEncoder(w).Encode(api.GamePass{GamePassID: id, Name: form["name"]})
			} else {
				json.NewEncoder(w).Encode(api.DevProduct{ProductID: id, Name: form["name"]})
			}
		case r.Method == http.MethodPatch:
			if s.failPatch {
				http.Error(w, "update refused", http.StatusBadRequest)
				return
			}
			seg := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			id, err := strconv.ParseUint(seg, 10, 64)
			if err != nil {
				t.Errorf("unparseable id in %s", r.URL.Path)
			}
			s.mu.Lock()
			if s.patches == nil {
				s.patches = make(map[uint64]map[string]string)
			}
			s.patches[id] = parseForm(t, r)
			s.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func parseForm(t *testing.T, r *http.Request) map[string]string {
	t.Helper()
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	form := make(map[string]string)
	for k, v := range r.MultipartForm.Value {
		form[k] = v[0]
	}
	return form
}

func setupUploader(t *testing.T, cat *catalog.Catalog, stub *platformStub, overwrite bool, confirm Confirmer) (*Uploader, string) {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "products.yaml")
	if err := cat.Save(path); err != nil {
		t.Fatalf("seeding catalog: %v", err)
	}

	client := api.New(httpclient.New(), srv.URL, 100)
	return NewUploader(client, path, overwrite, confirm), path
}

func TestApplyDiscountPrefix(t *testing.T) {
	custom := "SALE {}%:"
	tests := []struct {
		name     string
		product  catalog.Product
		template *string
		want     string
	}{
		{"no discount untouched", catalog.Product{Name: "VIP"}, nil, "VIP"},
		{"default template", catalog.Product{Name: "VIP", Discount: u8Ptr(20)}, nil, "💲20% OFF💲 VIP"},
		{"custom template", catalog.Product{Name: "VIP", Discount: u8Ptr(50)}, &custom, "SALE 50%: VIP"},
		{"zero discount untouched", catalog.Product{Name: "VIP", Discount: u8Ptr(0)}, nil, "VIP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.product
			ApplyDiscountPrefix(&p, tt.template)
			if p.Name != tt.want {
				t.Errorf("name = %q, want %q", p.Name, tt.want)
			}
		})
	}
}

func TestUploadCreatesMissingProducts(t *testing.T) {
	cat := newCatalog()
	cat.Products["coins"] = &catalog.Product{Name: "Coins", Active: true, Price: 10}
	cat.Gamepasses["vip"] = &catalog.Product{Name: "VIP", Active: true, Price: 250}

	stub := &platformStub{}
	confirm := &fakeConfirmer{}
	up, path := setupUploader(t, cat, stub, false, confirm)

	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(stub.creates) != 2 {
		t.Fatalf("server saw %d creates, want 2", len(stub.creates))
	}
	// Creation calls run concurrently; check the set of names.
	seen := map[string]bool{}
	for _, form := range stub.creates {
		seen[form["name"]] = true
	}
	if !seen["Coins"] || !seen["VIP"] {
		t.Errorf("created names = %v, want Coins and VIP", seen)
	}

	saved, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load after run: %v", err)
	}
	if saved.Products["coins"].ID == nil || saved.Gamepasses["vip"].ID == nil {
		t.Error("new remote ids not written back to the catalog")
	}
}

func TestUploadCreationDeclinedSkipsPhase(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["vip"] = &catalog.Product{Name: "VIP", Active: true, Price: 250}

	stub := &platformStub{}
	confirm := &fakeConfirmer{answers: []bool{false}}
	up, path := setupUploader(t, cat, stub, false, confirm)

	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stub.creates) != 0 {
		t.Errorf("declined batch still created %d products", len(stub.creates))
	}
	saved, _ := catalog.Load(path)
	if saved.Gamepasses["vip"].ID != nil {
		t.Error("declined product gained an id")
	}
}

func TestUploadPartialCreationFailure(t *testing.T) {
	cat := newCatalog()
	cat.Products["bad"] = &catalog.Product{Name: "Bad", Active: true, Price: 10}
	cat.Products["good"] = &catalog.Product{Name: "Good", Active: true, Price: 20}

	stub := &platformStub{failCreate: func(name string) bool { return name == "Bad" }}
	up, path := setupUploader(t, cat, stub, false, &fakeConfirmer{})

	// Per-item creation failures are logged and skipped, not fatal.
	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	saved, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load after run: %v", err)
	}
	if saved.Products["good"].ID == nil {
		t.Error("successful creation lost its id")
	}
	if saved.Products["bad"].ID != nil {
		t.Error("failed creation gained an id")
	}
}

func TestUploadPushesConfirmedChanges(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["vip"] = &catalog.Product{
		ID: uintPtr(100), Name: "VIP", Active: true, Price: 300,
	}

	stub := &platformStub{passes: []api.GamePass{
		{GamePassID: 100, Name: "VIP", IsForSale: true,
			PriceInformation: &api.PriceInformation{DefaultPriceInRobux: 250}},
	}}
	confirm := &fakeConfirmer{}
	up, _ := setupUploader(t, cat, stub, false, confirm)

	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	form, ok := stub.patches[100]
	if !ok {
		t.Fatalf("expected a patch for id 100, got %v", stub.patches)
	}
	if form["price"] != "300" || form["name"] != "VIP" {
		t.Errorf("patch form = %v", form)
	}
	if len(confirm.prompts) == 0 || confirm.prompts[len(confirm.prompts)-1] != "Apply sync?" {
		t.Errorf("prompts = %v, want final Apply sync?", confirm.prompts)
	}
}

func TestUploadSubsetConfirmation(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["vip"] = &catalog.Product{ID: uintPtr(100), Name: "VIP", Active: true, Price: 300}
	cat.Gamepasses["mega"] = &catalog.Product{ID: uintPtr(200), Name: "Mega", Active: true, Price: 600}

	stub := &platformStub{passes: []api.GamePass{
		{GamePassID: 100, Name: "VIP", IsForSale: true,
			PriceInformation: &api.PriceInformation{DefaultPriceInRobux: 250}},
		{GamePassID: 200, Name: "Mega", IsForSale: true,
			PriceInformation: &api.PriceInformation{DefaultPriceInRobux: 500}},
	}}
	confirm := &fakeConfirmer{selects: func(diffs []diff.ProductDiff) []diff.Confirmed {
		return []diff.Confirmed{{Kind: catalog.KindGamePass, ID: 200}}
	}}
	up, _ := setupUploader(t, cat, stub, false, confirm)

	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := stub.patches[100]; ok {
		t.Error("unconfirmed change was pushed")
	}
	if form, ok := stub.patches[200]; !ok || form["price"] != "600" {
		t.Errorf("confirmed change missing or wrong: %v", stub.patches)
	}
}

func TestUploadApplyDeclinedAbortsAll(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["vip"] = &catalog.Product{ID: uintPtr(100), Name: "VIP", Active: true, Price: 300}

	stub := &platformStub{passes: []api.GamePass{
		{GamePassID: 100, Name: "VIP", IsForSale: true,
			PriceInformation: &api.PriceInformation{DefaultPriceInRobux: 250}},
	}}
	confirm := &fakeConfirmer{answers: []bool{false}}
	up, _ := setupUploader(t, cat, stub, false, confirm)

	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stub.patches) != 0 {
		t.Errorf("declined sync still pushed %d updates", len(stub.patches))
	}
}

func TestUploadOverwriteSkipsConfirmation(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["vip"] = &catalog.Product{ID: uintPtr(100), Name: "VIP", Active: true, Price: 300}
	cat.Gamepasses["new"] = &catalog.Product{Name: "Brand New", Active: true, Price: 50}

	stub := &platformStub{passes: []api.GamePass{
		{GamePassID: 100, Name: "VIP", IsForSale: true,
			PriceInformation: &api.PriceInformation{DefaultPriceInRobux: 250}},
	}}
	confirm := &fakeConfirmer{}
	up, _ := setupUploader(t, cat, stub, true, confirm)

	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(confirm.prompts) != 0 {
		t.Errorf("overwrite mode still prompted: %v", confirm.prompts)
	}
	if len(stub.creates) != 1 || len(stub.patches) != 1 {
		t.Errorf("creates = %d, patches = %d; want 1 and 1", len(stub.creates), len(stub.patches))
	}
}

func TestUploadUpdateFailureStillPersists(t *testing.T) {
	cat := newCatalog()
	cat.Products["coins"] = &catalog.Product{Name: "Coins", Active: true, Price: 10}
	cat.Gamepasses["vip"] = &catalog.Product{ID: uintPtr(100), Name: "VIP", Active: true, Price: 300}

	stub := &platformStub{
		failPatch: true,
		passes: []api.GamePass{
			{GamePassID: 100, Name: "VIP", IsForSale: true,
				PriceInformation: &api.PriceInformation{DefaultPriceInRobux: 250}},
		},
	}
	up, path := setupUploader(t, cat, stub, false, &fakeConfirmer{})

	err := up.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failed update")
	}
	if !strings.Contains(err.Error(), "id 100") {
		t.Errorf("error %q does not name the failed record", err)
	}

	// Ids gained in the creation phase survive the failed update phase.
	saved, loadErr := catalog.Load(path)
	if loadErr != nil {
		t.Fatalf("Load after run: %v", loadErr)
	}
	if saved.Products["coins"].ID == nil {
		t.Error("created id lost after update failure")
	}
}

func TestUploadDiscountPrefixOnWire(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["vip"] = &catalog.Product{
		ID: uintPtr(100), Name: "VIP", Active: true, Price: 1000, Discount: u8Ptr(20),
	}

	stub := &platformStub{passes: []api.GamePass{
		{GamePassID: 100, Name: "VIP", IsForSale: true,
			PriceInformation: &api.PriceInformation{DefaultPriceInRobux: 1000}},
	}}
	up, path := setupUploader(t, cat, stub, false, &fakeConfirmer{})

	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	form, ok := stub.patches[100]
	if !ok {
		t.Fatalf("expected a patch for id 100, got %v", stub.patches)
	}
	if form["name"] != "💲20% OFF💲 VIP" {
		t.Errorf("wire name = %q, want the discount template applied", form["name"])
	}
	if form["price"] != "800" {
		t.Errorf("wire price = %q, want discounted 800", form["price"])
	}

	// The stored catalog keeps the raw name.
	saved, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load after run: %v", err)
	}
	if saved.Gamepasses["vip"].Name != "VIP" {
		t.Errorf("stored name = %q, discount prefix must not persist", saved.Gamepasses["vip"].Name)
	}
}

func TestComputeDiffsSkipsStaleIDs(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["gone"] = &catalog.Product{ID: uintPtr(999), Name: "Gone", Active: true, Price: 10}
	cat.Gamepasses["vip"] = &catalog.Product{ID: uintPtr(100), Name: "VIP", Active: true, Price: 300}

	remotes := []api.Remote{remotePass(100, "VIP", 250)}
	diffs := ComputeDiffs(cat, remotes)

	if len(diffs) != 1 || diffs[0].ID != 100 {
		t.Errorf("diffs = %+v, want only id 100", diffs)
	}
}

func TestComputeDiffsOrdering(t *testing.T) {
	cat := newCatalog()
	cat.Gamepasses["vip"] = &catalog.Product{ID: uintPtr(5), Name: "VIP", Active: true, Price: 300}
	cat.Products["coins"] = &catalog.Product{ID: uintPtr(9), Name: "Coins", Active: true, Price: 20}

	desc := ""
	remotes := []api.Remote{
		remotePass(5, "VIP", 250),
		{Kind: catalog.KindDevProduct, Product: &catalog.Product{
			ID: uintPtr(9), Name: "Coins", Description: &desc, Active: true, Price: 10,
		}},
	}

	diffs := ComputeDiffs(cat, remotes)
	if len(diffs) != 2 {
		t.Fatalf("got %d diffs, want 2", len(diffs))
	}
	if diffs[0].Kind != catalog.KindDevProduct || diffs[1].Kind != catalog.KindGamePass {
		t.Errorf("order = %v then %v, want products before passes", diffs[0].Kind, diffs[1].Kind)
	}
}
