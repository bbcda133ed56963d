package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keys the engine owns and may remove from the file when their value
// becomes absent. Everything else in the document is left untouched.
var (
	ownedMetadataKeys = map[string]bool{
		"discount-prefix": true,
		"luau-file":       true,
		"name-filters":    true,
	}
	ownedProductKeys = map[string]bool{
		"id":               true,
		"prefix":           true,
		"description":      true,
		"discount":         true,
		"regional-pricing": true,
	}
)

// Load reads and parses the catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	if cat.Gamepasses == nil {
		cat.Gamepasses = make(map[string]*Product)
	}
	if cat.Products == nil {
		cat.Products = make(map[string]*Product)
	}

	// Reject bad filter patterns up front rather than mid-merge.
	if _, err := CompileFilters(cat.Metadata.NameFilters); err != nil {
		return nil, err
	}

	return &cat, nil
}

// Save writes the catalog back using a smart merge: the existing document is
// loaded as a node tree so comments, key order, and keys the engine does not
// own survive the write.
func (c *Catalog) Save(path string) error {
	out, err := c.render(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	return nil
}

func (c *Catalog) render(path string) ([]byte, error) {
	fresh, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling catalog: %w", err)
	}

	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fresh, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading existing catalog: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(existing, &doc); err != nil {
		return nil, fmt.Errorf("parsing existing catalog: %w", err)
	}

	var src yaml.Node
	if err := yaml.Unmarshal(fresh, &src); err != nil {
		return nil, fmt.Errorf("parsing rendered catalog: %w", err)
	}

	dstRoot := unwrapDocument(&doc)
	srcRoot := unwrapDocument(&src)
	if dstRoot == nil || dstRoot.Kind != yaml.MappingNode {
		return fresh, nil
	}

	mergeCatalogNodes(dstRoot, srcRoot)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling merged catalog: %w", err)
	}
	return out, nil
}

func unwrapDocument(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

// mergeCatalogNodes overlays the rendered catalog onto the existing document.
// The three engine-owned sections are merged structurally; any other
// top-level key is preserved as-is.
func mergeCatalogNodes(dst, src *yaml.Node) {
	mergeSection(dst, src, "metadata", func(d, s *yaml.Node) {
		mergeMapping(d, s, ownedMetadataKeys)
	})
	for _, section := range []string{"gamepasses", "products"} {
		mergeSection(dst, src, section, func(d, s *yaml.Node) {
			// Per-slug product tables. Slugs present locally are merged;
			// anything else in the file stays.
			for i := 0; i+1 < len(s.Content); i += 2 {
				slug := s.Content[i].Value
				idx := mappingIndex(d, slug)
				if idx < 0 {
					appendPair(d, s.Content[i], s.Content[i+1])
					continue
				}
				if existing := d.Content[idx+1]; existing.Kind == yaml.MappingNode {
					mergeMapping(existing, s.Content[i+1], ownedProductKeys)
				} else {
					d.Content[idx+1] = s.Content[i+1]
				}
			}
		})
	}
}

func mergeSection(dst, src *yaml.Node, key string, merge func(d, s *yaml.Node)) {
	srcVal := mappingValue(src, key)
	if srcVal == nil {
		return
	}
	dstVal := mappingValue(dst, key)
	if dstVal == nil || dstVal.Kind != yaml.MappingNode {
		appendPair(dst, scalarKey(key), srcVal)
		return
	}
	merge(dstVal, srcVal)
}

// mergeMapping overlays src keys onto dst, preserving dst order and unknown
// dst keys, then prunes owned keys that src no longer carries.
func mergeMapping(dst, src *yaml.Node, owned map[string]bool) {
	srcKeys := make(map[string]*yaml.Node, len(src.Content)/2)
	for i := 0; i+1 < len(src.Content); i += 2 {
		srcKeys[src.Content[i].Value] = src.Content[i+1]
	}

	seen := make(map[string]bool)
	kept := dst.Content[:0]
	for i := 0; i+1 < len(dst.Content); i += 2 {
		key := dst.Content[i].Value
		val, inSrc := srcKeys[key]
		if inSrc {
			dst.Content[i+1] = val
			seen[key] = true
		} else if owned[key] {
			continue // value became absent, drop the pair
		}
		kept = append(kept, dst.Content[i], dst.Content[i+1])
	}
	dst.Content = kept

	for i := 0; i+1 < len(src.Content); i += 2 {
		if !seen[src.Content[i].Value] {
			appendPair(dst, src.Content[i], src.Content[i+1])
		}
	}
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if i := mappingIndex(m, key); i >= 0 {
		return m.Content[i+1]
	}
	return nil
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func appendPair(m *yaml.Node, key, value *yaml.Node) {
	m.Content = append(m.Content, key, value)
}

func scalarKey(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}
