package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const luauHeader = "-- This file is automatically generated by rbxsync. Do not edit this file directly.\n" +
	"export type Product = { id: number, price: number }\n\n"

// WriteLuau regenerates the Luau export next to the catalog. It maps each
// product's effective title to its id and effective price, sorted by
// ascending id. No-op when no export path is configured.
func (c *Catalog) WriteLuau() error {
	if c.Metadata.LuauFile == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString(luauHeader)
	b.WriteString("return {\n\tGamepasses = {\n")
	writeLuauTable(&b, c.Gamepasses)
	b.WriteString("\t} :: {[string]: Product},\n\n\tProducts = {\n")
	writeLuauTable(&b, c.Products)
	b.WriteString("\t} :: {[string]: Product}\n}\n")

	if err := os.WriteFile(*c.Metadata.LuauFile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing luau export: %w", err)
	}
	return nil
}

func writeLuauTable(b *strings.Builder, products map[string]*Product) {
	entries := make([]*Product, 0, len(products))
	for _, p := range products {
		entries = append(entries, p)
	}
	sort.Slice(entries, func(i, j int) bool {
		return idOrZero(entries[i]) < idOrZero(entries[j])
	})

	for i, p := range entries {
		fmt.Fprintf(b, "\t\t[%q] = { id = %d, price = %d }", p.Title(), idOrZero(p), p.EffectivePrice())
		if i != len(entries)-1 {
			b.WriteString(",\n")
		} else {
			b.WriteString("\n")
		}
	}
}

func idOrZero(p *Product) uint64 {
	if p.ID == nil {
		return 0
	}
	return *p.ID
}
