package ledger

import (
	"context"
)

// =============================================================================
// DEFAULT CATALOG - Starter data for a fresh install
// =============================================================================

type seedAccount struct {
	Name     string
	Kind     AccountKind
	Currency string
}

var defaultAccounts = []seedAccount{
	{"B1_BBVA", AccountBank, "PEN"},
	{"B1_BCP", AccountBank, "PEN"},
	{"Efectivo_Soles", AccountCash, "PEN"},
	{"Efectivo_Dolares", AccountCash, "USD"},
}

var defaultLocations = []string{"Marcavalle", "Amauta", "Garcilaso", "Hotel", "Oficina"}

var storeCategories = []string{
	"Adelanto", "Caja Chica", "Combustible", "Compra Tiendas", "Egreso", "Gas Tiendas",
}

var defaultCategories = map[string][]string{
	"Hotel": {
		"Adelanto", "Caja Chica", "Compra Dolares", "Devolución Huespedes",
		"Ingreso", "Venta Dolares", "Vuelto Dolares",
	},
	"Marcavalle": append(append([]string{}, storeCategories...), "Pan Sunat"),
	"Amauta":     storeCategories,
	"Garcilaso":  storeCategories,
	"Oficina": {
		"Adelanto", "Alquiler", "Caja Chica", "Compra Proveedores",
		"Faltante Oficina", "Gas Oficina", "Sobrante Oficina",
	},
}

// SeedResult counts what SeedDefaults created.
type SeedResult struct {
	Accounts   int
	Locations  int
	Categories int
	Skipped    bool
}

// SeedDefaults loads the starter catalog. It does nothing when any account
// or location already exists.
func SeedDefaults(ctx context.Context, c *Catalog) (SeedResult, error) {
	accounts, err := c.Store.ListAccounts(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	locations, err := c.Store.ListLocations(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	if len(accounts) > 0 || len(locations) > 0 {
		return SeedResult{Skipped: true}, nil
	}

	var res SeedResult
	for _, a := range defaultAccounts {
		if _, err := c.CreateAccount(ctx, a.Name, a.Kind, a.Currency); err != nil {
			return res, err
		}
		res.Accounts++
	}
	for _, name := range defaultLocations {
		loc, err := c.CreateLocation(ctx, name)
		if err != nil {
			return res, err
		}
		res.Locations++
		for _, cat := range defaultCategories[name] {
			if _, err := c.CreateCategory(ctx, cat, loc.ID, CategoryBoth); err != nil {
				return res, err
			}
			res.Categories++
		}
	}
	return res, nil
}
