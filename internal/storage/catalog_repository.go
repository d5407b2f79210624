package storage

import (
	"context"

	"github.com/slotline/slotline/internal/model"
	"github.com/slotline/slotline/libs/db"
)

// CatalogRepository covers the reference tables: providers, clients, services,
// and add-ons. Booking writes never mutate these; price changes here have no
// effect on already-captured appointment amounts.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, display_name, timezone, is_operator, is_active, buffer_minutes, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.DisplayName, &p.Timezone, &p.IsOperator, &p.IsActive, &p.BufferMinutes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *CatalogRepository) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, display_name, timezone, is_operator, is_active, buffer_minutes, created_at, updated_at
		FROM providers
		WHERE is_active
		ORDER BY display_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Timezone, &p.IsOperator, &p.IsActive, &p.BufferMinutes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (r *CatalogRepository) GetClient(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, display_name, email, created_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.DisplayName, &c.Email, &c.CreatedAt)
	return c, err
}

func (r *CatalogRepository) GetClients(ctx context.Context, ids []string) ([]model.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, display_name, email, created_at
		FROM clients
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *CatalogRepository) GetService(ctx context.Context, providerID, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, provider_id::text, name, duration_minutes, price_cents, is_active, created_at
		FROM services
		WHERE id = $1 AND provider_id = $2
	`, id, providerID).Scan(&s.ID, &s.ProviderID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive, &s.CreatedAt)
	return s, err
}

func (r *CatalogRepository) ListServices(ctx context.Context, providerID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, provider_id::text, name, duration_minutes, price_cents, is_active, created_at
		FROM services
		WHERE provider_id = $1 AND is_active
		ORDER BY name ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *CatalogRepository) GetServices(ctx context.Context, ids []string) ([]model.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, provider_id::text, name, duration_minutes, price_cents, is_active, created_at
		FROM services
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// ListAddOns returns the provider's add-ons restricted to ids when given, or
// all of them when ids is empty.
func (r *CatalogRepository) ListAddOns(ctx context.Context, providerID string, ids []string) ([]model.AddOn, error) {
	query := `
		SELECT id::text, provider_id::text, name, price_cents, created_at
		FROM add_ons
		WHERE provider_id = $1
		ORDER BY name ASC
	`
	args := []any{providerID}
	if len(ids) > 0 {
		query = `
			SELECT id::text, provider_id::text, name, price_cents, created_at
			FROM add_ons
			WHERE provider_id = $1 AND id = ANY($2)
			ORDER BY name ASC
		`
		args = append(args, ids)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addOns []model.AddOn
	for rows.Next() {
		var ao model.AddOn
		if err := rows.Scan(&ao.ID, &ao.ProviderID, &ao.Name, &ao.PriceCents, &ao.CreatedAt); err != nil {
			return nil, err
		}
		addOns = append(addOns, ao)
	}
	return addOns, rows.Err()
}
