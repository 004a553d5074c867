package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/menuboard/internal/model"
)

// ListProducts возвращает товары арендатора.
func (r *PostgresRepository) ListProducts(ctx context.Context, tenantID uuid.UUID) ([]model.Product, error) {
	var res []model.Product
	err := r.withRetry(ctx, func() error {
		res = nil
		rows, err := r.pool.Query(ctx,
			`SELECT id, tenant_id, name, category, price::text, is_active, in_stock
			 FROM products
			 WHERE tenant_id = $1
			 ORDER BY category, name`,
			tenantID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				p     model.Product
				price string
			)
			if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Category, &price, &p.IsActive, &p.InStock); err != nil {
				return fmt.Errorf("scan product: %w", err)
			}
			if p.Price, err = parseDecimal(price); err != nil {
				return err
			}
			res = append(res, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return res, nil
}

// CreateProduct создаёт товар и возвращает его идентификатор.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (tenant_id, name, category, price, is_active, in_stock)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.TenantID, p.Name, p.Category, p.Price.String(), p.IsActive, p.InStock,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// UpdateProduct обновляет товар арендатора.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p model.Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET name = $3, category = $4, price = $5, is_active = $6, in_stock = $7, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		p.ID, p.TenantID, p.Name, p.Category, p.Price.String(), p.IsActive, p.InStock,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct удаляет товар арендатора.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "products", tenantID, id)
}

// ExternalProduct описывает товар, полученный из внешнего источника цен.
type ExternalProduct struct {
	ExternalID string
	Name       string
	Category   string
	Price      decimal.Decimal
	IsActive   bool
	InStock    bool
}

// UpsertExternalProducts сохраняет товары внешнего источника и возвращает число изменённых строк.
func (r *PostgresRepository) UpsertExternalProducts(ctx context.Context, tenantID uuid.UUID, products []ExternalProduct) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	var affected int64
	err := r.withRetry(ctx, func() error {
		affected = 0
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(
				`INSERT INTO products (tenant_id, external_id, name, category, price, is_active, in_stock)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (tenant_id, external_id) DO UPDATE
				 SET name = EXCLUDED.name, category = EXCLUDED.category, price = EXCLUDED.price,
				     is_active = EXCLUDED.is_active, in_stock = EXCLUDED.in_stock, updated_at = now()
				 WHERE (products.name, products.category, products.price, products.is_active, products.in_stock)
				       IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.category, EXCLUDED.price, EXCLUDED.is_active, EXCLUDED.in_stock)`,
				tenantID, p.ExternalID, p.Name, p.Category, p.Price.String(), p.IsActive, p.InStock,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range products {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("upsert product: %w", err)
			}
			affected += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// ListBundles возвращает наборы арендатора вместе с составом.
func (r *PostgresRepository) ListBundles(ctx context.Context, tenantID uuid.UUID) ([]model.Bundle, error) {
	var res []model.Bundle
	err := r.withRetry(ctx, func() error {
		res = nil
		rows, err := r.pool.Query(ctx,
			`SELECT id, tenant_id, name, kind, bundle_price::text, is_active, created_at
			 FROM bundles
			 WHERE tenant_id = $1
			 ORDER BY created_at`,
			tenantID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			b, err := scanBundle(rows)
			if err != nil {
				return err
			}
			res = append(res, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}

	for i := range res {
		if err := r.loadBundleParts(ctx, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// GetBundle возвращает набор арендатора вместе с составом.
func (r *PostgresRepository) GetBundle(ctx context.Context, tenantID, id uuid.UUID) (*model.Bundle, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, kind, bundle_price::text, is_active, created_at
		 FROM bundles
		 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)

	b, err := scanBundle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := r.loadBundleParts(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBundle(row pgx.Row) (model.Bundle, error) {
	var (
		b     model.Bundle
		kind  string
		price string
	)
	if err := row.Scan(&b.ID, &b.TenantID, &b.Name, &kind, &price, &b.IsActive, &b.CreatedAt); err != nil {
		return b, fmt.Errorf("scan bundle: %w", err)
	}
	b.Kind = model.BundleKind(kind)

	var err error
	if b.BundlePrice, err = parseDecimal(price); err != nil {
		return b, err
	}
	return b, nil
}

func (r *PostgresRepository) loadBundleParts(ctx context.Context, b *model.Bundle) error {
	items, err := r.pool.Query(ctx,
		`SELECT product_id, weight, quantity FROM bundle_items WHERE bundle_id = $1 ORDER BY product_id`,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("select bundle items: %w", err)
	}
	b.Items, err = pgx.CollectRows(items, func(row pgx.CollectableRow) (model.BundleItem, error) {
		var it model.BundleItem
		err := row.Scan(&it.ProductID, &it.Weight, &it.Quantity)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("scan bundle items: %w", err)
	}

	reqs, err := r.pool.Query(ctx,
		`SELECT category, quantity, weight FROM bundle_requirements WHERE bundle_id = $1 ORDER BY category`,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("select bundle requirements: %w", err)
	}
	b.Requirements, err = pgx.CollectRows(reqs, func(row pgx.CollectableRow) (model.CategoryRequirement, error) {
		var req model.CategoryRequirement
		err := row.Scan(&req.Category, &req.Quantity, &req.Weight)
		return req, err
	})
	if err != nil {
		return fmt.Errorf("scan bundle requirements: %w", err)
	}

	return nil
}

// CreateBundle сохраняет набор и его состав в одной транзакции.
func (r *PostgresRepository) CreateBundle(ctx context.Context, b model.Bundle) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO bundles (tenant_id, name, kind, bundle_price, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		b.TenantID, b.Name, string(b.Kind), b.BundlePrice.String(), b.IsActive,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert bundle: %w", err)
	}

	for _, it := range b.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO bundle_items (bundle_id, product_id, weight, quantity) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (bundle_id, product_id) DO NOTHING`,
			id, it.ProductID, it.Weight, it.Quantity,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert bundle item: %w", err)
		}
	}

	for _, req := range b.Requirements {
		_, err = tx.Exec(ctx,
			`INSERT INTO bundle_requirements (bundle_id, category, quantity, weight) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (bundle_id, category) DO UPDATE SET quantity = bundle_requirements.quantity + EXCLUDED.quantity`,
			id, req.Category, req.Quantity, req.Weight,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert bundle requirement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit tx: %w", err)
	}
	return id, nil
}

// DeleteBundle удаляет набор арендатора вместе с составом.
func (r *PostgresRepository) DeleteBundle(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "bundles", tenantID, id)
}
