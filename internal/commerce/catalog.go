package commerce

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/products"
	"honnylove-backend/internal/store"
)

func (s *Service) CreateProduct(ctx context.Context, actor Actor, in products.NewProduct) (_ *products.Product, err error) {
	ctx, done := s.begin(ctx, "create_product")
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := products.CheckPrices(in.Price, in.DiscountPrice); err != nil {
		return nil, apperr.New(apperr.CodeValidation, err.Error())
	}
	p := &products.Product{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		Active:        in.Active == nil || *in.Active,
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertProduct(ctx, p)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "insert product")
	}
	return p, nil
}

// UpdateProduct applies an allow-listed patch. Existing order lines keep the
// prices they were created with.
func (s *Service) UpdateProduct(ctx context.Context, actor Actor, id int64, patch products.Patch) (_ *products.Product, err error) {
	ctx, done := s.begin(ctx, "update_product", attribute.Int64("product.id", id))
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	if err := s.check(patch); err != nil {
		return nil, err
	}
	var updated *products.Product
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(p); err != nil {
			return apperr.New(apperr.CodeValidation, err.Error())
		}
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "update product")
	}
	return updated, nil
}

// GetProduct hides inactive products from non-staff callers.
func (s *Service) GetProduct(ctx context.Context, actor Actor, id int64) (*products.Product, error) {
	var p *products.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "get product")
	}
	if !p.Active && !actor.Staff {
		return nil, apperr.NotFound("product")
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, actor Actor) ([]products.Product, error) {
	var list []products.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		list, err = tx.ListProducts(ctx, !actor.Staff)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list products")
	}
	if list == nil {
		list = []products.Product{}
	}
	return list, nil
}
