package commerce

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/cart"
	"honnylove-backend/internal/store"
)

func (s *Service) GetCart(ctx context.Context, userID int64) (cart.CartResponse, error) {
	var lines []cart.Line
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		lines, err = tx.CartLines(ctx, userID)
		return err
	})
	if err != nil {
		return cart.CartResponse{}, apperr.Wrap(apperr.CodeInternal, err, "load cart")
	}
	return cart.NewCartResponse(lines), nil
}

// AddToCart increases the line quantity, refusing quantities above current stock.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, quantity int) (_ cart.CartResponse, err error) {
	ctx, done := s.begin(ctx, "add_to_cart", attribute.Int64("product.id", productID))
	defer done(&err)

	if quantity <= 0 {
		return cart.CartResponse{}, apperr.New(apperr.CodeValidation, "quantity must be positive")
	}
	var lines []cart.Line
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.CartQuantity(ctx, userID, productID)
		if err != nil {
			return err
		}
		if err := setCartLine(ctx, tx, userID, productID, current+quantity); err != nil {
			return err
		}
		lines, err = tx.CartLines(ctx, userID)
		return err
	})
	if err != nil {
		return cart.CartResponse{}, apperr.Wrap(apperr.CodeInternal, err, "add to cart")
	}
	return cart.NewCartResponse(lines), nil
}

// SetCartQuantity replaces the line quantity; zero removes the line.
func (s *Service) SetCartQuantity(ctx context.Context, userID, productID int64, quantity int) (_ cart.CartResponse, err error) {
	ctx, done := s.begin(ctx, "set_cart_quantity", attribute.Int64("product.id", productID))
	defer done(&err)

	if quantity < 0 {
		return cart.CartResponse{}, apperr.New(apperr.CodeValidation, "quantity must not be negative")
	}
	var lines []cart.Line
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if quantity == 0 {
			if _, err := tx.DeleteCartItem(ctx, userID, productID); err != nil {
				return err
			}
		} else if err := setCartLine(ctx, tx, userID, productID, quantity); err != nil {
			return err
		}
		var err error
		lines, err = tx.CartLines(ctx, userID)
		return err
	})
	if err != nil {
		return cart.CartResponse{}, apperr.Wrap(apperr.CodeInternal, err, "update cart")
	}
	return cart.NewCartResponse(lines), nil
}

func (s *Service) RemoveFromCart(ctx context.Context, userID, productID int64) (_ cart.CartResponse, err error) {
	ctx, done := s.begin(ctx, "remove_from_cart", attribute.Int64("product.id", productID))
	defer done(&err)

	var lines []cart.Line
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		removed, err := tx.DeleteCartItem(ctx, userID, productID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("cart item")
		}
		lines, err = tx.CartLines(ctx, userID)
		return err
	})
	if err != nil {
		return cart.CartResponse{}, apperr.Wrap(apperr.CodeInternal, err, "remove from cart")
	}
	return cart.NewCartResponse(lines), nil
}

func setCartLine(ctx context.Context, tx store.Tx, userID, productID int64, quantity int) error {
	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return apperr.Newf(apperr.CodeValidation, "product %d is not available", productID)
	}
	records, err := tx.ListStock(ctx, productID)
	if err != nil {
		return err
	}
	available := 0
	for _, rec := range records {
		if rec.LocationActive {
			available += rec.Quantity
		}
	}
	if quantity > available {
		return apperr.InsufficientStock(productID, quantity, available)
	}
	return tx.SetCartItem(ctx, userID, productID, quantity)
}
