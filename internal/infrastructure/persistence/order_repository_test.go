package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormOrderRepository_FindWithItems(t *testing.T) {
	t.Run("returns order with items", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormOrderRepository(db)

		orderRows := sqlmock.NewRows([]string{
			"shop_id", "order_id", "status", "packages_id",
			"recipient_name", "sub_total", "shipping_fee", "total_amount",
		}).AddRow("shop-1", "order-1", "AWAITING_SHIPMENT", "P1,P2",
			"Juan dela Cruz", "112.00", "10.00", "122.00")

		itemRows := sqlmock.NewRows([]string{
			"id", "shop_id", "order_id", "line_item_id",
			"product_id", "product_name", "original_price", "package_id",
		}).
			AddRow(1, "shop-1", "order-1", "L1", "prod-a", "Product A", "56.00", "P1").
			AddRow(2, "shop-1", "order-1", "L2", "prod-b", "Product B", "56.00", "P2")

		mock.ExpectQuery(`SELECT \* FROM "orders" WHERE shop_id = \$1 AND order_id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs("shop-1", "order-1", 1).
			WillReturnRows(orderRows)
		mock.ExpectQuery(`SELECT \* FROM "order_items"`).
			WillReturnRows(itemRows)

		ord, items, err := repo.FindWithItems(context.Background(), "shop-1", "order-1")

		require.NoError(t, err)
		require.NotNil(t, ord)
		assert.Equal(t, "order-1", ord.OrderID)
		assert.Equal(t, []string{"P1", "P2"}, ord.PackageIDs())
		require.Len(t, items, 2)
		assert.Equal(t, "prod-a", items[0].ProductID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent order is not an error", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormOrderRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "orders"`).
			WillReturnRows(sqlmock.NewRows([]string{"shop_id", "order_id"}))

		ord, items, err := repo.FindWithItems(context.Background(), "shop-1", "missing")

		require.NoError(t, err)
		assert.Nil(t, ord)
		assert.Nil(t, items)
	})

	t.Run("order without items is treated as not ready", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormOrderRepository(db)

		orderRows := sqlmock.NewRows([]string{"shop_id", "order_id", "status"}).
			AddRow("shop-1", "order-1", "AWAITING_SHIPMENT")

		mock.ExpectQuery(`SELECT \* FROM "orders"`).
			WillReturnRows(orderRows)
		mock.ExpectQuery(`SELECT \* FROM "order_items"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "order_id"}))

		ord, items, err := repo.FindWithItems(context.Background(), "shop-1", "order-1")

		require.NoError(t, err)
		assert.Nil(t, ord)
		assert.Nil(t, items)
	})
}
