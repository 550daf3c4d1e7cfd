package order

// AggregateItems collapses duplicate line items into quantity-counted groups.
// Items are grouped by (ShopID, OrderID, ProductID); the first occurrence
// becomes the representative with Quantity=1 and each further member of the
// group increments Quantity. All other representative fields are retained
// unchanged, duplicates of a product are assumed fungible.
//
// Output order follows first occurrence in the input.
func AggregateItems(items []OrderItem) []OrderItem {
	type key struct {
		shopID    string
		orderID   string
		productID string
	}

	index := make(map[key]int, len(items))
	grouped := make([]OrderItem, 0, len(items))

	for _, item := range items {
		k := key{item.ShopID, item.OrderID, item.ProductID}
		if i, ok := index[k]; ok {
			grouped[i].Quantity++
			continue
		}
		item.Quantity = 1
		index[k] = len(grouped)
		grouped = append(grouped, item)
	}

	return grouped
}
