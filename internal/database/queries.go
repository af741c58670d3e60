package database

// Order queries
const (
	GetOrderByLocalIDSQL = `
		SELECT id, number FROM orders WHERE local_id = $1`

	NextOrderSeqSQL = `
		INSERT INTO order_counters (day, seq) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq`

	InsertOrderSQL = `
		INSERT INTO orders (local_id, number, local_number, terminal_id, type, table_number,
			delivery_address, delivery_time, contact_number, server_name, subtotal, discount_type,
			discount, total, tendered, change_due, payment_method, payment_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (local_id) DO NOTHING
		RETURNING id`

	InsertOrderLineSQL = `
		INSERT INTO order_lines (order_id, line_id, item_id, name, pricing_mode, quantity,
			weight_kg, variant, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)
