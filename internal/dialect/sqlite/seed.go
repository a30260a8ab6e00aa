package sqlite

import (
	"context"
	"fmt"
	"math/rand/v2"

	"zombiezen.com/go/sqlite/sqlitex"
)

const sampleSchema = `
DROP TABLE IF EXISTS order_items;
DROP TABLE IF EXISTS orders;
DROP TABLE IF EXISTS products;
DROP TABLE IF EXISTS customers;

CREATE TABLE customers (
	customer_id INTEGER PRIMARY KEY,
	name TEXT,
	city TEXT
);

CREATE TABLE products (
	product_id INTEGER PRIMARY KEY,
	name TEXT,
	price REAL
);

CREATE TABLE orders (
	order_id INTEGER PRIMARY KEY,
	customer_id INTEGER,
	order_date TEXT,
	total REAL,
	FOREIGN KEY(customer_id) REFERENCES customers(customer_id)
);

CREATE TABLE order_items (
	order_item_id INTEGER PRIMARY KEY,
	order_id INTEGER,
	product_id INTEGER,
	quantity INTEGER,
	unit_price REAL,
	FOREIGN KEY(order_id) REFERENCES orders(order_id),
	FOREIGN KEY(product_id) REFERENCES products(product_id)
);
`

// SampleStats reports how many rows Seed inserted per table.
type SampleStats struct {
	Customers  int
	Products   int
	Orders     int
	OrderItems int
}

// Seed (re)creates the customers/products/orders/order_items sample schema and fills it
// with deterministic data.
func Seed(ctx context.Context, c *Conn) (stats SampleStats, err error) {
	defer c.conn.SetInterrupt(c.conn.SetInterrupt(ctx.Done()))

	if err := sqlitex.ExecuteScript(c.conn, sampleSchema, nil); err != nil {
		return stats, fmt.Errorf("sqlite: create sample schema: %w", err)
	}

	endFn, err := sqlitex.ImmediateTransaction(c.conn)
	if err != nil {
		return stats, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer endFn(&err)

	exec := func(query string, args ...any) error {
		return sqlitex.Execute(c.conn, query, &sqlitex.ExecOptions{Args: args})
	}

	for i := 1; i <= 200; i++ {
		if err = exec("INSERT INTO customers(customer_id, name, city) VALUES (?, ?, ?)",
			i, fmt.Sprintf("Cust_%d", i), fmt.Sprintf("City_%d", i%10+1)); err != nil {
			return stats, fmt.Errorf("sqlite: seed customers: %w", err)
		}
		stats.Customers++
	}

	for i := 1; i <= 500; i++ {
		if err = exec("INSERT INTO products(product_id, name, price) VALUES (?, ?, ?)",
			i, fmt.Sprintf("Prod_%d", i), 5.0+float64(i%20)*1.5); err != nil {
			return stats, fmt.Errorf("sqlite: seed products: %w", err)
		}
		stats.Products++
	}

	orderID := 1
	for cust := 1; cust <= 200; cust++ {
		for j := 0; j < cust%5+1; j++ {
			if err = exec("INSERT INTO orders(order_id, customer_id, order_date, total) VALUES (?, ?, ?, ?)",
				orderID, cust, fmt.Sprintf("2025-11-%02d", j%28+1), 0.0); err != nil {
				return stats, fmt.Errorf("sqlite: seed orders: %w", err)
			}
			orderID++
			stats.Orders++
		}
	}

	rng := rand.New(rand.NewPCG(42, 42))
	itemID := 1
	for order := 1; order < orderID; order++ {
		for k := 1; k <= order%6; k++ {
			pid := rng.IntN(500) + 1
			qty := rng.IntN(5) + 1
			if err = exec("INSERT INTO order_items(order_item_id, order_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)",
				itemID, order, pid, qty, 5.0+float64(pid%20)*1.5); err != nil {
				return stats, fmt.Errorf("sqlite: seed order_items: %w", err)
			}
			itemID++
			stats.OrderItems++
		}
	}

	err = exec(`UPDATE orders SET total = (
		SELECT SUM(quantity * unit_price) FROM order_items WHERE order_items.order_id = orders.order_id
	)`)
	if err != nil {
		return stats, fmt.Errorf("sqlite: seed totals: %w", err)
	}
	return stats, nil
}

// OpenSample opens an in-memory database seeded with the sample schema.
func OpenSample(ctx context.Context) (*Conn, error) {
	conn, err := OpenMemory()
	if err != nil {
		return nil, err
	}
	if _, err := Seed(ctx, conn); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return conn, nil
}
