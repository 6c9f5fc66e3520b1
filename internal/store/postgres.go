package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Postgres implements Store on database/sql with the lib/pq driver.
type Postgres struct {
	db *sql.DB
	q  querier
	tx bool
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, q: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Store) error) error {
	if p.tx {
		return fn(p)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Postgres{db: p.db, q: tx, tx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func classify(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	err := p.q.QueryRowContext(ctx,
		`INSERT INTO users (email, password, role) VALUES ($1, $2, $3) RETURNING id, created_at`,
		user.Email, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return classify(err, "create user")
	}
	return nil
}

const userColumns = `id, email, password, role, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id int) (*models.User, error) {
	u, err := scanUser(p.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get user")
	}
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(p.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		return nil, classify(err, "get user by email")
	}
	return u, nil
}

func (p *Postgres) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	err := p.q.QueryRowContext(ctx,
		`INSERT INTO customers (name, last_name, phone, user_id) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		customer.Name, customer.LastName, customer.Phone, customer.UserID,
	).Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		return classify(err, "create customer")
	}
	return nil
}

const customerWithUser = `
	SELECT c.id, c.name, c.last_name, c.phone, c.user_id, c.created_at,
	       u.id, u.email, u.role, u.created_at
	FROM customers c
	JOIN users u ON u.id = c.user_id`

func scanCustomer(row interface{ Scan(...interface{}) error }) (*models.Customer, error) {
	c := &models.Customer{User: &models.User{}}
	err := row.Scan(&c.ID, &c.Name, &c.LastName, &c.Phone, &c.UserID, &c.CreatedAt,
		&c.User.ID, &c.User.Email, &c.User.Role, &c.User.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Postgres) GetCustomer(ctx context.Context, id int) (*models.Customer, error) {
	c, err := scanCustomer(p.q.QueryRowContext(ctx, customerWithUser+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, classify(err, "get customer")
	}
	return c, nil
}

func (p *Postgres) GetCustomerByUser(ctx context.Context, userID int) (*models.Customer, error) {
	c, err := scanCustomer(p.q.QueryRowContext(ctx, customerWithUser+` WHERE c.user_id = $1`, userID))
	if err != nil {
		return nil, classify(err, "get customer by user")
	}
	return c, nil
}

func (p *Postgres) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	rows, err := p.q.QueryContext(ctx, customerWithUser+` ORDER BY c.id`)
	if err != nil {
		return nil, classify(err, "list customers")
	}
	defer rows.Close()

	customers := make([]models.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, classify(err, "scan customer")
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (p *Postgres) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	res, err := p.q.ExecContext(ctx,
		`UPDATE customers SET name = $1, last_name = $2, phone = $3, user_id = $4 WHERE id = $5`,
		customer.Name, customer.LastName, customer.Phone, customer.UserID, customer.ID)
	if err != nil {
		return classify(err, "update customer")
	}
	return expectOneRow(res, "update customer")
}

func (p *Postgres) DeleteCustomer(ctx context.Context, id int) error {
	res, err := p.q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete customer")
	}
	return expectOneRow(res, "delete customer")
}

func (p *Postgres) CreateCategory(ctx context.Context, category *models.Category) error {
	err := p.q.QueryRowContext(ctx,
		`INSERT INTO categories (name, image) VALUES ($1, $2) RETURNING id, created_at`,
		category.Name, category.Image,
	).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return classify(err, "create category")
	}
	return nil
}

func (p *Postgres) GetCategory(ctx context.Context, id int) (*models.Category, error) {
	c := &models.Category{}
	err := p.q.QueryRowContext(ctx, `SELECT id, name, image, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Image, &c.CreatedAt)
	if err != nil {
		return nil, classify(err, "get category")
	}
	return c, nil
}

func (p *Postgres) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := p.q.QueryContext(ctx, `SELECT id, name, image, created_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, classify(err, "list categories")
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Image, &c.CreatedAt); err != nil {
			return nil, classify(err, "scan category")
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (p *Postgres) CreateProduct(ctx context.Context, product *models.Product) error {
	err := p.q.QueryRowContext(ctx,
		`INSERT INTO products (name, price, image, description, category_id) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		product.Name, product.Price, product.Image, product.Description, product.CategoryID,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return classify(err, "create product")
	}
	return nil
}

const productColumns = `id, name, price, image, description, category_id, created_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	pr := &models.Product{}
	err := row.Scan(&pr.ID, &pr.Name, &pr.Price, &pr.Image, &pr.Description, &pr.CategoryID, &pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func (p *Postgres) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	pr, err := scanProduct(p.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get product")
	}
	return pr, nil
}

func (p *Postgres) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []interface{}{}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		query += fmt.Sprintf(` WHERE category_id = $%d`, len(args))
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list products")
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		pr, err := scanProduct(rows)
		if err != nil {
			return nil, classify(err, "scan product")
		}
		products = append(products, *pr)
	}
	return products, rows.Err()
}

func (p *Postgres) CreateOrder(ctx context.Context, order *models.Order) error {
	err := p.q.QueryRowContext(ctx,
		`INSERT INTO orders (customer_id) VALUES ($1) RETURNING id, created_at`,
		order.CustomerID,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return classify(err, "create order")
	}
	return nil
}

func (p *Postgres) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	o := &models.Order{}
	err := p.q.QueryRowContext(ctx, `SELECT id, customer_id, created_at FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.CustomerID, &o.CreatedAt)
	if err != nil {
		return nil, classify(err, "get order")
	}
	return o, nil
}

func (p *Postgres) UpdateOrder(ctx context.Context, order *models.Order) error {
	res, err := p.q.ExecContext(ctx, `UPDATE orders SET customer_id = $1 WHERE id = $2`, order.CustomerID, order.ID)
	if err != nil {
		return classify(err, "update order")
	}
	return expectOneRow(res, "update order")
}

func (p *Postgres) DeleteOrder(ctx context.Context, id int) error {
	res, err := p.q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete order")
	}
	return expectOneRow(res, "delete order")
}

func (p *Postgres) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	err := p.q.QueryRowContext(ctx,
		`INSERT INTO orders_products (order_id, product_id, amount) VALUES ($1, $2, $3) RETURNING id, created_at`,
		item.OrderID, item.ProductID, item.Amount,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return classify(err, "create order item")
	}
	return nil
}

const hydratedOrders = `
	SELECT o.id, o.customer_id, o.created_at,
	       c.id, c.name, c.last_name, c.phone, c.user_id, c.created_at,
	       u.id, u.email, u.role, u.created_at
	FROM orders o
	JOIN customers c ON c.id = o.customer_id
	JOIN users u ON u.id = c.user_id`

func scanHydratedOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	o := &models.Order{Customer: &models.Customer{User: &models.User{}}}
	c := o.Customer
	err := row.Scan(&o.ID, &o.CustomerID, &o.CreatedAt,
		&c.ID, &c.Name, &c.LastName, &c.Phone, &c.UserID, &c.CreatedAt,
		&c.User.ID, &c.User.Email, &c.User.Role, &c.User.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Items = make([]models.OrderLine, 0)
	return o, nil
}

func (p *Postgres) FindOrder(ctx context.Context, id int) (*models.Order, error) {
	o, err := scanHydratedOrder(p.q.QueryRowContext(ctx, hydratedOrders+` WHERE o.id = $1`, id))
	if err != nil {
		return nil, classify(err, "find order")
	}
	if err := p.attachLines(ctx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (p *Postgres) FindOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := hydratedOrders
	args := []interface{}{}
	if filter.UserID != 0 {
		query += ` WHERE u.id = $1`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY o.created_at DESC, o.id DESC`

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "find orders")
	}
	defer rows.Close()

	var refs []*models.Order
	for rows.Next() {
		o, err := scanHydratedOrder(rows)
		if err != nil {
			return nil, classify(err, "scan order")
		}
		refs = append(refs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "find orders")
	}

	if err := p.attachLines(ctx, refs); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(refs))
	for _, o := range refs {
		orders = append(orders, *o)
	}
	return orders, nil
}

// attachLines loads the product lines of every order in one round trip.
func (p *Postgres) attachLines(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, int64(o.ID))
	}

	rows, err := p.q.QueryContext(ctx, `
		SELECT op.id, op.order_id, op.product_id, op.amount, op.created_at,
		       p.name, p.price, p.image, p.description
		FROM orders_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id = ANY($1)
		ORDER BY op.id`, pq.Array(ids))
	if err != nil {
		return classify(err, "load order items")
	}
	defer rows.Close()

	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Amount, &line.CreatedAt,
			&line.Name, &line.Price, &line.Image, &line.Description)
		if err != nil {
			return classify(err, "scan order item")
		}
		if o, ok := byID[line.OrderID]; ok {
			o.Items = append(o.Items, line)
		}
	}
	if err := rows.Err(); err != nil {
		return classify(err, "load order items")
	}

	for _, o := range orders {
		o.ComputeTotals()
	}
	return nil
}
