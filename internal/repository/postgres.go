// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с занятым именем.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductExists возвращается при попытке создать товар с занятым артикулом.
	ErrProductExists = errors.New("product already exists")
	// ErrProductNotFound возвращается, если товар с указанным артикулом не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается, если запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound возвращается, если реализация не найдена.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLinesNotEligible возвращается, если хотя бы одна строка продажи
	// не существует, уже включена в реализацию или принадлежит другому пользователю.
	ErrLinesNotEligible = errors.New("sales lines not eligible for order")
)

// Pagination задаёт запрошенную страницу списка.
type Pagination struct {
	Page    int
	PerPage int
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageInfo содержит итоговые количества для постраничного ответа.
type PageInfo struct {
	Pages int64
	Total int64
}

func pageInfoFor(total int64, perPage int) PageInfo {
	if perPage <= 0 {
		return PageInfo{Total: total}
	}
	pages := (total + int64(perPage) - 1) / int64(perPage)
	return PageInfo{Pages: pages, Total: total}
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Повторяем только конфликты сериализации и взаимные блокировки.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		break
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, username string, passwordHash []byte, permission model.Permission) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, permission) VALUES ($1, $2, $3) RETURNING id`,
		username, string(passwordHash), int64(permission),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByUsername возвращает пользователя по имени.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, permission FROM users WHERE username = $1`,
		username,
	)

	var (
		u          model.User
		hash       string
		permission int64
	)
	err := row.Scan(&u.ID, &u.Username, &hash, &permission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.PasswordHash = []byte(hash)
	u.Permission = model.Permission(permission)

	return &u, nil
}

// UpdateUser перезаписывает права и, если передан новый хеш, пароль пользователя.
func (r *PostgresRepository) UpdateUser(ctx context.Context, username string, passwordHash []byte, permission model.Permission) error {
	var (
		tag pgconn.CommandTag
		err error
	)

	if len(passwordHash) > 0 {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, permission = $3 WHERE username = $1`,
			username, string(passwordHash), int64(permission),
		)
	} else {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET permission = $2 WHERE username = $1`,
			username, int64(permission),
		)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ListUsers возвращает страницу пользователей с фильтром по подстроке имени
// и, если задан, по наличию битов прав.
func (r *PostgresRepository) ListUsers(ctx context.Context, keyword string, permission *model.Permission, p Pagination) ([]model.User, PageInfo, error) {
	where := []string{"TRUE"}
	args := []any{}

	if keyword != "" {
		args = append(args, "%"+keyword+"%")
		where = append(where, fmt.Sprintf("username ILIKE $%d", len(args)))
	}
	if permission != nil {
		args = append(args, int64(*permission))
		where = append(where, fmt.Sprintf("permission & $%d = $%d", len(args), len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE `+cond, args...,
	).Scan(&total)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("count users: %w", err)
	}

	args = append(args, p.PerPage, p.offset())
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, username, permission FROM users WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
			cond, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var (
			u    model.User
			perm int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &perm); err != nil {
			return nil, PageInfo{}, fmt.Errorf("scan user: %w", err)
		}
		u.Permission = model.Permission(perm)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, PageInfo{}, fmt.Errorf("rows error: %w", err)
	}

	return users, pageInfoFor(total, p.PerPage), nil
}

// CreateProduct создаёт новый товар каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, product model.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (name, article, description, price, quantity) VALUES ($1, $2, $3, $4, $5)`,
		product.Name, product.Article, product.Description, product.Price, product.Quantity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrProductExists, product.Article)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// UpdateProductByArticle перезаписывает поля товара с указанным артикулом.
func (r *PostgresRepository) UpdateProductByArticle(ctx context.Context, product model.Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET name = $2, description = $3, price = $4, quantity = $5 WHERE article = $1`,
		product.Article, product.Name, product.Description, product.Price, product.Quantity,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// GetProductByArticle возвращает товар по точному артикулу.
func (r *PostgresRepository) GetProductByArticle(ctx context.Context, article string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, article, description, price, quantity FROM products WHERE article = $1`,
		article,
	)

	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Article, &p.Description, &p.Price, &p.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// ListProducts возвращает страницу товаров. Ключевое слово ищется как
// подстрока без учёта регистра в названии или артикуле.
func (r *PostgresRepository) ListProducts(ctx context.Context, keyword string, p Pagination) ([]model.Product, PageInfo, error) {
	cond := "TRUE"
	args := []any{}

	if keyword != "" {
		args = append(args, "%"+keyword+"%")
		cond = "(name ILIKE $1 OR article ILIKE $1)"
	}

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE `+cond, args...,
	).Scan(&total)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("count products: %w", err)
	}

	args = append(args, p.PerPage, p.offset())
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, name, article, description, price, quantity FROM products WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
			cond, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var pr model.Product
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Article, &pr.Description, &pr.Price, &pr.Quantity); err != nil {
			return nil, PageInfo{}, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, pr)
	}

	if err := rows.Err(); err != nil {
		return nil, PageInfo{}, fmt.Errorf("rows error: %w", err)
	}

	return products, pageInfoFor(total, p.PerPage), nil
}

// CreateSalesRequest атомарно списывает остаток товара и создаёт строку продажи.
// Списание выполняется условным UPDATE с проверкой затронутых строк, поэтому
// остаток не может стать отрицательным при параллельных продажах.
func (r *PostgresRepository) CreateSalesRequest(ctx context.Context, userID int64, article string, quantity int64, price, income float64) (int64, error) {
	var id int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var productID int64
		err = tx.QueryRow(ctx,
			`SELECT id FROM products WHERE article = $1`,
			article,
		).Scan(&productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("select product: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2`,
			productID, quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInsufficientStock
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO sales_requests (user_id, product_id, price, income, quantity) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			userID, productID, price, income, quantity,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert sales request: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// ListOrders возвращает страницу реализаций с суммами по строкам продаж.
// Без административной области видимости выборка ограничена реализациями
// самого запрашивающего.
func (r *PostgresRepository) ListOrders(ctx context.Context, keyword string, requesterID int64, adminScope bool, p Pagination) ([]model.OrderSummary, PageInfo, error) {
	where := []string{"TRUE"}
	args := []any{}

	if keyword != "" {
		args = append(args, "%"+keyword+"%")
		where = append(where, fmt.Sprintf("u.username ILIKE $%d", len(args)))
	}
	if !adminScope {
		args = append(args, requesterID)
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM product_orders o JOIN users u ON u.id = o.user_id WHERE `+cond,
		args...,
	).Scan(&total)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, p.PerPage, p.offset())
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT o.id, o.realization_date, u.username, o.finished,
			COALESCE(SUM(s.price * s.quantity), 0),
			COALESCE(SUM(s.income * s.quantity), 0)
		 FROM product_orders o
		 JOIN users u ON u.id = o.user_id
		 LEFT JOIN sales_requests s ON s.product_order_id = o.id
		 WHERE %s
		 GROUP BY o.id, o.realization_date, u.username, o.finished
		 ORDER BY o.id DESC
		 LIMIT $%d OFFSET $%d`,
			cond, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.OrderSummary
	for rows.Next() {
		var o model.OrderSummary
		if err := rows.Scan(&o.ID, &o.Date, &o.Username, &o.Finished, &o.Price, &o.Income); err != nil {
			return nil, PageInfo{}, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, PageInfo{}, fmt.Errorf("rows error: %w", err)
	}

	return orders, pageInfoFor(total, p.PerPage), nil
}

// FinishOrder помечает реализацию завершённой. Повторный вызов для уже
// завершённой реализации перезаписывает тот же флаг и не является ошибкой.
func (r *PostgresRepository) FinishOrder(ctx context.Context, orderID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE product_orders SET finished = TRUE WHERE id = $1`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("finish order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// CreateOrder группирует свободные строки продаж в новую реализацию.
// Операция атомарна: строки блокируются FOR UPDATE, и если хотя бы одна
// не существует, уже занята или принадлежит другому пользователю
// (без административной области видимости), вся операция отменяется.
func (r *PostgresRepository) CreateOrder(ctx context.Context, requesterID int64, lineIDs []int64, adminScope bool) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, ErrLinesNotEligible
	}

	var orderID int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		rows, err := tx.Query(ctx,
			`SELECT id, user_id FROM sales_requests
			 WHERE id = ANY($1) AND product_order_id IS NULL
			 FOR UPDATE`,
			lineIDs,
		)
		if err != nil {
			return fmt.Errorf("lock sales requests: %w", err)
		}

		eligible := 0
		for rows.Next() {
			var id, ownerID int64
			if err := rows.Scan(&id, &ownerID); err != nil {
				rows.Close()
				return fmt.Errorf("scan sales request: %w", err)
			}
			if !adminScope && ownerID != requesterID {
				rows.Close()
				return ErrLinesNotEligible
			}
			eligible++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		if eligible != len(lineIDs) {
			return ErrLinesNotEligible
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO product_orders (finished, user_id, realization_date) VALUES (FALSE, $1, now()) RETURNING id`,
			requesterID,
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE sales_requests SET product_order_id = $1 WHERE id = ANY($2)`,
			orderID, lineIDs,
		)
		if err != nil {
			return fmt.Errorf("assign sales requests: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return orderID, nil
}

// ListUserSales возвращает строки продаж пользователя с названиями товаров.
func (r *PostgresRepository) ListUserSales(ctx context.Context, userID int64) ([]model.SalesItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, p.name, s.price, s.quantity, s.income
		 FROM sales_requests s
		 JOIN products p ON p.id = s.product_id
		 WHERE s.user_id = $1
		 ORDER BY s.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var items []model.SalesItem
	for rows.Next() {
		var it model.SalesItem
		if err := rows.Scan(&it.ID, &it.ProductName, &it.Price, &it.Quantity, &it.Income); err != nil {
			return nil, fmt.Errorf("scan sales item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetOrderReport возвращает данные реализации и её строки для печатной формы.
func (r *PostgresRepository) GetOrderReport(ctx context.Context, orderID int64) (*model.OrderReport, error) {
	report := &model.OrderReport{OrderID: orderID}

	err := r.pool.QueryRow(ctx,
		`SELECT realization_date FROM product_orders WHERE id = $1`,
		orderID,
	).Scan(&report.RealizationDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT p.name, p.article, s.quantity, s.price, s.income
		 FROM sales_requests s
		 JOIN products p ON p.id = s.product_id
		 WHERE s.product_order_id = $1
		 ORDER BY s.id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line model.OrderLine
		if err := rows.Scan(&line.Name, &line.Article, &line.Quantity, &line.Price, &line.Income); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		report.Lines = append(report.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return report, nil
}
