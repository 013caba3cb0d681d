package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/orderstatus"
)

// OrderDal represents the order data access layer model.
type OrderDal struct {
	Id          string          `db:"id"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	TotalItems  int             `db:"total_items"`
	Status      string          `db:"status"`
	Paid        bool            `db:"paid"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// ToModel converts OrderDal to the service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	status, err := orderstatus.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:          o.Id,
		TotalAmount: o.TotalAmount,
		TotalItems:  o.TotalItems,
		Status:      status,
		Paid:        o.Paid,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		OrderItems:  []orderitem.OrderItem{},
	}, nil
}

var orderColumns = []string{
	"id",
	"total_amount",
	"total_items",
	"status",
	"paid",
	"created_at",
	"updated_at",
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert inserts a single order and returns the stored row.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (*order.Order, error) {
	query, args, err := r.sb.
		Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID,
			o.TotalAmount,
			o.TotalItems,
			o.Status.String(),
			o.Paid,
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	row := r.conn.QueryRow(ctx, query, args...)

	return scanOrder(row)
}

// GetByID retrieves an order by its id.
// Returns order.ErrOrderNotFound when no row matches.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	query, args, err := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	result, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}

		return nil, err
	}

	return result, nil
}

// Query retrieves a page of orders based on filter criteria.
func (r *PostgresOrderRepository) Query(
	ctx context.Context,
	filter *order.QueryOrdersModel,
) ([]order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC")

	if filter.Status != nil {
		query = query.Where(sq.Eq{"status": filter.Status.String()})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	result := []order.Order{}
	for rows.Next() {
		model, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Count counts orders matching the optional status filter.
func (r *PostgresOrderRepository) Count(
	ctx context.Context,
	status *orderstatus.Status,
) (int, error) {
	query := r.sb.Select("COUNT(*)").From("orders")

	if status != nil {
		query = query.Where(sq.Eq{"status": status.String()})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return count, nil
}

// UpdateStatus updates only the status column of an order and returns the
// updated row. Returns order.ErrOrderNotFound when no row matches.
func (r *PostgresOrderRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status orderstatus.Status,
) (*order.Order, error) {
	query, args, err := r.sb.
		Update("orders").
		Set("status", status.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}

		return nil, err
	}

	return result, nil
}

func columnList() string {
	return "id, total_amount, total_items, status, paid, created_at, updated_at"
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.TotalAmount,
		&dal.TotalItems,
		&dal.Status,
		&dal.Paid,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}

		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	return model, nil
}
