package remote

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pos-terminal/internal/database"
	"pos-terminal/internal/models"
)

// PostgresStore writes orders through the shared pgx pool
type PostgresStore struct {
	db         *database.DB
	terminalID string
}

func NewPostgresStore(db *database.DB, terminalID string) *PostgresStore {
	return &PostgresStore{db: db, terminalID: terminalID}
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) (Receipt, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Receipt{}, classifyPostgres("failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	var number string
	err = tx.QueryRow(ctx, database.GetOrderByLocalIDSQL, order.LocalID).Scan(&id, &number)
	if err == nil {
		return receipt(id, number), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, classifyPostgres("failed to look up order", err)
	}

	day := order.CreatedAt.UTC().Truncate(24 * time.Hour)
	var seq int
	if err := tx.QueryRow(ctx, database.NextOrderSeqSQL, day).Scan(&seq); err != nil {
		return Receipt{}, classifyPostgres("failed to assign order number", err)
	}
	number = models.GenerateOrderNumber(order.CreatedAt.UTC(), seq)

	f := order.Fulfillment
	var reference *string
	if order.Payment.Reference != "" {
		reference = &order.Payment.Reference
	}
	var serverName *string
	if order.ServerName != "" {
		serverName = &order.ServerName
	}

	err = tx.QueryRow(ctx, database.InsertOrderSQL,
		order.LocalID, number, order.Number, s.terminalID, string(f.Type), f.TableNumber,
		f.DeliveryAddress, f.DeliveryTime, f.ContactNumber, serverName,
		order.Subtotal, string(order.DiscountType), order.Discount, order.Total,
		order.Tendered, order.Change, string(order.Payment.Method), reference, order.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent write of the same order won; return its receipt.
		tx.Rollback(ctx)
		return s.existing(ctx, order.LocalID)
	}
	if err != nil {
		return Receipt{}, classifyPostgres("failed to create order", err)
	}

	for _, line := range order.Lines {
		var variant *string
		if line.Variant != "" {
			variant = &line.Variant
		}
		if err := s.execLine(ctx, tx, id, line, variant); err != nil {
			return Receipt{}, classifyPostgres("failed to create order line", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, classifyPostgres("failed to commit order", err)
	}
	return receipt(id, number), nil
}

func (s *PostgresStore) execLine(ctx context.Context, tx pgx.Tx, orderID int64, line models.CartLine, variant *string) error {
	_, err := tx.Exec(ctx, database.InsertOrderLineSQL,
		orderID, line.ID, line.ItemID, line.Name, string(line.Mode), line.Quantity,
		line.WeightKg, variant, line.UnitPrice, line.LineTotal,
	)
	return err
}

func (s *PostgresStore) existing(ctx context.Context, localID string) (Receipt, error) {
	var id int64
	var number string
	if err := s.db.Pool.QueryRow(ctx, database.GetOrderByLocalIDSQL, localID).Scan(&id, &number); err != nil {
		return Receipt{}, classifyPostgres("failed to look up order", err)
	}
	return receipt(id, number), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return classifyPostgres("remote store unreachable", err)
	}
	return nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.db.Close()
	return nil
}

func receipt(id int64, number string) Receipt {
	return Receipt{AssignedID: strconv.FormatInt(id, 10), AssignedNumber: number}
}

// rejectedClasses are the SQLSTATE classes caused by the order itself.
// Everything else (auth, privileges, missing schema, server faults) is
// retried once the back office is fixed.
var rejectedClasses = map[string]bool{
	"22": true, // data exception
	"23": true, // integrity constraint violation
}

func classifyPostgres(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && rejectedClasses[pgErr.Code[:2]] {
		return models.NewValidationError(msg, err)
	}
	return models.NewNetworkError(msg, err)
}
