package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// Notification method types.
const (
	NotificationTypeEmail     = "EMAIL"
	NotificationTypeWebhook   = "WEBHOOK"
	NotificationTypePagerDuty = "PAGERDUTY"
)

var notificationTypes = []string{NotificationTypeEmail, NotificationTypeWebhook, NotificationTypePagerDuty}

// NotificationMethod is one row of notification_method.
type NotificationMethod struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Name      string    `db:"name"`
	Type      string    `db:"type"`
	Address   string    `db:"address"`
	Period    int       `db:"period"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Validate checks the fields a caller may set.
func (m NotificationMethod) Validate() error {
	if m.TenantID == "" {
		return fmt.Errorf("tenant id is required: %w", ingestgate.ErrInvalidUpdate)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required: %w", ingestgate.ErrInvalidUpdate)
	}
	if !slices.Contains(notificationTypes, m.Type) {
		return fmt.Errorf("invalid notification type %q: %w", m.Type, ingestgate.ErrInvalidUpdate)
	}
	if m.Address == "" {
		return fmt.Errorf("address is required: %w", ingestgate.ErrInvalidUpdate)
	}
	if m.Period < 0 {
		return fmt.Errorf("period must not be negative, got %d: %w", m.Period, ingestgate.ErrInvalidUpdate)
	}
	if m.Period != 0 && m.Type != NotificationTypeWebhook {
		return fmt.Errorf("period is only supported for %s methods: %w", NotificationTypeWebhook, ingestgate.ErrInvalidUpdate)
	}
	return nil
}

const notificationColumns = "id, tenant_id, name, type, address, period, created_at, updated_at"

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// NotificationMethodRepository stores notification methods through a Gateway.
type NotificationMethodRepository struct {
	g   *Gateway
	now func() time.Time
}

// NewNotificationMethodRepository creates a repository backed by g.
func NewNotificationMethodRepository(g *Gateway) *NotificationMethodRepository {
	return &NotificationMethodRepository{
		g:   g,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Create inserts m with a fresh id. A method with the same name for the
// tenant yields ErrAlreadyExists, also when a concurrent Create wins the
// unique index.
func (r *NotificationMethodRepository) Create(ctx context.Context, m NotificationMethod) (NotificationMethod, error) {
	if err := m.Validate(); err != nil {
		return NotificationMethod{}, err
	}
	return Do(ctx, r.g, "notification_method.create", func(ctx context.Context, q sqlx.ExtContext) (NotificationMethod, error) {
		if err := checkNameFree(ctx, q, m.TenantID, m.Name, ""); err != nil {
			return NotificationMethod{}, err
		}

		m.ID = uuid.NewString()
		m.CreatedAt = r.now()
		m.UpdatedAt = m.CreatedAt

		_, err := sqlx.NamedExecContext(ctx, q,
			`INSERT INTO notification_method (`+notificationColumns+`)
			 VALUES (:id, :tenant_id, :name, :type, :address, :period, :created_at, :updated_at)`, m)
		if isUniqueViolation(err) {
			return NotificationMethod{}, fmt.Errorf("notification method %q: %w", m.Name, ingestgate.ErrAlreadyExists)
		}
		if err != nil {
			return NotificationMethod{}, fmt.Errorf("insert notification method: %w", err)
		}
		return m, nil
	})
}

// Get returns the method with id owned by tenantID.
func (r *NotificationMethodRepository) Get(ctx context.Context, tenantID, id string) (NotificationMethod, error) {
	return Do(ctx, r.g, "notification_method.get", func(ctx context.Context, q sqlx.ExtContext) (NotificationMethod, error) {
		return getNotification(ctx, q, tenantID, id)
	})
}

// List returns the tenant's methods ordered by name.
func (r *NotificationMethodRepository) List(ctx context.Context, tenantID string) ([]NotificationMethod, error) {
	return Do(ctx, r.g, "notification_method.list", func(ctx context.Context, q sqlx.ExtContext) ([]NotificationMethod, error) {
		var out []NotificationMethod
		err := sqlx.SelectContext(ctx, q, &out, q.Rebind(
			`SELECT `+notificationColumns+` FROM notification_method WHERE tenant_id = ? ORDER BY name`), tenantID)
		if err != nil {
			return nil, fmt.Errorf("list notification methods: %w", err)
		}
		return out, nil
	})
}

// Update replaces name, type, address and period of an existing method. A
// method deleted in the meantime yields ErrDoesNotExist.
func (r *NotificationMethodRepository) Update(ctx context.Context, m NotificationMethod) (NotificationMethod, error) {
	if err := m.Validate(); err != nil {
		return NotificationMethod{}, err
	}
	return Do(ctx, r.g, "notification_method.update", func(ctx context.Context, q sqlx.ExtContext) (NotificationMethod, error) {
		current, err := getNotification(ctx, q, m.TenantID, m.ID)
		if err != nil {
			return NotificationMethod{}, err
		}
		if err := checkNameFree(ctx, q, m.TenantID, m.Name, m.ID); err != nil {
			return NotificationMethod{}, err
		}

		m.CreatedAt = current.CreatedAt
		m.UpdatedAt = r.now()

		res, err := sqlx.NamedExecContext(ctx, q,
			`UPDATE notification_method
			 SET name = :name, type = :type, address = :address, period = :period, updated_at = :updated_at
			 WHERE id = :id AND tenant_id = :tenant_id`, m)
		if isUniqueViolation(err) {
			return NotificationMethod{}, fmt.Errorf("notification method %q: %w", m.Name, ingestgate.ErrAlreadyExists)
		}
		if err != nil {
			return NotificationMethod{}, fmt.Errorf("update notification method: %w", err)
		}
		if err := requireRow(res, m.ID); err != nil {
			return NotificationMethod{}, err
		}
		return m, nil
	})
}

// Delete removes the method with id owned by tenantID.
func (r *NotificationMethodRepository) Delete(ctx context.Context, tenantID, id string) error {
	_, err := Do(ctx, r.g, "notification_method.delete", func(ctx context.Context, q sqlx.ExtContext) (struct{}, error) {
		res, err := q.ExecContext(ctx, q.Rebind(
			`DELETE FROM notification_method WHERE id = ? AND tenant_id = ?`), id, tenantID)
		if err != nil {
			return struct{}{}, fmt.Errorf("delete notification method: %w", err)
		}
		return struct{}{}, requireRow(res, id)
	})
	return err
}

func getNotification(ctx context.Context, q sqlx.ExtContext, tenantID, id string) (NotificationMethod, error) {
	var m NotificationMethod
	err := sqlx.GetContext(ctx, q, &m, q.Rebind(
		`SELECT `+notificationColumns+` FROM notification_method WHERE id = ? AND tenant_id = ?`), id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationMethod{}, fmt.Errorf("notification method %s: %w", id, ingestgate.ErrDoesNotExist)
	}
	if err != nil {
		return NotificationMethod{}, fmt.Errorf("get notification method: %w", err)
	}
	return m, nil
}

// checkNameFree fails with ErrAlreadyExists when another method of the
// tenant, other than exceptID, already uses name.
func checkNameFree(ctx context.Context, q sqlx.ExtContext, tenantID, name, exceptID string) error {
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(
		`SELECT COUNT(*) FROM notification_method WHERE tenant_id = ? AND name = ? AND id <> ?`), tenantID, name, exceptID)
	if err != nil {
		return fmt.Errorf("check notification method name: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("notification method %q: %w", name, ingestgate.ErrAlreadyExists)
	}
	return nil
}

// requireRow maps a statement that touched no row to ErrDoesNotExist.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification method %s: %w", id, ingestgate.ErrDoesNotExist)
	}
	return nil
}

// isUniqueViolation reports whether err is the unique index on
// (tenant_id, name) rejecting a row.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}
