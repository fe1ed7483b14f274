package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/photoshare/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用した連絡先リポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

const contactColumns = `id, user_id, first_name, last_name, COALESCE(email, ''),
	COALESCE(phone, ''), birthday, COALESCE(address, ''), created_at, updated_at`

func scanContact(scan func(dest ...any) error) (*model.Contact, error) {
	c := &model.Contact{}
	err := scan(
		&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email,
		&c.Phone, &c.Birthday, &c.Address, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は指定ユーザーの連絡先を取得する。見つからない場合はnilを返す。
func (r *PostgresContactRepo) FindByID(ctx context.Context, userID, id string) (*model.Contact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	contact, err := scanContact(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by ID: %w", err)
	}
	return contact, nil
}

// buildContactListQuery はフィルタ条件からWHERE句とプレースホルダ引数を組み立てる。
func buildContactListQuery(userID string, filter ContactFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1`)
	args := []any{userID}

	addLike := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, "%"+value+"%")
		sb.WriteString(" AND " + column + " ILIKE $" + strconv.Itoa(len(args)))
	}
	addLike("first_name", filter.FirstName)
	addLike("last_name", filter.LastName)
	addLike("email", filter.Email)

	sb.WriteString(" ORDER BY last_name, first_name")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args
}

// List は指定ユーザーの連絡先一覧をフィルタ付きで返す。
func (r *PostgresContactRepo) List(ctx context.Context, userID string, filter ContactFilter) ([]*model.Contact, error) {
	query, args := buildContactListQuery(userID, filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		contact, err := scanContact(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

// ExistsByEmailOrPhone は同一ユーザー内でメールまたは電話番号が重複するか判定する。
// 空のメール・電話番号は重複判定の対象にしない。
func (r *PostgresContactRepo) ExistsByEmailOrPhone(ctx context.Context, userID, email, phone, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM contacts
		   WHERE user_id = $1
		     AND (($2 <> '' AND email = $2) OR ($3 <> '' AND phone = $3))
		     AND ($4 = '' OR id <> $4::uuid)
		 )`,
		userID, email, phone, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check contact uniqueness: %w", err)
	}
	return exists, nil
}

// Create は連絡先を作成する。
func (r *PostgresContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (id, user_id, first_name, last_name, email, phone, birthday, address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10)`,
		contact.ID, contact.UserID, contact.FirstName, contact.LastName,
		contact.Email, contact.Phone, contact.Birthday, contact.Address,
		contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// Update は連絡先を上書き更新する。
func (r *PostgresContactRepo) Update(ctx context.Context, contact *model.Contact) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contacts
		 SET first_name = $3, last_name = $4, email = NULLIF($5, ''),
		     phone = NULLIF($6, ''), birthday = $7, address = NULLIF($8, ''), updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		contact.ID, contact.UserID, contact.FirstName, contact.LastName,
		contact.Email, contact.Phone, contact.Birthday, contact.Address,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("contact not found: %s", contact.ID)
	}
	return nil
}

// Delete は指定ユーザーの連絡先を削除する。
func (r *PostgresContactRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("contact not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ContactRepository = (*PostgresContactRepo)(nil)
