package hr

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for employee documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `id, employee_id, organization_id, property_id, department_id, title, kind, storage_path, uploaded_by, uploaded_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.EmployeeID, &d.OrganizationID, &d.PropertyID,
		&d.DepartmentID, &d.Title, &d.Kind, &d.StoragePath, &d.UploadedBy, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return d, nil
}

// Create inserts a document record.
func (r *Repository) Create(ctx context.Context, d Document) (Document, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO employee_documents (employee_id, organization_id, property_id, department_id, title, kind, storage_path, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+documentColumns,
		d.EmployeeID, d.OrganizationID, d.PropertyID, d.DepartmentID, d.Title, d.Kind, d.StoragePath, d.UploadedBy)
	return scanDocument(row)
}

// Get fetches a document by id.
func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	return scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM employee_documents WHERE id = $1`, id))
}

// ListByEmployee returns an employee's documents, newest first.
func (r *Repository) ListByEmployee(ctx context.Context, employeeID int64) ([]Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM employee_documents
		 WHERE employee_id = $1 ORDER BY uploaded_at DESC`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a document record.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employee_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
