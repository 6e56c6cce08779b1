package hr

import (
	"context"
	"fmt"
	"strconv"

	"log/slog"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/shared"
)

// RepositoryPort defines data access methods for employee documents.
type RepositoryPort interface {
	Create(ctx context.Context, d Document) (Document, error)
	Get(ctx context.Context, id int64) (Document, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]Document, error)
	Delete(ctx context.Context, id int64) error
}

// Authorizer decides document access against a concrete target.
type Authorizer interface {
	Authorize(ctx context.Context, actor authz.UserContext, key string, target authz.Target) (authz.Decision, error)
}

// Service handles employee documents. Reads pass with either the
// department-wide permission or the own-scoped one when the actor is the
// document's employee; the scopes are distinct permissions, not an implied
// hierarchy.
type Service struct {
	repo   RepositoryPort
	guard  Authorizer
	audit  shared.Recorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard Authorizer, audit shared.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, audit: audit, logger: logger}
}

// UploadDocument stores a document for an employee at a property the actor
// can manage.
func (s *Service) UploadDocument(ctx context.Context, actor authz.UserContext, d Document) (Document, error) {
	if d.Title == "" {
		return Document{}, fmt.Errorf("hr: document title required")
	}
	d.UploadedBy = actor.UserID
	if err := s.authorize(ctx, actor, shared.PermDocumentsManageProp, d.Target()); err != nil {
		return Document{}, err
	}
	created, err := s.repo.Create(ctx, d)
	if err != nil {
		return Document{}, err
	}
	s.recordAudit(ctx, actor.UserID, "document.upload", created.ID, map[string]any{
		"employee_id": created.EmployeeID, "title": created.Title, "kind": created.Kind,
	})
	return created, nil
}

// ReadDocument fetches a document the actor may read at either scope.
func (s *Service) ReadDocument(ctx context.Context, actor authz.UserContext, id int64) (Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if err := s.authorizeRead(ctx, actor, d); err != nil {
		return Document{}, err
	}
	return d, nil
}

// ListEmployeeDocuments returns an employee's documents the actor may read.
// The scope check runs against the employee's own tenant placement, taken
// from the documents themselves.
func (s *Service) ListEmployeeDocuments(ctx context.Context, actor authz.UserContext, employeeID int64) ([]Document, error) {
	docs, err := s.repo.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	var readable []Document
	for _, d := range docs {
		if err := s.authorizeRead(ctx, actor, d); err == nil {
			readable = append(readable, d)
		}
	}
	if len(docs) > 0 && len(readable) == 0 {
		return nil, ErrForbidden
	}
	return readable, nil
}

// DeleteDocument removes a document at a property the actor can manage.
func (s *Service) DeleteDocument(ctx context.Context, actor authz.UserContext, id int64) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, shared.PermDocumentsManageProp, d.Target()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "document.delete", id, map[string]any{
		"employee_id": d.EmployeeID, "title": d.Title,
	})
	return nil
}

// authorizeRead tries the department scope first, then falls back to the
// own scope.
func (s *Service) authorizeRead(ctx context.Context, actor authz.UserContext, d Document) error {
	target := d.Target()
	dec, err := s.guard.Authorize(ctx, actor, shared.PermDocumentsReadDept, target)
	if err != nil {
		return err
	}
	if dec.Allowed {
		return nil
	}
	dec, err = s.guard.Authorize(ctx, actor, shared.PermDocumentsReadOwn, target)
	if err != nil {
		return err
	}
	if dec.Allowed {
		return nil
	}
	return fmt.Errorf("%w: document %d (%s)", ErrForbidden, d.ID, dec.Reason)
}

func (s *Service) authorize(ctx context.Context, actor authz.UserContext, key string, target authz.Target) error {
	dec, err := s.guard.Authorize(ctx, actor, key, target)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return fmt.Errorf("%w: %s (%s)", ErrForbidden, key, dec.Reason)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, detail map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "employee_document",
		EntityID: strconv.FormatInt(id, 10),
		After:    detail,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record document audit", slog.String("action", action), slog.Any("error", err))
	}
}
