package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/basketcase/pkg/db/models"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
	"github.com/angelmondragon/basketcase/pkg/pagination"
)

// Recorder is the narrow surface other components use to write to the error log.
type Recorder interface {
	Record(ctx context.Context, level enums.ErrorLevel, component enums.Component, message string, cause error) error
}

// Service defines error log write, list and resolve operations.
type Service interface {
	Recorder
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Resolve(ctx context.Context, id uuid.UUID) error
}

// ListParams configures pagination and filtering for error log listings.
type ListParams struct {
	Limit           int
	Cursor          string
	IncludeResolved bool
	Component       string
}

// ListResult wraps returned entries and the cursor for the next page.
type ListResult struct {
	Items  []models.ErrorLog `json:"items"`
	Cursor string            `json:"cursor"`
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires error log dependencies. now may be nil.
func NewService(repo Repository, logg *logger.Logger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "error log repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, logg: logg, now: now}, nil
}

// Record appends one row and mirrors it to the structured log. The cause, when present, is
// stored as the JSON error dump in details.
func (s *service) Record(ctx context.Context, level enums.ErrorLevel, component enums.Component, message string, cause error) error {
	if !level.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid error level")
	}
	if !component.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid component")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}

	entry := &models.ErrorLog{
		Level:     level,
		Component: component,
		Message:   message,
		LoggedAt:  s.now().UTC(),
	}
	if cause != nil {
		details := pkgerrors.DumpJSON(cause)
		entry.Details = &details
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"component": component.String(), "level": level.String()})
	switch level {
	case enums.ErrorLevelError:
		s.logg.Error(logCtx, message, cause)
	case enums.ErrorLevelWarning:
		s.logg.Warn(logCtx, message)
	default:
		s.logg.Info(logCtx, message)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record error log entry")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{
		Limit:          params.Limit,
		UnresolvedOnly: !params.IncludeResolved,
	}
	if params.Component != "" {
		component, err := enums.ParseComponent(strings.ToUpper(strings.TrimSpace(params.Component)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid component filter")
		}
		query.Component = component
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list error log")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Resolve flags an entry as handled. Resolving an already resolved entry is a no-op.
func (s *service) Resolve(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "error log id required")
	}
	result, err := s.repo.Resolve(ctx, id, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "resolve error log entry")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "error log entry not found")
	}
	return nil
}
