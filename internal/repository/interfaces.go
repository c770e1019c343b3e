package repository

import (
	"context"

	"github.com/orchidnexus/orchid/internal/domain"
)

type CredentialRepo interface {
	Save(ctx context.Context, c *domain.Credential) error
	Load(ctx context.Context) (*domain.Credential, error)
	SetActiveProject(ctx context.Context, projectID *int) error
	Delete(ctx context.Context) error
}

type NoticeRepo interface {
	AppendNotice(ctx context.Context, n domain.Notice) error
	List(ctx context.Context, projectID, limit int) ([]domain.Notice, error)
	MarkSeen(ctx context.Context, projectID int) (int64, error)
	DeleteAll(ctx context.Context) error
}
