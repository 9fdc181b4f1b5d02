package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/meridian-social/meridian/internal/infra/database/models"
	"github.com/meridian-social/meridian/internal/usecase"
)

// ThreadRepository reads the reply topology table. Rows outlive their posts,
// so walks keep working across deleted interior nodes.
type ThreadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

func toThreadRef(row models.ThreadRef) usecase.ThreadRef {
	ref := usecase.ThreadRef{URI: row.URI}
	if row.ParentURI != nil {
		ref.ParentURI = *row.ParentURI
	}
	if row.RootURI != nil {
		ref.RootURI = *row.RootURI
	}
	return ref
}

func (r *ThreadRepository) RefsByURI(ctx context.Context, uris []string) (map[string]usecase.ThreadRef, error) {
	out := make(map[string]usecase.ThreadRef, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	var rows []models.ThreadRef
	err := r.db.WithContext(ctx).Where("uri IN ?", uris).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "ThreadRepository.RefsByURI")
	}
	for _, row := range rows {
		out[row.URI] = toThreadRef(row)
	}
	return out, nil
}

func (r *ThreadRepository) ChildrenOf(ctx context.Context, parentURIs []string) ([]usecase.ThreadRef, error) {
	if len(parentURIs) == 0 {
		return nil, nil
	}
	var rows []models.ThreadRef
	err := r.db.WithContext(ctx).Where("parent_uri IN ?", parentURIs).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "ThreadRepository.ChildrenOf")
	}
	refs := make([]usecase.ThreadRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, toThreadRef(row))
	}
	return refs, nil
}

var _ usecase.ThreadRepository = (*ThreadRepository)(nil)
