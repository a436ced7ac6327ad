package scope

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docqa-be/internal/entity"

	"github.com/google/uuid"
)

// Separator is placed between documents in merged context.
const Separator = "\n-------------------------\n"

// Store is the read side of document storage the resolver needs.
type Store interface {
	ListByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error)
	FindByOwnerAndID(ctx context.Context, ownerId uuid.UUID, id int64) (*entity.Document, error)
	FindByOwnerAndIDs(ctx context.Context, ownerId uuid.UUID, ids []int64) ([]*entity.Document, error)
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the documents selected by s for ownerId, in merge order.
func (r *Resolver) Resolve(ctx context.Context, ownerId uuid.UUID, s Scope) ([]*entity.Document, error) {
	switch sc := s.(type) {
	case All:
		docs, err := r.store.ListByOwner(ctx, ownerId)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		SortNewestFirst(docs)
		return docs, nil

	case Latest:
		docs, err := r.store.ListByOwner(ctx, ownerId)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		if len(docs) == 0 {
			return nil, nil
		}
		SortNewestFirst(docs)
		return docs[:1], nil

	case Current:
		if sc.ID <= 0 {
			return nil, nil
		}
		doc, err := r.store.FindByOwnerAndID(ctx, ownerId, sc.ID)
		if err != nil {
			return nil, fmt.Errorf("find document %d: %w", sc.ID, err)
		}
		if doc == nil {
			return nil, nil
		}
		return []*entity.Document{doc}, nil

	case IDs:
		if len(sc.IDs) == 0 {
			return nil, nil
		}
		docs, err := r.store.FindByOwnerAndIDs(ctx, ownerId, sc.IDs)
		if err != nil {
			return nil, fmt.Errorf("find documents: %w", err)
		}
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Id > docs[j].Id })
		return docs, nil

	default:
		return nil, fmt.Errorf("unsupported scope %T", s)
	}
}

// ResolveText resolves s and merges the result.
func (r *Resolver) ResolveText(ctx context.Context, ownerId uuid.UUID, s Scope) (string, error) {
	docs, err := r.Resolve(ctx, ownerId, s)
	if err != nil {
		return "", err
	}
	return Merge(docs), nil
}

// SortNewestFirst orders by upload time descending, then id descending.
// Documents without an upload time go last.
func SortNewestFirst(docs []*entity.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		switch {
		case a.UploadedAt != nil && b.UploadedAt != nil:
			if !a.UploadedAt.Equal(*b.UploadedAt) {
				return a.UploadedAt.After(*b.UploadedAt)
			}
		case a.UploadedAt != nil:
			return true
		case b.UploadedAt != nil:
			return false
		}
		return a.Id > b.Id
	})
}

// Merge joins documents as "[[name]]\ntext\n" blocks. Documents with blank
// text are skipped, so an empty result means there is no usable context.
func Merge(docs []*entity.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil || strings.TrimSpace(d.Text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[[%s]]\n%s\n", d.DisplayName(), d.Text))
	}
	return strings.Join(parts, Separator)
}
