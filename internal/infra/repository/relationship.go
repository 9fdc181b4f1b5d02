package repository

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/meridian-social/meridian/internal/usecase"
)

// RelationshipRepository resolves block/mute facts for batches of actor
// pairs. All four relations (direct block, block via subscribed list, mute,
// mute via subscribed list) are checked in one statement keyed by a VALUES
// pair table; per-pair queries would make feed filtering cost scale with
// page size.
type RelationshipRepository struct {
	db *gorm.DB
}

func NewRelationshipRepository(db *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

type relationshipScan struct {
	Source              string `gorm:"column:source"`
	Target              string `gorm:"column:target"`
	BlockingURI         string `gorm:"column:blocking_uri"`
	BlockingViaListURI  string `gorm:"column:blocking_via_list_uri"`
	BlockedByURI        string `gorm:"column:blocked_by_uri"`
	BlockedByViaListURI string `gorm:"column:blocked_by_via_list_uri"`
	Muting              bool   `gorm:"column:muting"`
	MutingViaListURI    string `gorm:"column:muting_via_list_uri"`
}

func (r *RelationshipRepository) BulkResolve(ctx context.Context, pairs []usecase.RelationshipPair) ([]usecase.RelationshipRow, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(pairs))
	args := make([]any, 0, len(pairs)*2)
	for _, pair := range pairs {
		placeholders = append(placeholders, "(?::text, ?::text)")
		args = append(args, pair.Source, pair.Target)
	}

	query := `
SELECT v.source, v.target,
       COALESCE(b.uri, '') AS blocking_uri,
       COALESCE(lb.list_uri, '') AS blocking_via_list_uri,
       COALESCE(rb.uri, '') AS blocked_by_uri,
       COALESCE(rlb.list_uri, '') AS blocked_by_via_list_uri,
       (m.uri IS NOT NULL) AS muting,
       COALESCE(lm.list_uri, '') AS muting_via_list_uri
FROM (VALUES ` + strings.Join(placeholders, ", ") + `) AS v(source, target)
LEFT JOIN blocks b
       ON b.creator = v.source AND b.subject_did = v.target
LEFT JOIN LATERAL (
       SELECT sub.list_uri FROM list_blocks sub
       JOIN list_items li ON li.list_uri = sub.list_uri AND li.subject_did = v.target
       WHERE sub.creator = v.source
       LIMIT 1
) lb ON true
LEFT JOIN blocks rb
       ON rb.creator = v.target AND rb.subject_did = v.source
LEFT JOIN LATERAL (
       SELECT sub.list_uri FROM list_blocks sub
       JOIN list_items li ON li.list_uri = sub.list_uri AND li.subject_did = v.source
       WHERE sub.creator = v.target
       LIMIT 1
) rlb ON true
LEFT JOIN mutes m
       ON m.creator = v.source AND m.subject_did = v.target
LEFT JOIN LATERAL (
       SELECT sub.list_uri FROM list_mutes sub
       JOIN list_items li ON li.list_uri = sub.list_uri AND li.subject_did = v.target
       WHERE sub.creator = v.source
       LIMIT 1
) lm ON true
`

	var scans []relationshipScan
	err := r.db.WithContext(ctx).Raw(query, args...).Scan(&scans).Error
	if err != nil {
		return nil, errors.Wrap(err, "RelationshipRepository.BulkResolve")
	}

	rows := make([]usecase.RelationshipRow, 0, len(scans))
	for _, s := range scans {
		rows = append(rows, usecase.RelationshipRow{
			Source:              s.Source,
			Target:              s.Target,
			BlockingURI:         s.BlockingURI,
			BlockingViaListURI:  s.BlockingViaListURI,
			BlockedByURI:        s.BlockedByURI,
			BlockedByViaListURI: s.BlockedByViaListURI,
			Muting:              s.Muting,
			MutingViaListURI:    s.MutingViaListURI,
		})
	}
	return rows, nil
}

var _ usecase.RelationshipRepository = (*RelationshipRepository)(nil)
