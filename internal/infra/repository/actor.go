package repository

import (
	"context"
	"encoding/json"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/meridian-social/meridian/internal/domain"
	"github.com/meridian-social/meridian/internal/infra/database/models"
	"github.com/meridian-social/meridian/internal/usecase"
)

const profileCacheTTL = 300 // seconds

type ProfileRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewProfileRepository(db *gorm.DB, mc *memcache.Client) *ProfileRepository {
	return &ProfileRepository{db: db, mc: mc}
}

func profileCacheKey(did string) string {
	return "profile:" + did
}

// ProfilesByDid bulk-loads profile views, reading through memcache. Cache
// misses hit the database once for the whole batch. Unknown dids get a bare
// view carrying only the did so callers can always render an author.
func (r *ProfileRepository) ProfilesByDid(ctx context.Context, dids []string) (map[string]domain.ProfileView, error) {
	out := make(map[string]domain.ProfileView, len(dids))
	if len(dids) == 0 {
		return out, nil
	}

	remaining := dids
	if r.mc != nil {
		keys := make([]string, 0, len(dids))
		for _, did := range dids {
			keys = append(keys, profileCacheKey(did))
		}
		cached, err := r.mc.GetMulti(keys)
		if err == nil {
			remaining = remaining[:0:0]
			for _, did := range dids {
				item, ok := cached[profileCacheKey(did)]
				if !ok {
					remaining = append(remaining, did)
					continue
				}
				var view domain.ProfileView
				if err := json.Unmarshal(item.Value, &view); err != nil {
					remaining = append(remaining, did)
					continue
				}
				out[did] = view
			}
		}
	}

	if len(remaining) > 0 {
		fetched, err := r.profilesFromDB(ctx, remaining)
		if err != nil {
			return nil, err
		}
		for did, view := range fetched {
			out[did] = view
			if r.mc != nil {
				if body, err := json.Marshal(view); err == nil {
					r.mc.Set(&memcache.Item{
						Key:        profileCacheKey(did),
						Value:      body,
						Expiration: profileCacheTTL,
					})
				}
			}
		}
	}

	for _, did := range dids {
		if _, ok := out[did]; !ok {
			out[did] = domain.ProfileView{Did: did}
		}
	}
	return out, nil
}

func (r *ProfileRepository) profilesFromDB(ctx context.Context, dids []string) (map[string]domain.ProfileView, error) {
	var actors []models.Actor
	err := r.db.WithContext(ctx).Where("did IN ?", dids).Find(&actors).Error
	if err != nil {
		return nil, errors.Wrap(err, "ProfileRepository.profilesFromDB: actors")
	}
	var aggs []models.ProfileAgg
	err = r.db.WithContext(ctx).Where("did IN ?", dids).Find(&aggs).Error
	if err != nil {
		return nil, errors.Wrap(err, "ProfileRepository.profilesFromDB: aggs")
	}
	aggByDid := make(map[string]models.ProfileAgg, len(aggs))
	for _, agg := range aggs {
		aggByDid[agg.Did] = agg
	}

	out := make(map[string]domain.ProfileView, len(actors))
	for _, actor := range actors {
		agg := aggByDid[actor.Did]
		out[actor.Did] = domain.ProfileView{
			Did:            actor.Did,
			Handle:         actor.Handle,
			DisplayName:    actor.DisplayName,
			Description:    actor.Description,
			AvatarCid:      actor.AvatarCid,
			FollowersCount: agg.FollowersCount,
			FollowsCount:   agg.FollowsCount,
			PostsCount:     agg.PostsCount,
			IndexedAt:      actor.IndexedAt,
		}
	}
	return out, nil
}

// InvalidateProfile drops the cached view after a profile or counter write.
func (r *ProfileRepository) InvalidateProfile(did string) {
	if r.mc == nil {
		return
	}
	r.mc.Delete(profileCacheKey(did))
}

var _ usecase.ProfileRepository = (*ProfileRepository)(nil)
