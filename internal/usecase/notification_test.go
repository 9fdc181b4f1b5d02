package usecase

import (
	"context"
	"testing"
	"time"

	meridian "github.com/meridian-social/meridian"
)

type mockNotificationRepo struct {
	items  []NotificationData
	cursor string
}

func (m *mockNotificationRepo) Page(ctx context.Context, recipient string, opts PageOpts) ([]NotificationData, string, error) {
	return m.items, m.cursor, nil
}

func TestNotificationsFilterBlockedAuthors(t *testing.T) {
	when := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockNotificationRepo{
		items: []NotificationData{
			{ID: "1", Author: "did:alice", Reason: meridian.ReasonLike, SubjectURI: postA, SortAt: when},
			{ID: "2", Author: "did:bob", Reason: meridian.ReasonFollow, SortAt: when},
		},
		cursor: "1700000000000::mzc-tail",
	}
	rels := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:viewer", Target: "did:bob", BlockingURI: "mrd://did:viewer/app.meridian.graph.block/1"},
	}}
	hydrator := NewHydrator(&mockPostRepo{}, &mockProfileRepo{}, NewRelationshipEngine(rels))
	uc := NewNotificationUsecase(repo, hydrator)

	page, err := uc.List(context.Background(), "did:viewer", PageOpts{Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(page.Notifications) != 1 {
		t.Fatalf("expected blocked author filtered, got %d", len(page.Notifications))
	}
	if page.Notifications[0].Author.Did != "did:alice" {
		t.Fatalf("expected did:alice, got %s", page.Notifications[0].Author.Did)
	}
	if page.Cursor != "1700000000000::mzc-tail" {
		t.Fatalf("cursor must reflect the unfiltered batch, got %q", page.Cursor)
	}
}

func TestNotificationsHydrateAuthorProfiles(t *testing.T) {
	repo := &mockNotificationRepo{
		items: []NotificationData{
			{ID: "1", Author: "did:alice", Reason: meridian.ReasonMention, SubjectURI: postA},
		},
	}
	hydrator := NewHydrator(&mockPostRepo{}, &mockProfileRepo{}, NewRelationshipEngine(&mockRelationshipRepo{}))
	uc := NewNotificationUsecase(repo, hydrator)

	page, err := uc.List(context.Background(), "did:viewer", PageOpts{Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Notifications[0].Author.Handle != "did:alice.test" {
		t.Fatalf("expected hydrated author profile, got %+v", page.Notifications[0].Author)
	}
}
