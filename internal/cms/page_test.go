package cms

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peterboroughtenants.org/internal/guard"
	"peterboroughtenants.org/internal/member"
)

var frozen = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testPage(publish time.Time, archived bool) *Page {
	return &Page{
		ID: "p1", Slug: "rent-strike-faq", Title: "Rent strike FAQ",
		Archived: archived, PublishOn: publish,
		now: func() time.Time { return frozen },
	}
}

func TestPageStatus(t *testing.T) {
	assert.Equal(t, StatusDraft, testPage(time.Time{}, false).Status())
	assert.Equal(t, StatusScheduled, testPage(frozen.Add(time.Hour), false).Status())
	assert.Equal(t, StatusPublished, testPage(frozen.Add(-time.Hour), false).Status())
	assert.Equal(t, StatusArchived, testPage(frozen.Add(-time.Hour), true).Status())
}

func TestPageGuard(t *testing.T) {
	admin := &member.Principal{ID: "a1", Trusted: true, Grants: []member.Grant{{
		ID: "g1", ContactID: "a1", Role: member.RoleGlobalAdmin,
		HeldSince: frozen.AddDate(-1, 0, 0),
	}}}

	published := testPage(frozen.Add(-time.Hour), false)
	ok, err := published.Guard("view", nil)
	require.NoError(t, err)
	assert.True(t, ok, "published pages are public")

	draft := testPage(time.Time{}, false)
	ok, _ = draft.Guard("view", nil)
	assert.False(t, ok)
	ok, _ = draft.Guard("view", &member.Principal{ID: "m1", Trusted: true})
	assert.False(t, ok, "members without the admin role cannot see drafts")
	ok, _ = draft.Guard("view", admin)
	assert.True(t, ok)

	ok, _ = published.Guard("edit", nil)
	assert.False(t, ok)
	ok, _ = published.Guard("edit", admin)
	assert.True(t, ok)
}

func TestPageEditorialFieldsHiddenFromPublic(t *testing.T) {
	p := testPage(frozen.Add(-time.Hour), false)
	out, err := guard.Render(p, nil, "view", nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.NotContains(t, m, "status")
	assert.NotContains(t, m, "publish_on")
	assert.Equal(t, "rent-strike-faq", m["slug"])
}

func TestServiceRejectsBadSlug(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, err := NewService(NewPGStore(db), nil)
	require.NoError(t, err)

	for _, slug := range []string{"", "Has Spaces", "UPPER", "trailing-", "-leading", "a--b"} {
		_, err := svc.Create(context.Background(), &Page{Slug: slug, Title: "T"})
		assert.ErrorIs(t, err, ErrInvalidInput, "slug %q", slug)
	}
}

func TestServiceListPublishedOnlyForNonAdmins(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, err := NewService(NewPGStore(db), nil, WithClock(func() time.Time { return frozen }))
	require.NoError(t, err)

	cols := []string{"id", "slug", "title", "description", "body", "category",
		"archived", "publish_on", "created_on", "updated_on"}
	mock.ExpectQuery(regexp.QuoteMeta("publish_on <= now()")).
		WithArgs("news").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"p1", "agm-2025", "AGM 2025", "", "", "news",
			false, frozen.Add(-time.Hour), frozen, frozen))

	pages, err := svc.List(context.Background(), "news", &member.Principal{ID: "m1", Trusted: true})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, StatusPublished, pages[0].Status())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFindBySlugNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("from pages where slug=").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = NewPGStore(db).FindBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
