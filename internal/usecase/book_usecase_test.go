package usecase

import (
	"strings"
	"testing"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookFixture struct {
	uc    BookUseCase
	repo  *fakeBookRepo
	blobs *fakeBlobStore
	cache *fakeListCache
}

func newBookFixture() *bookFixture {
	repo := newFakeBookRepo()
	blobs := newFakeBlobStore()
	cache := newFakeListCache()
	return &bookFixture{
		uc:    NewBookUseCase(repo, blobs, nil, cache, logger.New()),
		repo:  repo,
		blobs: blobs,
		cache: cache,
	}
}

func actor(id string, permissions ...entity.Permission) *entity.User {
	return &entity.User{ID: id, Username: "user-" + id, Permissions: permissions}
}

func (f *bookFixture) seedBook(t *testing.T, ownerID string, state entity.BookState, tags ...entity.Tag) *entity.Book {
	t.Helper()
	book := &entity.Book{
		Title:       "Dune",
		Description: "A lonely wizard walks the desert",
		State:       state,
		Tags:        tags,
	}
	if ownerID != "" {
		book.UserID = &ownerID
	}
	require.NoError(t, f.repo.Create(book))
	return book
}

func TestCreate_StartsInDraftOwnedByCreator(t *testing.T) {
	f := newBookFixture()
	creator := actor("u1", entity.PermissionCreate)

	book, err := f.uc.Create(creator, CreateBookInput{
		Title: "Dune",
		Tags: []entity.Tag{
			{Type: entity.TagGenre, Name: "sci-fi"},
			{Type: entity.TagGenre, Name: "sci-fi"}, // duplicate collapses
		},
	})

	require.NoError(t, err)
	assert.Equal(t, entity.StateDraft, book.State)
	require.NotNil(t, book.UserID)
	assert.Equal(t, "u1", *book.UserID)
	assert.Len(t, book.Tags, 1)
}

func TestCreate_RequiresCreatePermission(t *testing.T) {
	f := newBookFixture()

	_, err := f.uc.Create(actor("u1"), CreateBookInput{Title: "Dune"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.uc.Create(nil, CreateBookInput{Title: "Dune"})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestCreate_ValidatesInput(t *testing.T) {
	f := newBookFixture()
	creator := actor("u1", entity.PermissionCreate)

	_, err := f.uc.Create(creator, CreateBookInput{Title: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.uc.Create(creator, CreateBookInput{
		Title: "Dune",
		Tags:  []entity.Tag{{Type: "FOO", Name: "bar"}},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTransitionMatrix(t *testing.T) {
	type op struct {
		name  string
		run   func(f *bookFixture, a *entity.User, id string) (*entity.Book, error)
		actor *entity.User
		from  entity.BookState
		to    entity.BookState
	}

	submit := func(f *bookFixture, a *entity.User, id string) (*entity.Book, error) { return f.uc.Submit(a, id) }
	approve := func(f *bookFixture, a *entity.User, id string) (*entity.Book, error) { return f.uc.Approve(a, id) }
	reject := func(f *bookFixture, a *entity.User, id string) (*entity.Book, error) { return f.uc.Reject(a, id) }
	archive := func(f *bookFixture, a *entity.User, id string) (*entity.Book, error) { return f.uc.Archive(a, id) }
	unarchive := func(f *bookFixture, a *entity.User, id string) (*entity.Book, error) { return f.uc.Unarchive(a, id) }

	ops := []op{
		{"submit", submit, actor("u1", entity.PermissionCreate), entity.StateDraft, entity.StateUnapproved},
		{"approve", approve, actor("u1", entity.PermissionApprove), entity.StateUnapproved, entity.StateVisible},
		{"reject", reject, actor("u1", entity.PermissionApprove), entity.StateUnapproved, entity.StateDraft},
		{"archive", archive, actor("u1", entity.PermissionArchive), entity.StateVisible, entity.StateArchived},
		{"unarchive", unarchive, actor("u1", entity.PermissionArchive), entity.StateArchived, entity.StateVisible},
	}

	for _, tc := range ops {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookFixture()
			book := f.seedBook(t, "u1", tc.from)

			result, err := tc.run(f, tc.actor, book.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.to, result.State)

			stored, err := f.repo.GetByID(book.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.to, stored.State)
			assert.True(t, stored.State.Valid())
		})
	}
}

func TestTransition_WrongSourceState(t *testing.T) {
	f := newBookFixture()
	reviewer := actor("u1", entity.PermissionApprove, entity.PermissionArchive, entity.PermissionEdit)

	// approve requires UNAPPROVED; the book is VISIBLE, so policy may grant
	// nothing for approve on a visible book - the caller gets Forbidden or
	// Conflict, never success. Use archive for a clean Conflict case.
	book := f.seedBook(t, "u1", entity.StateArchived)
	_, err := f.uc.Archive(reviewer, book.ID)
	assert.Error(t, err)

	// archiver may read ARCHIVED but archive needs VISIBLE
	assert.Contains(t,
		[]apperr.Kind{apperr.KindConflict, apperr.KindForbidden},
		apperr.KindOf(err))
}

func TestSubmit_OnlyFromDraft(t *testing.T) {
	f := newBookFixture()
	creator := actor("u1", entity.PermissionCreate)

	book := f.seedBook(t, "u1", entity.StateUnapproved)
	_, err := f.uc.Submit(creator, book.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), string(entity.StateDraft))
}

func TestTransition_ConcurrentLoserGetsStaleState(t *testing.T) {
	f := newBookFixture()
	archiver := actor("u1", entity.PermissionDelete) // extends ARCHIVE

	book := f.seedBook(t, "u1", entity.StateVisible)

	// Simulate a concurrent archive between this request's read and write.
	_, err := f.uc.Archive(archiver, book.ID)
	require.NoError(t, err)

	// Second archive: the precondition fails on re-read -> Conflict.
	_, err = f.uc.Archive(archiver, book.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestTransition_StaleStateWhenCASLoses(t *testing.T) {
	repo := newFakeBookRepo()
	blobs := newFakeBlobStore()
	uc := NewBookUseCase(&racingBookRepo{fakeBookRepo: repo}, blobs, nil, nil, logger.New())
	archiver := actor("u1", entity.PermissionArchive)

	ownerID := "u1"
	book := &entity.Book{Title: "Dune", State: entity.StateVisible, UserID: &ownerID}
	require.NoError(t, repo.Create(book))

	_, err := uc.Archive(archiver, book.ID)
	assert.Equal(t, apperr.KindStaleState, apperr.KindOf(err))
}

func TestDelete_OnlyFromArchived(t *testing.T) {
	f := newBookFixture()
	deleter := actor("u1", entity.PermissionDelete)

	book := f.seedBook(t, "u1", entity.StateArchived)
	require.NoError(t, f.blobs.UploadFile("books/"+book.ID+"/cover.png", strings.NewReader("img"), "image/png"))
	require.NoError(t, f.blobs.UploadFile("books/"+book.ID+"/book.pdf", strings.NewReader("pdf"), "application/pdf"))

	err := f.uc.Delete(deleter, book.ID)
	require.NoError(t, err)

	_, err = f.uc.Get(deleter, book.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 0, f.blobs.len())
}

func TestDelete_VisibleBookIsRejected(t *testing.T) {
	f := newBookFixture()
	deleter := actor("u1", entity.PermissionDelete, entity.PermissionEdit, entity.PermissionApprove)

	book := f.seedBook(t, "u1", entity.StateVisible)
	err := f.uc.Delete(deleter, book.ID)
	assert.Error(t, err)

	// still listed
	_, getErr := f.repo.GetByID(book.ID)
	assert.NoError(t, getErr)
}

func TestGet_PolicyByState(t *testing.T) {
	f := newBookFixture()

	visible := f.seedBook(t, "owner", entity.StateVisible)
	draft := f.seedBook(t, "owner", entity.StateDraft)

	// Anyone reads visible books
	_, err := f.uc.Get(nil, visible.ID)
	assert.NoError(t, err)

	// Anonymous cannot read drafts
	_, err = f.uc.Get(nil, draft.ID)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	// The owner can
	_, err = f.uc.Get(actor("owner"), draft.ID)
	assert.NoError(t, err)

	// A stranger cannot
	_, err = f.uc.Get(actor("stranger"), draft.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestListVisible_SearchQuery(t *testing.T) {
	f := newBookFixture()

	dune := f.seedBook(t, "", entity.StateVisible, entity.Tag{Type: entity.TagGenre, Name: "sci-fi"})
	f.seedBook(t, "", entity.StateDraft, entity.Tag{Type: entity.TagGenre, Name: "sci-fi"})

	books, err := f.uc.ListVisible("dune;GENRE:sci-fi")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, dune.ID, books[0].ID)
}

func TestListVisible_DescriptionSearch(t *testing.T) {
	f := newBookFixture()
	f.seedBook(t, "", entity.StateVisible)

	books, err := f.uc.ListVisible("desc:lonely wizard")
	require.NoError(t, err)
	assert.Len(t, books, 1)

	books, err = f.uc.ListVisible("desc:lonely dragon")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestListVisible_BadTagType(t *testing.T) {
	f := newBookFixture()

	_, err := f.uc.ListVisible("FOO:bar")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListDrafts_OwnerScoped(t *testing.T) {
	f := newBookFixture()

	mine := f.seedBook(t, "u1", entity.StateDraft)
	f.seedBook(t, "u2", entity.StateDraft)
	pending := f.seedBook(t, "u1", entity.StateUnapproved)

	books, err := f.uc.ListDrafts(actor("u1"))
	require.NoError(t, err)
	require.Len(t, books, 2)

	ids := []string{books[0].ID, books[1].ID}
	assert.Contains(t, ids, mine.ID)
	assert.Contains(t, ids, pending.ID)
}

func TestListPending_RequiresGrant(t *testing.T) {
	f := newBookFixture()
	f.seedBook(t, "u1", entity.StateUnapproved)

	_, err := f.uc.ListPending(actor("u1"))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	books, err := f.uc.ListPending(actor("u1", entity.PermissionApprove))
	require.NoError(t, err)
	assert.Len(t, books, 1)

	// EDIT also reads UNAPPROVED
	books, err = f.uc.ListPending(actor("u2", entity.PermissionEdit))
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestListArchived_RequiresGrant(t *testing.T) {
	f := newBookFixture()
	f.seedBook(t, "u1", entity.StateArchived)

	_, err := f.uc.ListArchived(actor("u1"))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	books, err := f.uc.ListArchived(actor("u1", entity.PermissionArchive))
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestUpdate_TagSetDifference(t *testing.T) {
	f := newBookFixture()
	owner := actor("u1")

	fantasy := entity.Tag{Type: entity.TagGenre, Name: "fantasy"}
	tolkien := entity.Tag{Type: entity.TagAuthor, Name: "Tolkien"}

	book := f.seedBook(t, "u1", entity.StateDraft, fantasy)

	// Replace [GENRE:fantasy] with [GENRE:fantasy, AUTHOR:Tolkien]
	updated, err := f.uc.Update(owner, book.ID, UpdateBookInput{
		Tags: []entity.Tag{fantasy, tolkien},
	})
	require.NoError(t, err)
	require.Len(t, updated.Tags, 2)

	// Now drop GENRE:fantasy
	updated, err = f.uc.Update(owner, book.ID, UpdateBookInput{
		Tags: []entity.Tag{tolkien},
	})
	require.NoError(t, err)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, tolkien.Name, updated.Tags[0].Name)

	// Detached, not destroyed: still in the global registry
	assert.True(t, f.repo.registryHas(fantasy))
}

func TestUpdate_PolicyDeniesStrangers(t *testing.T) {
	f := newBookFixture()
	book := f.seedBook(t, "u1", entity.StateDraft)

	title := "New title"
	_, err := f.uc.Update(actor("u2"), book.ID, UpdateBookInput{Title: &title})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUpdate_EditorUpdatesVisible(t *testing.T) {
	f := newBookFixture()
	book := f.seedBook(t, "u1", entity.StateVisible)

	title := "Dune (Revised)"
	updated, err := f.uc.Update(actor("editor", entity.PermissionEdit), book.ID, UpdateBookInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
}

func TestSetCoverAndGetCover(t *testing.T) {
	f := newBookFixture()
	owner := actor("u1")
	book := f.seedBook(t, "u1", entity.StateDraft)

	updated, err := f.uc.SetCover(owner, book.ID, "art.png", strings.NewReader("img-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "cover.png", updated.CoverFile)

	stream, _, err := f.uc.GetCover(owner, book.ID)
	require.NoError(t, err)
	stream.Close()
}

func TestSetCover_ReplacementRemovesStaleExtension(t *testing.T) {
	f := newBookFixture()
	owner := actor("u1")
	book := f.seedBook(t, "u1", entity.StateDraft)

	_, err := f.uc.SetCover(owner, book.ID, "art.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	_, err = f.uc.SetCover(owner, book.ID, "art.jpg", strings.NewReader("jpg"), "image/jpeg")
	require.NoError(t, err)

	// only cover.jpg remains
	assert.Equal(t, 1, f.blobs.len())
}

func TestGetFile_MissingAttachment(t *testing.T) {
	f := newBookFixture()
	book := f.seedBook(t, "u1", entity.StateVisible)

	_, _, _, err := f.uc.GetFile(nil, book.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetFile_DownloadNameFromTitle(t *testing.T) {
	f := newBookFixture()
	owner := actor("u1")
	book := f.seedBook(t, "u1", entity.StateDraft)

	_, err := f.uc.SetFile(owner, book.ID, "scan.pdf", strings.NewReader("pdf"), "application/pdf")
	require.NoError(t, err)

	stream, _, name, err := f.uc.GetFile(owner, book.ID)
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, "Dune.pdf", name)
}

func TestAdmin_HasFullCatalogAccess(t *testing.T) {
	f := newBookFixture()
	admin := actor("root", entity.PermissionAdmin)

	// An ADMIN-only account drives a book through the whole lifecycle.
	book, err := f.uc.Create(admin, CreateBookInput{Title: "Dune"})
	require.NoError(t, err)

	_, err = f.uc.Submit(admin, book.ID)
	require.NoError(t, err)
	_, err = f.uc.Approve(admin, book.ID)
	require.NoError(t, err)
	_, err = f.uc.Archive(admin, book.ID)
	require.NoError(t, err)
	require.NoError(t, f.uc.Delete(admin, book.ID))

	// And reads other users' pending and archived books.
	f.seedBook(t, "u2", entity.StateUnapproved)
	pending, err := f.uc.ListPending(admin)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestListVisible_CachesUntilInvalidated(t *testing.T) {
	f := newBookFixture()
	f.seedBook(t, "u1", entity.StateVisible)

	first, err := f.uc.ListVisible("")
	require.NoError(t, err)
	assert.Len(t, first, 1)

	// A second visible book appears behind the cache's back; the cached
	// listing keeps serving until something invalidates it.
	f.seedBook(t, "u1", entity.StateVisible)
	cached, err := f.uc.ListVisible("")
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	f.cache.Invalidate()
	fresh, err := f.uc.ListVisible("")
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestVisibleListInvalidation_OnVisibilityChanges(t *testing.T) {
	f := newBookFixture()
	approver := actor("u1", entity.PermissionApprove, entity.PermissionArchive, entity.PermissionDelete)

	book := f.seedBook(t, "u1", entity.StateUnapproved)

	_, err := f.uc.Approve(approver, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.invalidated(), "approve")

	_, err = f.uc.Archive(approver, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.invalidated(), "archive")

	_, err = f.uc.Unarchive(approver, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.cache.invalidated(), "unarchive")

	_, err = f.uc.Archive(approver, book.ID)
	require.NoError(t, err)
	require.NoError(t, f.uc.Delete(approver, book.ID))
	assert.Equal(t, 5, f.cache.invalidated(), "archive+delete")
}

func TestVisibleListInvalidation_SkipsNonVisibleTransitions(t *testing.T) {
	f := newBookFixture()
	owner := actor("u1")

	book := f.seedBook(t, "u1", entity.StateDraft)

	// DRAFT -> UNAPPROVED never touches the public listing.
	_, err := f.uc.Submit(owner, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.invalidated())
}

func TestGetCover_MissingBlobIsNotFound(t *testing.T) {
	f := newBookFixture()
	owner := actor("u1")
	book := f.seedBook(t, "u1", entity.StateDraft)

	_, err := f.uc.SetCover(owner, book.ID, "cover.png", strings.NewReader("img"), "image/png")
	require.NoError(t, err)

	// The stored object vanishes out from under the record.
	require.NoError(t, f.blobs.DeletePrefix("books/"+book.ID))

	_, _, err = f.uc.GetCover(owner, book.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// racingBookRepo makes every conditional state update lose, as if another
// request always wins the race between read and write.
type racingBookRepo struct {
	*fakeBookRepo
}

func (r *racingBookRepo) UpdateState(id string, from, to entity.BookState) (bool, error) {
	return false, nil
}
