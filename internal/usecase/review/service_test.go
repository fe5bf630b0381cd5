package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	"github.com/Pesokrava/review_engine/internal/repository/cache"
)

// MockReviewRepository is a mock implementation of domain.ReviewRepository
type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) reviewResult(args mock.Arguments) (*domain.Review, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *MockReviewRepository) reviewsResult(args mock.Arguments) ([]*domain.Review, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Review), args.Error(1)
}

func (m *MockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, id))
}

func (m *MockReviewRepository) ListApprovedByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, error) {
	return m.reviewsResult(m.Called(ctx, productID, limit, offset))
}

func (m *MockReviewRepository) CountApprovedByProductID(ctx context.Context, productID uuid.UUID) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewRepository) ListPending(ctx context.Context, limit, offset int) ([]*domain.Review, error) {
	return m.reviewsResult(m.Called(ctx, limit, offset))
}

func (m *MockReviewRepository) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewRepository) ListByAuthorID(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*domain.Review, error) {
	return m.reviewsResult(m.Called(ctx, authorID, limit, offset))
}

func (m *MockReviewRepository) Update(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, review))
}

func (m *MockReviewRepository) SetApproval(ctx context.Context, id uuid.UUID, approved bool) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, id, approved))
}

func (m *MockReviewRepository) SetResponse(ctx context.Context, id uuid.UUID, response *domain.ModeratorResponse) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, id, response))
}

func (m *MockReviewRepository) MarkVerifiedPurchase(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, id))
}

func (m *MockReviewRepository) ApplyVote(ctx context.Context, id, voterID uuid.UUID, action domain.VoteAction) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, id, voterID, action))
}

func (m *MockReviewRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, id))
}

// MockListCache is a mock implementation of ListCache
type MockListCache struct {
	mock.Mock
}

func (m *MockListCache) GetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int) (*cache.ReviewPage, error) {
	args := m.Called(ctx, productID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.ReviewPage), args.Error(1)
}

func (m *MockListCache) SetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int, page *cache.ReviewPage) error {
	args := m.Called(ctx, productID, limit, offset, page)
	return args.Error(0)
}

func (m *MockListCache) InvalidateReviewsList(ctx context.Context, productID uuid.UUID) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

// MockRatingTrigger records recompute triggers
type MockRatingTrigger struct {
	mock.Mock
}

func (m *MockRatingTrigger) Trigger(ctx context.Context, productID uuid.UUID) {
	m.Called(ctx, productID)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type serviceMocks struct {
	repo      *MockReviewRepository
	cache     *MockListCache
	rating    *MockRatingTrigger
	publisher *MockEventPublisher
}

func newTestService(cfg Config) (*Service, serviceMocks) {
	m := serviceMocks{
		repo:      new(MockReviewRepository),
		cache:     new(MockListCache),
		rating:    new(MockRatingTrigger),
		publisher: new(MockEventPublisher),
	}
	m.publisher.On("Publish", mock.Anything, "reviews.events", mock.Anything).Return(nil).Maybe()
	return NewService(m.repo, m.rating, m.cache, m.publisher, cfg, logger.New("test")), m
}

func userActor() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
}

func moderatorActor() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.RoleModerator}
}

func validInput(productID uuid.UUID) CreateInput {
	return CreateInput{
		ProductID: productID,
		Title:     "Great kettle",
		Body:      "Boils fast and stays quiet.",
		Rating:    5,
	}
}

func TestService_CreateReview_PendingDoesNotTrigger(t *testing.T) {
	service, m := newTestService(Config{})
	actor := userActor()
	productID := uuid.New()

	m.repo.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Review) bool {
		return r.AuthorID == actor.UserID && r.ProductID == productID && !r.IsApproved
	})).Return(nil)

	review, err := service.CreateReview(context.Background(), actor, validInput(productID))
	service.Wait()

	require.NoError(t, err)
	assert.Equal(t, actor.UserID, review.AuthorID)
	assert.False(t, review.IsApproved)
	m.repo.AssertExpectations(t)
	m.rating.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
	m.cache.AssertNotCalled(t, "InvalidateReviewsList", mock.Anything, mock.Anything)
	m.publisher.AssertCalled(t, "Publish", mock.Anything, "reviews.events", mock.Anything)
}

func TestService_CreateReview_AutoApprovedTriggers(t *testing.T) {
	service, m := newTestService(Config{AutoApprove: true})
	productID := uuid.New()

	m.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.rating.On("Trigger", mock.Anything, productID).Return()
	m.cache.On("InvalidateReviewsList", mock.Anything, productID).Return(nil)

	review, err := service.CreateReview(context.Background(), userActor(), validInput(productID))
	service.Wait()

	require.NoError(t, err)
	assert.True(t, review.IsApproved)
	m.rating.AssertExpectations(t)
	m.cache.AssertExpectations(t)
}

func TestService_CreateReview_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{name: "rating too low", mutate: func(in *CreateInput) { in.Rating = 0 }, field: "rating"},
		{name: "rating too high", mutate: func(in *CreateInput) { in.Rating = 6 }, field: "rating"},
		{name: "empty title", mutate: func(in *CreateInput) { in.Title = "   " }, field: "title"},
		{name: "markup only title", mutate: func(in *CreateInput) { in.Title = "<b></b>" }, field: "title"},
		{name: "long title", mutate: func(in *CreateInput) { in.Title = strings.Repeat("a", 101) }, field: "title"},
		{name: "long body", mutate: func(in *CreateInput) { in.Body = strings.Repeat("b", 1001) }, field: "body"},
		{name: "missing product", mutate: func(in *CreateInput) { in.ProductID = uuid.Nil }, field: "product_id"},
		{
			name: "relative image url",
			mutate: func(in *CreateInput) {
				in.Images = domain.ReviewImages{{URL: "/img.png"}}
			},
			field: "images[0].url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := newTestService(Config{})
			input := validInput(uuid.New())
			tt.mutate(&input)

			review, err := service.CreateReview(context.Background(), userActor(), input)

			assert.Nil(t, review)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
			m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_CreateReview_StripsMarkup(t *testing.T) {
	service, m := newTestService(Config{})
	input := validInput(uuid.New())
	input.Title = "<script>alert(1)</script>Nice"
	input.Body = "<p>Solid <b>build</b></p>"

	m.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	review, err := service.CreateReview(context.Background(), userActor(), input)
	service.Wait()

	require.NoError(t, err)
	assert.Equal(t, "Nice", review.Title)
	assert.Equal(t, "Solid build", review.Body)
}

func TestService_CreateReview_Duplicate(t *testing.T) {
	service, m := newTestService(Config{})

	m.repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrAlreadyExists)

	review, err := service.CreateReview(context.Background(), userActor(), validInput(uuid.New()))

	assert.Nil(t, review)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestService_UpdateReview_OnlyAuthor(t *testing.T) {
	service, m := newTestService(Config{})
	existing := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: uuid.New(), Title: "t", Body: "b", Rating: 3}
	title := "new title"

	m.repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)

	_, err := service.UpdateReview(context.Background(), moderatorActor(), existing.ID, domain.ReviewUpdate{Title: &title})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestService_UpdateReview_EmptyUpdate(t *testing.T) {
	service, m := newTestService(Config{})

	_, err := service.UpdateReview(context.Background(), userActor(), uuid.New(), domain.ReviewUpdate{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	m.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_UpdateReview_RatingChangeOnApprovedTriggers(t *testing.T) {
	service, m := newTestService(Config{})
	actor := userActor()
	existing := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: actor.UserID, Title: "t", Body: "b", Rating: 3, IsApproved: true}
	rating := 1

	m.repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	stored := *existing
	stored.Rating = 1
	m.repo.On("Update", mock.Anything, mock.MatchedBy(func(r *domain.Review) bool { return r.Rating == 1 })).Return(&stored, nil)
	m.rating.On("Trigger", mock.Anything, existing.ProductID).Return()
	m.cache.On("InvalidateReviewsList", mock.Anything, existing.ProductID).Return(nil)

	updated, err := service.UpdateReview(context.Background(), actor, existing.ID, domain.ReviewUpdate{Rating: &rating})
	service.Wait()

	require.NoError(t, err)
	assert.Equal(t, 1, updated.Rating)
	assert.Equal(t, 3, existing.Rating, "stored copy is not mutated in place")
	m.rating.AssertExpectations(t)
}

func TestService_UpdateReview_TextChangeOnApprovedDoesNotTrigger(t *testing.T) {
	service, m := newTestService(Config{})
	actor := userActor()
	existing := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: actor.UserID, Title: "t", Body: "b", Rating: 3, IsApproved: true}
	body := "longer body"
	stored := *existing
	stored.Body = body

	m.repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	m.repo.On("Update", mock.Anything, mock.Anything).Return(&stored, nil)
	m.cache.On("InvalidateReviewsList", mock.Anything, existing.ProductID).Return(nil)

	_, err := service.UpdateReview(context.Background(), actor, existing.ID, domain.ReviewUpdate{Body: &body})
	service.Wait()

	require.NoError(t, err)
	m.rating.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
	m.cache.AssertExpectations(t)
}

func TestService_UpdateReview_RatingChangeOnPendingDoesNotTrigger(t *testing.T) {
	service, m := newTestService(Config{})
	actor := userActor()
	existing := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: actor.UserID, Title: "t", Body: "b", Rating: 3}
	rating := 5
	stored := *existing
	stored.Rating = rating

	m.repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	m.repo.On("Update", mock.Anything, mock.Anything).Return(&stored, nil)

	_, err := service.UpdateReview(context.Background(), actor, existing.ID, domain.ReviewUpdate{Rating: &rating})
	service.Wait()

	require.NoError(t, err)
	m.rating.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}

func TestService_UpdateReview_DecidesOnStoredApproval(t *testing.T) {
	service, m := newTestService(Config{})
	actor := userActor()
	voter := uuid.New()
	existing := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: actor.UserID, Title: "t", Body: "b", Rating: 5}
	rating := 1

	// Approved and liked by other writers between the read and the write
	stored := *existing
	stored.Rating = rating
	stored.IsApproved = true
	stored.Likes = []uuid.UUID{voter}
	stored.HelpfulCount = 1

	m.repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	m.repo.On("Update", mock.Anything, mock.Anything).Return(&stored, nil)
	m.rating.On("Trigger", mock.Anything, existing.ProductID).Return().Once()
	m.cache.On("InvalidateReviewsList", mock.Anything, existing.ProductID).Return(nil)

	updated, err := service.UpdateReview(context.Background(), actor, existing.ID, domain.ReviewUpdate{Rating: &rating})
	service.Wait()

	require.NoError(t, err)
	m.rating.AssertExpectations(t)
	assert.True(t, updated.IsApproved)
	assert.Equal(t, []uuid.UUID{voter}, updated.Likes)
	assert.Equal(t, 1, updated.HelpfulCount)
}

func TestService_SetApproval_ModeratorOnly(t *testing.T) {
	service, m := newTestService(Config{})

	_, err := service.SetApproval(context.Background(), userActor(), uuid.New(), true)

	assert.ErrorIs(t, err, domain.ErrForbidden)
	m.repo.AssertNotCalled(t, "SetApproval", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_SetApproval_TriggersUnconditionally(t *testing.T) {
	for _, approved := range []bool{true, false} {
		service, m := newTestService(Config{})
		review := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), IsApproved: approved}

		m.repo.On("SetApproval", mock.Anything, review.ID, approved).Return(review, nil)
		m.rating.On("Trigger", mock.Anything, review.ProductID).Return().Once()
		m.cache.On("InvalidateReviewsList", mock.Anything, review.ProductID).Return(nil)

		_, err := service.SetApproval(context.Background(), moderatorActor(), review.ID, approved)
		service.Wait()

		require.NoError(t, err)
		m.rating.AssertExpectations(t)
	}
}

func TestService_DeleteReview(t *testing.T) {
	author := userActor()

	tests := []struct {
		name        string
		actor       domain.Actor
		approved    bool
		wantErr     error
		wantTrigger bool
	}{
		{name: "author deletes approved", actor: author, approved: true, wantTrigger: true},
		{name: "author deletes pending", actor: author},
		{name: "moderator deletes", actor: moderatorActor(), approved: true, wantTrigger: true},
		{name: "stranger forbidden", actor: userActor(), approved: true, wantErr: domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := newTestService(Config{})
			review := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: author.UserID, IsApproved: tt.approved}

			m.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)
			m.repo.On("Delete", mock.Anything, review.ID).Return(review, nil)
			m.rating.On("Trigger", mock.Anything, review.ProductID).Return()
			m.cache.On("InvalidateReviewsList", mock.Anything, review.ProductID).Return(nil)

			err := service.DeleteReview(context.Background(), tt.actor, review.ID)
			service.Wait()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				m.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			if tt.wantTrigger {
				m.rating.AssertCalled(t, "Trigger", mock.Anything, review.ProductID)
			} else {
				m.rating.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_DeleteReview_DecidesOnDeletedRow(t *testing.T) {
	service, m := newTestService(Config{})
	author := userActor()
	read := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: author.UserID}
	deleted := *read
	deleted.IsApproved = true

	m.repo.On("GetByID", mock.Anything, read.ID).Return(read, nil)
	m.repo.On("Delete", mock.Anything, read.ID).Return(&deleted, nil)
	m.rating.On("Trigger", mock.Anything, read.ProductID).Return().Once()
	m.cache.On("InvalidateReviewsList", mock.Anything, read.ProductID).Return(nil)

	err := service.DeleteReview(context.Background(), author, read.ID)
	service.Wait()

	require.NoError(t, err)
	m.rating.AssertExpectations(t)
}

func TestService_DeleteReview_NotFound(t *testing.T) {
	service, m := newTestService(Config{})
	id := uuid.New()

	m.repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrNotFound)

	err := service.DeleteReview(context.Background(), userActor(), id)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_AddResponse(t *testing.T) {
	service, m := newTestService(Config{})
	moderator := moderatorActor()
	review := &domain.Review{ID: uuid.New(), ProductID: uuid.New()}

	m.repo.On("SetResponse", mock.Anything, review.ID, mock.MatchedBy(func(r *domain.ModeratorResponse) bool {
		return r.Text == "Thanks!" && r.AdminID == moderator.UserID && !r.RespondedAt.IsZero()
	})).Return(review, nil)

	_, err := service.AddResponse(context.Background(), moderator, review.ID, "  <i>Thanks!</i> ")
	service.Wait()

	require.NoError(t, err)
	m.repo.AssertExpectations(t)
	m.rating.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}

func TestService_AddResponse_Rejects(t *testing.T) {
	service, m := newTestService(Config{})

	_, err := service.AddResponse(context.Background(), userActor(), uuid.New(), "hi")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = service.AddResponse(context.Background(), moderatorActor(), uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.AddResponse(context.Background(), moderatorActor(), uuid.New(), strings.Repeat("x", 1001))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	m.repo.AssertNotCalled(t, "SetResponse", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ToggleLike_NeverTriggers(t *testing.T) {
	service, m := newTestService(Config{})
	voter := userActor()
	review := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), IsApproved: true, Likes: []uuid.UUID{voter.UserID}, HelpfulCount: 1}

	m.repo.On("ApplyVote", mock.Anything, review.ID, voter.UserID, domain.VoteActionLike).Return(review, nil)
	m.cache.On("InvalidateReviewsList", mock.Anything, review.ProductID).Return(nil)

	got, err := service.ToggleLike(context.Background(), voter, review.ID)
	service.Wait()

	require.NoError(t, err)
	assert.Equal(t, 1, got.HelpfulCount)
	m.rating.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}

func TestService_ToggleDislike_NotFound(t *testing.T) {
	service, m := newTestService(Config{})
	id := uuid.New()

	m.repo.On("ApplyVote", mock.Anything, id, mock.Anything, domain.VoteActionDislike).Return(nil, domain.ErrNotFound)

	_, err := service.ToggleDislike(context.Background(), userActor(), id)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_GetReview_HidesPendingFromStrangers(t *testing.T) {
	service, m := newTestService(Config{})
	author := userActor()
	review := &domain.Review{ID: uuid.New(), AuthorID: author.UserID}

	m.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)

	_, err := service.GetReview(context.Background(), domain.Actor{}, review.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.GetReview(context.Background(), author, review.ID)
	assert.NoError(t, err)

	_, err = service.GetReview(context.Background(), moderatorActor(), review.ID)
	assert.NoError(t, err)
}

func TestService_ListProductReviews_CacheHit(t *testing.T) {
	service, m := newTestService(Config{})
	productID := uuid.New()
	page := &cache.ReviewPage{Reviews: []*domain.Review{{ID: uuid.New()}}, Total: 7}

	m.cache.On("GetReviewsList", mock.Anything, productID, 20, 0).Return(page, nil)

	reviews, total, err := service.ListProductReviews(context.Background(), productID, 0, -5)

	require.NoError(t, err)
	assert.Len(t, reviews, 1)
	assert.Equal(t, 7, total)
	m.repo.AssertNotCalled(t, "ListApprovedByProductID", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ListProductReviews_CacheMissPopulates(t *testing.T) {
	service, m := newTestService(Config{})
	productID := uuid.New()
	reviews := []*domain.Review{{ID: uuid.New()}, {ID: uuid.New()}}

	m.cache.On("GetReviewsList", mock.Anything, productID, 10, 20).Return(nil, domain.ErrNotFound)
	m.repo.On("ListApprovedByProductID", mock.Anything, productID, 10, 20).Return(reviews, nil)
	m.repo.On("CountApprovedByProductID", mock.Anything, productID).Return(22, nil)
	m.cache.On("SetReviewsList", mock.Anything, productID, 10, 20, &cache.ReviewPage{Reviews: reviews, Total: 22}).Return(nil)

	got, total, err := service.ListProductReviews(context.Background(), productID, 10, 20)

	require.NoError(t, err)
	assert.Equal(t, reviews, got)
	assert.Equal(t, 22, total)
	m.cache.AssertExpectations(t)
}

func TestService_ListProductReviews_CacheErrorFallsBack(t *testing.T) {
	service, m := newTestService(Config{})
	productID := uuid.New()

	m.cache.On("GetReviewsList", mock.Anything, productID, 20, 0).Return(nil, errors.New("redis down"))
	m.repo.On("ListApprovedByProductID", mock.Anything, productID, 20, 0).Return([]*domain.Review{}, nil)
	m.repo.On("CountApprovedByProductID", mock.Anything, productID).Return(0, nil)
	m.cache.On("SetReviewsList", mock.Anything, productID, 20, 0, mock.Anything).Return(errors.New("redis down"))

	_, total, err := service.ListProductReviews(context.Background(), productID, 20, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestService_ListPendingReviews_ModeratorOnly(t *testing.T) {
	service, m := newTestService(Config{})

	_, _, err := service.ListPendingReviews(context.Background(), userActor(), 20, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	m.repo.On("ListPending", mock.Anything, 20, 0).Return([]*domain.Review{}, nil)
	m.repo.On("CountPending", mock.Anything).Return(0, nil)

	_, total, err := service.ListPendingReviews(context.Background(), moderatorActor(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestService_MarkVerifiedPurchase(t *testing.T) {
	service, m := newTestService(Config{})
	review := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), VerifiedPurchase: true}

	_, err := service.MarkVerifiedPurchase(context.Background(), userActor(), review.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	m.repo.On("MarkVerifiedPurchase", mock.Anything, review.ID).Return(review, nil)

	got, err := service.MarkVerifiedPurchase(context.Background(), moderatorActor(), review.ID)
	service.Wait()

	require.NoError(t, err)
	assert.True(t, got.VerifiedPurchase)
	m.rating.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}
