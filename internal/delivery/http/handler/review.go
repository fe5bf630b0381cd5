package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/delivery/http/middleware"
	"github.com/Pesokrava/review_engine/internal/delivery/http/request"
	"github.com/Pesokrava/review_engine/internal/delivery/http/response"
	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	"github.com/Pesokrava/review_engine/internal/usecase/review"
)

const reviewNotFound = "Review or product not found"

// ReviewHandler handles HTTP requests for reviews
type ReviewHandler struct {
	service *review.Service
	logger  *logger.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service *review.Service, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  log,
	}
}

// CreateReviewRequest represents the request body for creating a review
type CreateReviewRequest struct {
	ProductID string              `json:"product_id"`
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	Rating    int                 `json:"rating"`
	Images    domain.ReviewImages `json:"images,omitempty"`
}

// UpdateReviewRequest represents the request body for editing a review; omitted fields are unchanged
type UpdateReviewRequest struct {
	Title  *string              `json:"title,omitempty"`
	Body   *string              `json:"body,omitempty"`
	Rating *int                 `json:"rating,omitempty"`
	Images *domain.ReviewImages `json:"images,omitempty"`
}

// ApprovalRequest represents the request body for approving or unapproving a review
type ApprovalRequest struct {
	Approved *bool `json:"approved"`
}

// ResponseRequest represents the request body for a moderator response
type ResponseRequest struct {
	Text string `json:"text"`
}

// Create handles POST /api/v1/reviews
// @Summary Create a new review
// @Description Create a review for a product as the authenticated user. One live review per user and product.
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param review body CreateReviewRequest true "Review details"
// @Success 201 {object} map[string]interface{} "Review created successfully"
// @Failure 400 {object} map[string]interface{} "Validation failed"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 404 {object} map[string]string "Product not found"
// @Failure 409 {object} map[string]string "Product already reviewed by this user"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews [post]
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		response.ValidationError(w, map[string]string{"product_id": "must be a valid UUID"})
		return
	}

	created, err := h.service.CreateReview(r.Context(), actor, review.CreateInput{
		ProductID: productID,
		Title:     req.Title,
		Body:      req.Body,
		Rating:    req.Rating,
		Images:    req.Images,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Created(w, created)
}

// GetByID handles GET /api/v1/reviews/:id
// @Summary Get a review by ID
// @Description Pending reviews are visible only to their author and moderators
// @Tags Reviews
// @Produce json
// @Param id path string true "Review ID (UUID)"
// @Success 200 {object} map[string]interface{} "Review details"
// @Failure 400 {object} map[string]string "Invalid review ID"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id} [get]
func (h *ReviewHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reviewID(w, r)
	if !ok {
		return
	}

	// Anonymous viewers get the zero actor and only see approved reviews
	viewer, _ := middleware.ActorFromContext(r.Context())

	found, err := h.service.GetReview(r.Context(), viewer, id)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Success(w, found)
}

// Update handles PUT /api/v1/reviews/:id
// @Summary Update a review
// @Description Edit title, body, rating or images of your own review. Rating changes on approved reviews recompute the product aggregate.
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID (UUID)"
// @Param review body UpdateReviewRequest true "Fields to change"
// @Success 200 {object} map[string]interface{} "Review updated successfully"
// @Failure 400 {object} map[string]interface{} "Validation failed"
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id} [put]
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.reviewID(w, r)
	if !ok {
		return
	}

	var req UpdateReviewRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.UpdateReview(r.Context(), actor, id, domain.ReviewUpdate{
		Title:  req.Title,
		Body:   req.Body,
		Rating: req.Rating,
		Images: req.Images,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Success(w, updated)
}

// Delete handles DELETE /api/v1/reviews/:id
// @Summary Delete a review
// @Description Soft delete a review. Allowed for the author and moderators.
// @Tags Reviews
// @Security BearerAuth
// @Param id path string true "Review ID (UUID)"
// @Success 204 "Review deleted successfully"
// @Failure 400 {object} map[string]string "Invalid review ID"
// @Failure 403 {object} map[string]string "Not permitted"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.reviewID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteReview(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.NoContent(w)
}

// SetApproval handles PUT /api/v1/reviews/:id/approval
// @Summary Approve or unapprove a review
// @Description Moderators only. The product rating aggregate is recomputed.
// @Tags Moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID (UUID)"
// @Param approval body ApprovalRequest true "Approval state"
// @Success 200 {object} map[string]interface{} "Review approval changed"
// @Failure 400 {object} map[string]interface{} "Validation failed"
// @Failure 403 {object} map[string]string "Moderators only"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id}/approval [put]
func (h *ReviewHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.reviewID(w, r)
	if !ok {
		return
	}

	var req ApprovalRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Approved == nil {
		response.ValidationError(w, map[string]string{"approved": "is required"})
		return
	}

	updated, err := h.service.SetApproval(r.Context(), actor, id, *req.Approved)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Success(w, updated)
}

// AddResponse handles PUT /api/v1/reviews/:id/response
// @Summary Respond to a review
// @Description Moderators only. Replaces any previous response.
// @Tags Moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID (UUID)"
// @Param response body ResponseRequest true "Response text"
// @Success 200 {object} map[string]interface{} "Response saved"
// @Failure 400 {object} map[string]interface{} "Validation failed"
// @Failure 403 {object} map[string]string "Moderators only"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id}/response [put]
func (h *ReviewHandler) AddResponse(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.reviewID(w, r)
	if !ok {
		return
	}

	var req ResponseRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.AddResponse(r.Context(), actor, id, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Success(w, updated)
}

// MarkVerifiedPurchase handles PUT /api/v1/reviews/:id/verified-purchase
// @Summary Mark a review as a verified purchase
// @Description Moderators only. The flag cannot be cleared.
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID (UUID)"
// @Success 200 {object} map[string]interface{} "Review marked"
// @Failure 403 {object} map[string]string "Moderators only"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id}/verified-purchase [put]
func (h *ReviewHandler) MarkVerifiedPurchase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.reviewID(w, r)
	if !ok {
		return
	}

	updated, err := h.service.MarkVerifiedPurchase(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Success(w, updated)
}

// Like handles POST /api/v1/reviews/:id/like
// @Summary Toggle a like
// @Description Likes the review, or removes your like if you already liked it. A like replaces a dislike.
// @Tags Votes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID (UUID)"
// @Success 200 {object} map[string]interface{} "Vote applied"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id}/like [post]
func (h *ReviewHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, h.service.ToggleLike)
}

// Dislike handles POST /api/v1/reviews/:id/dislike
// @Summary Toggle a dislike
// @Description Dislikes the review, or removes your dislike if you already disliked it. A dislike replaces a like.
// @Tags Votes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID (UUID)"
// @Success 200 {object} map[string]interface{} "Vote applied"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/{id}/dislike [post]
func (h *ReviewHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, h.service.ToggleDislike)
}

func (h *ReviewHandler) vote(w http.ResponseWriter, r *http.Request, toggle func(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Review, error)) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.reviewID(w, r)
	if !ok {
		return
	}

	updated, err := toggle(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Success(w, updated)
}

// ListPending handles GET /api/v1/reviews/pending
// @Summary List reviews awaiting moderation
// @Description Moderators only. Oldest first.
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of items per page (max 100)" default(20)
// @Param offset query int false "Number of items to skip" default(0)
// @Success 200 {object} map[string]interface{} "Paginated list of pending reviews"
// @Failure 403 {object} map[string]string "Moderators only"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reviews/pending [get]
func (h *ReviewHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	limit, offset := request.GetPaginationParams(r)

	reviews, total, err := h.service.ListPendingReviews(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Paginated(w, reviews, total, limit, offset)
}

// ListMine handles GET /api/v1/users/me/reviews
// @Summary List your reviews
// @Description Every live review written by the authenticated user, approved or not
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of items per page (max 100)" default(20)
// @Param offset query int false "Number of items to skip" default(0)
// @Success 200 {object} map[string]interface{} "List of reviews"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /users/me/reviews [get]
func (h *ReviewHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	limit, offset := request.GetPaginationParams(r)

	reviews, err := h.service.ListAuthorReviews(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Success(w, reviews)
}

// GetByProductID handles GET /api/v1/products/:id/reviews
// @Summary Get reviews for a product
// @Description Get a paginated list of approved reviews for a specific product. Results are cached.
// @Tags Reviews
// @Produce json
// @Param id path string true "Product ID (UUID)"
// @Param limit query int false "Number of items per page (max 100)" default(20)
// @Param offset query int false "Number of items to skip" default(0)
// @Success 200 {object} map[string]interface{} "Paginated list of reviews"
// @Failure 400 {object} map[string]string "Invalid product ID"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /products/{id}/reviews [get]
func (h *ReviewHandler) GetByProductID(w http.ResponseWriter, r *http.Request) {
	productID, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	limit, offset := request.GetPaginationParams(r)

	reviews, total, err := h.service.ListProductReviews(r.Context(), productID, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, reviewNotFound)
		return
	}

	response.Paginated(w, reviews, total, limit, offset)
}

// actor returns the authenticated caller or writes 401
func (h *ReviewHandler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required")
	}
	return actor, ok
}

func (h *ReviewHandler) reviewID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid review ID")
		return uuid.Nil, false
	}
	return id, true
}
