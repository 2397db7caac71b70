package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"uk.co.dudmesh.herald/internal/model"
)

type QueueAppender interface {
	Append(ctx context.Context, record *model.PostRecord) error
}

type EnqueueRequest struct {
	PostID        string          `json:"postId"`
	ChannelTarget string          `json:"channelTarget"`
	ApproverID    string          `json:"approverId"`
	Text          string          `json:"text"`
	MediaType     model.MediaType `json:"mediaType"`
	MediaRef      string          `json:"mediaRef"`
	CTALabel      string          `json:"ctaLabel"`
	CTAURL        string          `json:"ctaUrl"`
}

// Enqueue appends a post record to the queue on behalf of a producer. A
// missing post id is generated; a missing approver falls back to the
// configured default.
func Enqueue(store QueueAppender, defaultApproverID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := EnqueueRequest{}
		if err := c.Bind(&params); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
		}

		if params.Text == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "text is required")
		}
		if params.ChannelTarget == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "channelTarget is required")
		}

		approverID := params.ApproverID
		if approverID == "" {
			approverID = defaultApproverID
		}
		if _, err := strconv.ParseInt(approverID, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "approverId must be a numeric chat id")
		}

		postID := params.PostID
		if postID == "" {
			postID = model.CreateID()
		}

		record := &model.PostRecord{
			PostID:        postID,
			ChannelTarget: params.ChannelTarget,
			ApproverID:    approverID,
			Text:          params.Text,
			MediaType:     params.MediaType,
			MediaRef:      params.MediaRef,
			CTALabel:      params.CTALabel,
			CTAURL:        params.CTAURL,
			Status:        model.PostStatusPending,
		}
		if err := store.Append(c.Request().Context(), record); err != nil {
			return fmt.Errorf("appending record: %w", err)
		}

		return c.JSON(http.StatusCreated, record)
	}
}
