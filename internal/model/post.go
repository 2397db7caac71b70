package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type PostStatus string

const (
	PostStatusPending          PostStatus = "pending"
	PostStatusClaimed          PostStatus = "claimed"
	PostStatusAwaitingApproval PostStatus = "awaiting_approval"
	PostStatusApproved         PostStatus = "approved"
	PostStatusPublished        PostStatus = "published"
	PostStatusRejected         PostStatus = "rejected"
	PostStatusFailed           PostStatus = "failed"
)

// Terminal reports whether a post in this status has left the workflow.
// Terminal statuses are never transitioned out of.
func (s PostStatus) Terminal() bool {
	switch s {
	case PostStatusPublished, PostStatusRejected, PostStatusFailed:
		return true
	}
	return false
}

type MediaType string

const (
	MediaTypeNone  MediaType = ""
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// PostRecord is one row in the post queue. The queue store is the source of
// truth for Status; RowToken is the row's stable handle between claim and
// resolution. ClaimToken is written into the row when the record is claimed
// so pending decisions can still be resolved after a process restart.
type PostRecord struct {
	RowToken      int64      `db:"row_token" json:"-"`
	PostID        string     `db:"post_id" json:"postId"`
	ChannelTarget string     `db:"channel_target" json:"channelTarget"`
	ApproverID    string     `db:"approver_id" json:"approverId"`
	Text          string     `db:"text" json:"text"`
	MediaType     MediaType  `db:"media_type" json:"mediaType,omitempty"`
	MediaRef      string     `db:"media_ref" json:"mediaRef,omitempty"`
	CTALabel      string     `db:"cta_label" json:"ctaLabel,omitempty"`
	CTAURL        string     `db:"cta_url" json:"ctaUrl,omitempty"`
	Status        PostStatus `db:"status" json:"status"`
	ClaimToken    string     `db:"claim_token" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}

// ApproverChatID parses the record's approver identity into a messaging chat
// id. A record that fails this check is invalid and must never be claimed.
func (p *PostRecord) ApproverChatID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(p.ApproverID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: approver id %q is not numeric", ErrorInvalidRecord, p.ApproverID)
	}
	return id, nil
}
