// Package engine implements the approval workflow: the post lifecycle state
// machine, the poll cycle that claims pending records and sends them for
// approval, and the decision handler that resolves approve/reject callbacks.
//
// The poll cycle and the decision handler run from independent goroutines.
// They never share record state directly; the queue store's conditional
// updates are the only cross-actor synchronization, so race losers observe
// a failed claim or resolve and back off silently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"uk.co.dudmesh.herald/internal/model"
	"uk.co.dudmesh.herald/pkg/render"
)

// QueueStore is the typed surface the engine needs from the post queue.
// Claim and Resolve are conditional updates: they return false when another
// actor won the transition.
type QueueStore interface {
	ListCandidates(ctx context.Context) ([]model.PostRecord, error)
	Read(ctx context.Context, rowToken int64) (*model.PostRecord, error)
	Claim(ctx context.Context, rowToken int64, claimToken string) (bool, error)
	Resolve(ctx context.Context, rowToken int64, to model.PostStatus) (bool, error)
	Release(ctx context.Context, rowToken int64) error
	UpdateStatus(ctx context.Context, rowToken int64, status model.PostStatus) error
}

// Messenger delivers approval requests to the approver and published posts
// to the channel. Send failures are reported as *model.DeliveryError.
type Messenger interface {
	SendApprovalRequest(ctx context.Context, approverID int64, req *ApprovalRequest) error
	Publish(ctx context.Context, post *ChannelPost) error
	Notify(ctx context.Context, approverID int64, text string) error
}

// ApprovalRequest is the rendered preview sent to the approver, with the two
// decision tokens carried by the approve/reject buttons.
type ApprovalRequest struct {
	Text         string
	MediaType    model.MediaType
	MediaRef     string
	ApproveToken string
	RejectToken  string
}

// ChannelPost is the final rendered content published to the channel.
type ChannelPost struct {
	Target    string
	Text      string
	MediaType model.MediaType
	MediaRef  string
	CTALabel  string
	CTAURL    string
}

// Decision is one approver action delivered by the messaging transport.
// The verdict is embedded in the token; ActorID is logged for audit but the
// record's approver_id remains the authority.
type Decision struct {
	Token   string
	ActorID int64
}

// Callback acknowledgement texts. The approver always gets an explicit
// confirmation or failure notice for every decision.
const (
	AckPublished     = "✅ Post published"
	AckRejected      = "❌ Post rejected"
	AckPublishFailed = "⚠️ Publishing failed, post marked as failed"
	AckStale         = "This request is no longer active"
	AckStoreBusy     = "Queue temporarily unavailable, try again"
)

// Engine owns the workflow state machine. Its only in-memory state is the
// set of claims sent for approval but not yet resolved; everything else
// lives in the queue store, which stays the source of truth for status.
type Engine struct {
	store QueueStore
	msgr  Messenger

	mu     sync.Mutex
	claims map[string]string // claim key -> claim token
}

func New(store QueueStore, msgr Messenger) *Engine {
	return &Engine{
		store:  store,
		msgr:   msgr,
		claims: map[string]string{},
	}
}

// RunPollCycle performs one scheduler pass: list the queue, pick the first
// pending record in insertion order, and send it for approval. Only one
// record is processed per cycle so the approver never has more than one new
// decision per tick. A cycle with no pending record is a no-op.
func (e *Engine) RunPollCycle(ctx context.Context) error {
	records, err := e.store.ListCandidates(ctx)
	if err != nil {
		return fmt.Errorf("listing candidates: %w", err)
	}

	for i := range records {
		if records[i].Status == model.PostStatusPending {
			return e.sendForApproval(ctx, &records[i])
		}
	}

	return nil
}

func (e *Engine) sendForApproval(ctx context.Context, rec *model.PostRecord) error {
	approverID, err := rec.ApproverChatID()
	var approveToken, rejectToken string
	if err == nil {
		approveToken, err = EncodeDecisionToken(VerdictApprove, rec.RowToken, rec.PostID)
	}
	if err == nil {
		rejectToken, err = EncodeDecisionToken(VerdictReject, rec.RowToken, rec.PostID)
	}
	if err != nil {
		// permanently broken record: report once, never retry
		log.Errorf("post %s: %v", rec.PostID, err)
		if uerr := e.store.UpdateStatus(ctx, rec.RowToken, model.PostStatusFailed); uerr != nil {
			return fmt.Errorf("failing invalid post %s: %w", rec.PostID, uerr)
		}
		return nil
	}

	claimToken := cuid2.Generate()
	claimed, err := e.store.Claim(ctx, rec.RowToken, claimToken)
	if err != nil {
		return fmt.Errorf("claiming post %s: %w", rec.PostID, err)
	}
	if !claimed {
		// another poll cycle or process got there first
		log.Debugf("post %s already claimed", rec.PostID)
		return nil
	}
	e.registerClaim(rec.RowToken, rec.PostID, claimToken)

	req := &ApprovalRequest{
		Text:         render.Normalize(rec.Text),
		MediaType:    rec.MediaType,
		MediaRef:     rec.MediaRef,
		ApproveToken: approveToken,
		RejectToken:  rejectToken,
	}

	if err := e.msgr.SendApprovalRequest(ctx, approverID, req); err != nil {
		e.dropClaim(rec.RowToken, rec.PostID)

		var delivery *model.DeliveryError
		if errors.As(err, &delivery) && delivery.Permanent {
			log.Errorf("post %s: approval request undeliverable: %v", rec.PostID, err)
			if uerr := e.store.UpdateStatus(ctx, rec.RowToken, model.PostStatusFailed); uerr != nil {
				return fmt.Errorf("failing undeliverable post %s: %w", rec.PostID, uerr)
			}
			return nil
		}

		log.Warnf("post %s: approval request failed, releasing claim: %v", rec.PostID, err)
		if rerr := e.store.Release(ctx, rec.RowToken); rerr != nil {
			return fmt.Errorf("releasing post %s: %w", rec.PostID, rerr)
		}
		return nil
	}

	if err := e.store.UpdateStatus(ctx, rec.RowToken, model.PostStatusAwaitingApproval); err != nil {
		// the request is already out; keep the claim so the decision can
		// still resolve the record
		return fmt.Errorf("marking post %s awaiting approval: %w", rec.PostID, err)
	}

	log.Infof("post %s sent for approval to %d", rec.PostID, approverID)
	return nil
}

// HandleDecision resolves one approver decision and returns the
// acknowledgement text to show the approver. Duplicate, replayed or forged
// tokens are answered as no-ops; they never re-trigger a publish.
func (e *Engine) HandleDecision(ctx context.Context, d Decision) string {
	verdict, rowToken, postID, err := DecodeDecisionToken(d.Token)
	if err != nil {
		log.Warnf("decision from %d: undecodable token", d.ActorID)
		return AckStale
	}

	claimToken, held := e.takeClaim(rowToken, postID)

	rec, err := e.store.Read(ctx, rowToken)
	if err != nil {
		if errors.Is(err, model.ErrorRecordNotFound) {
			log.Warnf("decision from %d for unknown row %d", d.ActorID, rowToken)
			return AckStale
		}
		if held {
			e.registerClaim(rowToken, postID, claimToken)
		}
		log.Errorf("reading post %s for decision: %v", postID, err)
		return AckStoreBusy
	}

	if rec.PostID != postID || rec.ClaimToken == "" ||
		(rec.Status != model.PostStatusClaimed && rec.Status != model.PostStatusAwaitingApproval) {
		log.Warnf("stale %s decision for post %s from %d (status %s)", verdict, postID, d.ActorID, rec.Status)
		return AckStale
	}
	if !held {
		// claim set lost in a restart; the claim token persisted in the row
		// lets the decision resolve anyway
		log.Infof("recovering claim for post %s from store", postID)
	}

	if verdict == VerdictReject {
		return e.resolveReject(ctx, d, rec)
	}
	return e.resolveApprove(ctx, d, rec)
}

func (e *Engine) resolveReject(ctx context.Context, d Decision, rec *model.PostRecord) string {
	resolved, err := e.store.Resolve(ctx, rec.RowToken, model.PostStatusRejected)
	if err != nil {
		e.registerClaim(rec.RowToken, rec.PostID, rec.ClaimToken)
		log.Errorf("rejecting post %s: %v", rec.PostID, err)
		return AckStoreBusy
	}
	if !resolved {
		log.Warnf("post %s already resolved, ignoring reject from %d", rec.PostID, d.ActorID)
		return AckStale
	}

	log.Infof("post %s rejected by %d", rec.PostID, d.ActorID)
	return AckRejected
}

func (e *Engine) resolveApprove(ctx context.Context, d Decision, rec *model.PostRecord) string {
	resolved, err := e.store.Resolve(ctx, rec.RowToken, model.PostStatusApproved)
	if err != nil {
		e.registerClaim(rec.RowToken, rec.PostID, rec.ClaimToken)
		log.Errorf("approving post %s: %v", rec.PostID, err)
		return AckStoreBusy
	}
	if !resolved {
		log.Warnf("post %s already resolved, ignoring approve from %d", rec.PostID, d.ActorID)
		return AckStale
	}

	post := &ChannelPost{
		Target:    rec.ChannelTarget,
		Text:      render.Normalize(rec.Text),
		MediaType: rec.MediaType,
		MediaRef:  rec.MediaRef,
		CTALabel:  rec.CTALabel,
		CTAURL:    rec.CTAURL,
	}

	if err := e.msgr.Publish(ctx, post); err != nil {
		log.Errorf("publishing post %s to %s: %v", rec.PostID, rec.ChannelTarget, err)
		if uerr := e.store.UpdateStatus(ctx, rec.RowToken, model.PostStatusFailed); uerr != nil {
			log.Errorf("failing post %s after publish error: %v", rec.PostID, uerr)
		}
		e.notifyApprover(ctx, rec, d.ActorID,
			fmt.Sprintf("Publishing %s to %s failed; the post has been marked as failed.", rec.PostID, rec.ChannelTarget))
		return AckPublishFailed
	}

	if err := e.store.UpdateStatus(ctx, rec.RowToken, model.PostStatusPublished); err != nil {
		// the channel message is out; only the bookkeeping write failed
		log.Errorf("post %s published but status write failed: %v", rec.PostID, err)
		return AckPublished
	}

	log.Infof("post %s approved by %d and published to %s", rec.PostID, d.ActorID, rec.ChannelTarget)
	return AckPublished
}

func (e *Engine) notifyApprover(ctx context.Context, rec *model.PostRecord, actorID int64, text string) {
	approverID, err := rec.ApproverChatID()
	if err != nil {
		approverID = actorID
	}
	if err := e.msgr.Notify(ctx, approverID, text); err != nil {
		log.Warnf("notifying approver %d about post %s: %v", approverID, rec.PostID, err)
	}
}

func (e *Engine) registerClaim(rowToken int64, postID, claimToken string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.claims[claimKey(rowToken, postID)] = claimToken
}

// takeClaim removes and returns the claim entry, reserving the decision for
// the caller. Concurrent duplicates miss the entry and fall through to the
// store's conditional resolve, which they lose.
func (e *Engine) takeClaim(rowToken int64, postID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := claimKey(rowToken, postID)
	token, ok := e.claims[key]
	if ok {
		delete(e.claims, key)
	}
	return token, ok
}

func (e *Engine) dropClaim(rowToken int64, postID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.claims, claimKey(rowToken, postID))
}

// PendingClaims reports how many approval requests are awaiting a decision
// in this process.
func (e *Engine) PendingClaims() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.claims)
}
