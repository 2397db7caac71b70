package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.herald/internal/model"
	"uk.co.dudmesh.herald/internal/queuestore"
)

// herald-enqueue appends one post record to the queue from the command line,
// standing in for whatever producer feeds the queue in production.
func main() {
	var (
		dbPath    = flag.String("db", "herald.db", "path to the queue database")
		postID    = flag.String("post-id", "", "post id (generated when empty)")
		channel   = flag.String("channel", "", "channel target: @username or numeric chat id")
		approver  = flag.String("approver", "", "approver chat id (numeric)")
		text      = flag.String("text", "", "post body")
		mediaType = flag.String("media-type", "", "photo or video (empty for text-only)")
		mediaRef  = flag.String("media-ref", "", "telegram file id of uploaded media")
		ctaLabel  = flag.String("cta-label", "", "label for the call-to-action button")
		ctaURL    = flag.String("cta-url", "", "url for the call-to-action button")
	)
	flag.Parse()

	if *channel == "" || *approver == "" || *text == "" {
		flag.Usage()
		log.Fatalf("channel, approver and text are required")
	}

	record := &model.PostRecord{
		PostID:        *postID,
		ChannelTarget: *channel,
		ApproverID:    *approver,
		Text:          *text,
		MediaType:     model.MediaType(*mediaType),
		MediaRef:      *mediaRef,
		CTALabel:      *ctaLabel,
		CTAURL:        *ctaURL,
	}
	if record.PostID == "" {
		record.PostID = model.CreateID()
	}
	if _, err := record.ApproverChatID(); err != nil {
		log.Fatalf("%+v", err)
	}

	store, err := queuestore.Open(*dbPath)
	if err != nil {
		log.Fatalf("opening queue store: %+v", err)
	}
	defer store.Close()

	if err := store.Append(context.Background(), record); err != nil {
		log.Fatalf("appending record: %+v", err)
	}

	fmt.Printf("queued post %s as row %d\n", record.PostID, record.RowToken)
}
