package common

import (
	"bookpay/src/lib"
	"context"
	"encoding/json"
	"log"
	"time"
)

// SNSActivityTracker publishes activity events such as a completed booking
// to an SNS topic.
type SNSActivityTracker struct {
	client   lib.SNSAPI
	topicArn string
	now      func() time.Time
}

func NewSNSActivityTracker(client lib.SNSAPI, topicArn string) *SNSActivityTracker {
	return &SNSActivityTracker{client: client, topicArn: topicArn, now: time.Now}
}

func (t *SNSActivityTracker) Track(ctx context.Context, event string, attrs map[string]string) error {
	if t.client == nil || t.topicArn == "" {
		log.Printf("[Activity] event=%s attrs=%v (no topic configured)\n", event, attrs)
		return nil
	}
	body, err := json.Marshal(map[string]any{
		"event":       event,
		"attributes":  attrs,
		"occurred_at": t.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	msgAttrs := map[string]string{"event": event}
	for k, v := range attrs {
		msgAttrs[k] = v
	}
	id, err := lib.SNSPublish(ctx, t.client, t.topicArn, string(body), msgAttrs)
	if err != nil {
		return err
	}
	log.Printf("[Activity] event=%s published message=%s\n", event, id)
	return nil
}
