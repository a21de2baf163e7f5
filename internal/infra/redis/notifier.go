// Package redis carries the cross-instance pieces of the service: the
// session change feed (pub/sub) and the quiz document cache.
package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
)

// Notifier fans session-row updates out over Redis pub/sub, one channel per
// session id. It implements both sides of the feed: stores publish into it,
// view controllers watch it.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

// Publish broadcasts the updated session row. Delivery is best-effort; a
// watcher that misses an update reconciles on the next one, since every
// payload carries the full row.
func (n *Notifier) Publish(ctx context.Context, sess domain.Session) {
	payload, err := json.Marshal(sess)
	if err != nil {
		log.Printf("notifier: marshal session %s: %v", sess.ID, err)
		return
	}
	if err := n.client.Publish(ctx, channelFor(sess.ID), payload).Err(); err != nil {
		log.Printf("notifier: publish session %s: %v", sess.ID, err)
	}
}

// Watch subscribes to one session's updates. The cancel function is
// idempotent and tears the subscription down; the returned channel closes
// once no further updates can arrive.
func (n *Notifier) Watch(ctx context.Context, sessionID string) (<-chan domain.Session, func(), error) {
	sub := n.client.Subscribe(ctx, channelFor(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan domain.Session, 8)
	done := make(chan struct{})

	go func() {
		defer close(out)
		in := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var sess domain.Session
				if err := json.Unmarshal([]byte(msg.Payload), &sess); err != nil {
					log.Printf("notifier: bad payload on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- sess:
				default:
					// drop the stale buffered row; the newest one wins
					select {
					case <-out:
					default:
					}
					out <- sess
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}

func channelFor(sessionID string) string {
	return "session:updates:" + sessionID
}
