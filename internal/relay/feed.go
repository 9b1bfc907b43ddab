package relay

import (
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
)

// Feed fans progress events out to any number of consumers
type Feed struct {
	topic     topic.Topic[*api.ProgressEvent]
	prod      topic.Producer[*api.ProgressEvent]
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewFeed creates an empty progress feed
func NewFeed() *Feed {
	t := caravan.NewTopic[*api.ProgressEvent]()
	return &Feed{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// Publish sends ev to every consumer. Publishing on a closed feed is a
// no-op
func (f *Feed) Publish(ev *api.ProgressEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	message.Send(f.prod, ev)
}

// NewConsumer returns a consumer that receives events published after it
// was created
func (f *Feed) NewConsumer() topic.Consumer[*api.ProgressEvent] {
	return f.topic.NewConsumer()
}

// Close stops the feed's producer
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closed = true
		f.prod.Close()
	})
}

// Matches reports whether ev passes a client subscription filter
func Matches(sub api.ClientSubscription, ev *api.ProgressEvent) bool {
	if sub.BatchID != "" && sub.BatchID != ev.BatchID {
		return false
	}
	if len(sub.Types) == 0 {
		return true
	}
	for _, t := range sub.Types {
		if t == ev.Type {
			return true
		}
	}
	return false
}
