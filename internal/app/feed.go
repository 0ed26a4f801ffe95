package app

import (
	"sync"

	"quiz-learning-service/internal/domain"
)

// RankingFeed fans ranking snapshots out to subscribers.
type RankingFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.Ranking]struct{}
}

func NewRankingFeed() *RankingFeed {
	return &RankingFeed{subscribers: make(map[chan domain.Ranking]struct{})}
}

// Subscribe registers a subscriber primed with initial.
func (f *RankingFeed) Subscribe(initial domain.Ranking) (<-chan domain.Ranking, func()) {
	ch := make(chan domain.Ranking, 8)
	ch <- initial

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// HasSubscribers reports whether anyone is listening.
func (f *RankingFeed) HasSubscribers() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) > 0
}

// Publish delivers a snapshot to every subscriber without blocking.
func (f *RankingFeed) Publish(ranking domain.Ranking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- ranking:
		default:
			// slow subscriber: drop the stale snapshot in favour of the new one
			select {
			case <-ch:
			default:
			}
			ch <- ranking
		}
	}
}
