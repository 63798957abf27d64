package store

import "sync"

// notifier fans committed changes out to in-process subscribers. Every
// backend embeds one; cross-instance fanout is deliberately out of scope.
type notifier struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	// collections is nil when the subscriber wants every collection
	collections map[string]bool
	ch          chan Change
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscriber)}
}

func (n *notifier) subscribe(collections ...string) (<-chan Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var set map[string]bool
	if len(collections) > 0 {
		set = make(map[string]bool, len(collections))
		for _, c := range collections {
			set[c] = true
		}
	}

	id := n.next
	n.next++
	sub := &subscriber{collections: set, ch: make(chan Change, 64)}
	n.subs[id] = sub

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if s, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// publish delivers ch to every interested subscriber. Delivery never
// blocks the write path; a subscriber that has fallen 64 changes behind
// misses the oldest ones.
func (n *notifier) publish(ch Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.subs {
		if s.collections != nil && !s.collections[ch.Collection] {
			continue
		}
		select {
		case s.ch <- ch:
		default:
		}
	}
}
