package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DocumentStore is the shared key-value document store, addressed by
// hierarchical slash-separated paths (users/{id}, responses/{id}/{qid},
// analysis/{qid}, comprehensiveAnalysis).
//
// Get reads the value at a path: a leaf returns its stored document, an
// interior path returns the assembled subtree. Set overwrites the whole
// subtree at a path. Update merges fields into the document at a path.
// Subscribe registers a callback fired with the current value immediately and
// again after every write that touches the path; the returned func cancels
// the subscription.
type DocumentStore interface {
	Get(ctx context.Context, path string, dest any) (bool, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Subscribe(path string, fn func(raw json.RawMessage)) (cancel func())
}

// --- subscription fan-out shared by store implementations ---

type storeSubscriber struct {
	path string
	fn   func(raw json.RawMessage)
}

type storeNotifier struct {
	mu   sync.Mutex
	subs map[int]storeSubscriber
	next int
}

func newStoreNotifier() *storeNotifier {
	return &storeNotifier{subs: make(map[int]storeSubscriber)}
}

func (n *storeNotifier) add(path string, fn func(json.RawMessage)) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	n.subs[id] = storeSubscriber{path: path, fn: fn}
	return id
}

func (n *storeNotifier) remove(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// notify fires every subscriber whose path overlaps the changed path, in
// either direction: a write below the subscription or a write to an ancestor
// both change the subscribed view.
func (n *storeNotifier) notify(changed string, read func(path string) json.RawMessage) {
	n.mu.Lock()
	subs := make([]storeSubscriber, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		if pathsOverlap(s.path, changed) {
			s.fn(read(s.path))
		}
	}
}

func pathsOverlap(a, b string) bool {
	return a == b || strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}

// --- in-memory implementation ---

// MemoryStore keeps documents in a flat leaf map. It is the default store in
// dev mode and the store used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	leaves   map[string]json.RawMessage
	notifier *storeNotifier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leaves:   make(map[string]json.RawMessage),
		notifier: newStoreNotifier(),
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	raw := m.readLocked(path)
	m.mu.RUnlock()
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	m.mu.Lock()
	m.deleteSubtreeLocked(path)
	m.leaves[path] = raw
	m.mu.Unlock()
	m.notifier.notify(path, m.snapshot)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	doc := map[string]any{}
	if raw, ok := m.leaves[path]; ok {
		if err := json.Unmarshal(raw, &doc); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	for k, v := range fields {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	m.leaves[path] = raw
	m.mu.Unlock()
	m.notifier.notify(path, m.snapshot)
	return nil
}

func (m *MemoryStore) Subscribe(path string, fn func(raw json.RawMessage)) func() {
	id := m.notifier.add(path, fn)
	fn(m.snapshot(path))
	return func() { m.notifier.remove(id) }
}

func (m *MemoryStore) snapshot(path string) json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readLocked(path)
}

func (m *MemoryStore) readLocked(path string) json.RawMessage {
	if raw, ok := m.leaves[path]; ok {
		return raw
	}
	return assembleSubtree(path, func(visit func(leafPath string, raw json.RawMessage)) {
		for p, raw := range m.leaves {
			visit(p, raw)
		}
	})
}

func (m *MemoryStore) deleteSubtreeLocked(path string) {
	delete(m.leaves, path)
	prefix := path + "/"
	for p := range m.leaves {
		if strings.HasPrefix(p, prefix) {
			delete(m.leaves, p)
		}
	}
}

// assembleSubtree builds the nested object for an interior path out of the
// leaves stored beneath it. Returns nil when nothing lives under the path.
func assembleSubtree(path string, each func(visit func(leafPath string, raw json.RawMessage))) json.RawMessage {
	prefix := path + "/"
	type leaf struct {
		rel string
		raw json.RawMessage
	}
	var leaves []leaf
	each(func(p string, raw json.RawMessage) {
		if strings.HasPrefix(p, prefix) {
			leaves = append(leaves, leaf{rel: strings.TrimPrefix(p, prefix), raw: raw})
		}
	})
	if len(leaves) == 0 {
		return nil
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].rel < leaves[j].rel })

	root := map[string]any{}
	for _, l := range leaves {
		segs := strings.Split(l.rel, "/")
		node := root
		for _, s := range segs[:len(segs)-1] {
			child, ok := node[s].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[s] = child
			}
			node = child
		}
		var v any
		if err := json.Unmarshal(l.raw, &v); err == nil {
			node[segs[len(segs)-1]] = v
		}
	}
	raw, err := json.Marshal(root)
	if err != nil {
		return nil
	}
	return raw
}
