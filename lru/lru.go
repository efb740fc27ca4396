// Package lru implements an access-ordered map. It never evicts on its own;
// callers decide when and what to drop using PeekOldest and RemoveOldest.
package lru

import "container/list"

// Map is not safe for concurrent use.
type Map[K comparable, V any] struct {
	items map[K]*list.Element
	order *list.List // front = newest, back = oldest
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		items: make(map[K]*list.Element),
		order: list.New(),
	}
}

// Put inserts or replaces the value for key and marks it most recently used.
func (m *Map[K, V]) Put(key K, value V) {
	if elem, exists := m.items[key]; exists {
		m.order.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		return
	}

	elem := m.order.PushFront(&entry[K, V]{key: key, value: value})
	m.items[key] = elem
}

// Get returns the value for key and marks it most recently used.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if elem, exists := m.items[key]; exists {
		m.order.MoveToFront(elem)
		return elem.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Peek is Get without the recency update.
func (m *Map[K, V]) Peek(key K) (V, bool) {
	if elem, exists := m.items[key]; exists {
		return elem.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

func (m *Map[K, V]) Contains(key K) bool {
	_, exists := m.items[key]
	return exists
}

func (m *Map[K, V]) Remove(key K) (V, bool) {
	elem, exists := m.items[key]
	if !exists {
		var zero V
		return zero, false
	}
	m.removeElement(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// PeekOldest returns the least recently used entry without touching the order.
func (m *Map[K, V]) PeekOldest() (K, V, bool) {
	elem := m.order.Back()
	if elem == nil {
		var (
			zeroK K
			zeroV V
		)
		return zeroK, zeroV, false
	}
	e := elem.Value.(*entry[K, V])
	return e.key, e.value, true
}

func (m *Map[K, V]) RemoveOldest() (K, V, bool) {
	elem := m.order.Back()
	if elem == nil {
		var (
			zeroK K
			zeroV V
		)
		return zeroK, zeroV, false
	}
	m.removeElement(elem)
	e := elem.Value.(*entry[K, V])
	return e.key, e.value, true
}

// Keys returns the keys from oldest to newest.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, len(m.items))
	for elem := m.order.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(*entry[K, V]).key)
	}
	return keys
}

func (m *Map[K, V]) Len() int {
	return m.order.Len()
}

func (m *Map[K, V]) Clear() {
	m.items = make(map[K]*list.Element)
	m.order = list.New()
}

func (m *Map[K, V]) removeElement(elem *list.Element) {
	m.order.Remove(elem)
	delete(m.items, elem.Value.(*entry[K, V]).key)
}
