package service

import (
	"sync"
)

// RingList is a circular list of strings with a set capacity.
// Workers use it to track the guids they are working on, since nsqd
// may deliver a message more than once.
// This structure uses mutexes for adding and searching, so it
// should be safe to share across goroutines.
type RingList struct {
	capacity int
	index    int
	items    []string
	mutex    *sync.RWMutex
}

// NewRingList creates a new RingList with the specified capacity.
func NewRingList(capacity int) *RingList {
	return &RingList{
		capacity: capacity,
		index:    0,
		items:    make([]string, capacity),
		mutex:    &sync.RWMutex{},
	}
}

// Add adds an item to the Ringlist. If capacity is ten, then
// the eleventh item you add overwrites item #1.
func (list *RingList) Add(item string) {
	list.mutex.Lock()
	list.index += 1
	if list.index == list.capacity {
		list.index = 0
	}
	list.items[list.index] = item
	list.mutex.Unlock()
}

// Contains returns true if the item is in the RingList.
func (list *RingList) Contains(item string) bool {
	exists := false
	list.mutex.RLock()
	for _, value := range list.items {
		if value == item {
			exists = true
			break
		}
	}
	list.mutex.RUnlock()
	return exists
}

// Del deletes all instances of the item from the list,
// replacing those instances with an empty string.
func (list *RingList) Del(item string) {
	if item == "" {
		return
	}
	list.mutex.Lock()
	for i, value := range list.items {
		if value == item {
			list.items[i] = ""
		}
	}
	list.mutex.Unlock()
}

// AddIfAbsent adds item and returns true, unless the item is already
// in the list, in which case it returns false. The check and the add
// happen under one lock. An empty slot is reused before the oldest
// item is overwritten.
func (list *RingList) AddIfAbsent(item string) bool {
	list.mutex.Lock()
	defer list.mutex.Unlock()
	empty := -1
	for i, value := range list.items {
		if value == item {
			return false
		}
		if value == "" && empty < 0 {
			empty = i
		}
	}
	if empty >= 0 {
		list.items[empty] = item
		return true
	}
	list.index += 1
	if list.index == list.capacity {
		list.index = 0
	}
	list.items[list.index] = item
	return true
}

// Items returns the non-empty items in the list.
func (list *RingList) Items() []string {
	list.mutex.RLock()
	defer list.mutex.RUnlock()
	items := make([]string, 0, len(list.items))
	for _, value := range list.items {
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
