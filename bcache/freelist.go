package bcache

import "sync"

// A freePool holds one processor's reusable slots, linked most
// recently released at the head. The tail is therefore the
// least-recently-released slot and the eviction victim.
type freePool struct {
	mu   sync.Mutex
	head *Buf
	tail *Buf
}

// pushHead links b at the head of pool pid. Caller holds p.mu.
func (p *freePool) pushHead(b *Buf, pid uint64) {
	b.loc = location{kind: inFree, id: pid}
	b.prev = nil
	b.next = p.head
	if p.head != nil {
		p.head.prev = b
	} else {
		p.tail = b
	}
	p.head = b
}

// popTail unlinks and returns the LRU slot, or nil if the pool is
// empty. Caller holds p.mu.
func (p *freePool) popTail() *Buf {
	b := p.tail
	if b == nil {
		return nil
	}
	if b.refcnt != 0 {
		panic("bget: freelist is not free")
	}
	p.tail = b.prev
	if p.tail != nil {
		p.tail.next = nil
	} else {
		p.head = nil
	}
	b.next = nil
	b.prev = nil
	return b
}
