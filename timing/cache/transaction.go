package cache

import (
	"errors"
	"fmt"

	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/mem"
)

// State is the cache controller state.
type State uint8

// Controller states.
const (
	StateIdle State = iota
	StateFetch
	StateWriteback
	// StateOpWriteback flushes a dirty line for a cache instruction.
	StateOpWriteback
)

func (s State) String() string {
	switch s {
	case StateFetch:
		return "FETCH"
	case StateWriteback:
		return "WRITEBACK"
	case StateOpWriteback:
		return "OP_WRITEBACK"
	}
	return "IDLE"
}

// Transaction is the in-flight fill or writeback of one line.
type Transaction struct {
	// Remaining counts words still to transfer.
	Remaining int
	// Addr is the line-aligned address being transferred.
	Addr       uint32
	Way        int
	Index      int
	Mode       exc.Mode
	Invalidate bool
	// Client is the bus master whose access caused the transaction.
	Client mem.ClientID

	started bool
	next    int
	// refill is the line to fetch after a victim writeback completes.
	refill     uint32
	refillMode exc.Mode
	hasRefill  bool
}

// Transaction returns a copy of the in-flight transaction, if any.
func (c *Cache) Transaction() (Transaction, bool) {
	if c.trans == nil {
		return Transaction{}, false
	}
	return *c.trans, true
}

// RequestBlock starts servicing a miss on addr. It returns false if the line
// is already present or the controller is busy with another transaction;
// callers keep polling Ready and re-requesting.
func (c *Cache) RequestBlock(addr uint32, mode exc.Mode, client mem.ClientID) bool {
	if c.state != StateIdle {
		return false
	}
	if l, _ := c.lookup(addr); l != nil {
		return false
	}

	c.stats.Misses++

	index := c.Index(addr)
	way := c.victim(index)
	victim := c.lineAt(way, index)
	block := c.BlockAddr(addr)

	if victim.Valid {
		c.stats.Evictions++
	}

	if victim.Valid && victim.Dirty && mode != exc.InstFetch && !c.isolated {
		c.trans = c.newTransaction(c.lineAddr(victim.Tag, index), way, index, exc.DataStore, client)
		c.trans.refill = block
		c.trans.refillMode = mode
		c.trans.hasRefill = true
		c.state = StateWriteback
		c.logger.V(2).Info("writeback victim", "cache", c.name,
			"victim", fmt.Sprintf("0x%08x", c.trans.Addr), "refill", fmt.Sprintf("0x%08x", block))
		return true
	}

	c.startFetch(block, way, index, mode, client)
	return true
}

func (c *Cache) newTransaction(addr uint32, way, index int, mode exc.Mode, client mem.ClientID) *Transaction {
	return &Transaction{
		Remaining: c.blockWords,
		Addr:      addr,
		Way:       way,
		Index:     index,
		Mode:      mode,
		Client:    client,
	}
}

func (c *Cache) startFetch(block uint32, way, index int, mode exc.Mode, client mem.ClientID) {
	l := c.lineAt(way, index)
	l.Valid = false
	l.Dirty = false

	c.trans = c.newTransaction(block, way, index, mode, client)
	c.state = StateFetch
	c.logger.V(2).Info("fill", "cache", c.name, "addr", fmt.Sprintf("0x%08x", block), "way", way, "index", index)
}

func (c *Cache) startOpWriteback(l *Line, way, index int, invalidate bool, client mem.ClientID) {
	c.trans = c.newTransaction(c.lineAddr(l.Tag, index), way, index, exc.DataStore, client)
	c.trans.Invalidate = invalidate
	c.state = StateOpWriteback
}

// Step advances the in-flight transaction by at most one word.
func (c *Cache) Step() {
	t := c.trans
	if t == nil {
		return
	}

	if !t.started {
		c.begin(t)
		return
	}

	addr := t.Addr + uint32(4*t.next)
	if !c.bus.Ready(addr, t.Mode, c.id) {
		return
	}

	l := c.lineAt(t.Way, t.Index)
	if c.state == StateFetch {
		v, err := c.bus.FetchWord(addr, t.Mode, c.id)
		if err != nil {
			c.abort(err)
			return
		}
		l.Data[t.next] = v
	} else {
		if err := c.bus.StoreWord(addr, l.Data[t.next], c.id); err != nil {
			c.abort(err)
			return
		}
	}

	t.next++
	t.Remaining--
	if t.Remaining > 0 {
		return
	}

	c.bus.ReleaseBus(c.id)
	c.finish(t, l)
}

// begin acquires the bus and issues the burst request for every word.
func (c *Cache) begin(t *Transaction) {
	if !c.bus.AcquireBus(c.id) {
		return
	}

	for i := 0; i < c.blockWords; i++ {
		if err := c.bus.RequestWord(t.Addr+uint32(4*i), t.Mode, c.id); err != nil {
			c.abort(err)
			return
		}
	}
	t.started = true
}

func (c *Cache) finish(t *Transaction, l *Line) {
	switch c.state {
	case StateFetch:
		l.Tag = c.Tag(t.Addr)
		l.Valid = true
		l.Dirty = false
		l.LastAccess = c.clock.Now()
		c.stats.Fills++
		c.idle()

	case StateWriteback:
		c.stats.Writebacks++
		l.Dirty = false
		c.startFetch(t.refill, t.Way, t.Index, t.refillMode, t.Client)

	case StateOpWriteback:
		c.stats.Writebacks++
		l.Dirty = false
		if t.Invalidate {
			l.Valid = false
		}
		c.idle()
	}
}

func (c *Cache) idle() {
	c.trans = nil
	c.state = StateIdle
}

// abort ends the transaction after a bus error. The line is left invalid and
// the fault is kept for the requester to collect with PollFault.
func (c *Cache) abort(err error) {
	t := c.trans
	c.bus.ReleaseBus(c.id)

	l := c.lineAt(t.Way, t.Index)
	l.Valid = false
	l.Dirty = false

	var fault *exc.Fault
	if !errors.As(err, &fault) {
		fault = exc.BusError(t.Mode, t.Addr)
	}

	c.fault = fault
	c.faultBlock = t.Addr
	if t.hasRefill {
		c.faultBlock = t.refill
	}

	c.stats.BusErrors++
	c.logger.Error(err, "cache transaction aborted", "cache", c.name, "state", c.state.String())
	c.idle()
}
