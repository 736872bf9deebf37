package cache

import (
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/mem"
)

// ExecCacheOp performs a cache instruction on the line holding addr. It
// returns true once the operation has completed; a hit writeback of a dirty
// line starts an OP_WRITEBACK transaction and returns false until the line
// is clean.
//
// Index-addressed operations, tag load/store, set-line and the change
// operations complete immediately without effect.
func (c *Cache) ExecCacheOp(op uint8, addr uint32, client mem.ClientID) bool {
	if c.state != StateIdle {
		return false
	}

	switch op {
	case insts.CacheOpICacheHitInvalidate, insts.CacheOpDCacheHitInvalidate:
		if l, _ := c.lookup(addr); l != nil {
			l.Valid = false
			l.Dirty = false
		}
		return true

	case insts.CacheOpDCacheHitWriteback, insts.CacheOpDCacheHitForceWriteback:
		return c.hitWriteback(addr, false, client)

	case insts.CacheOpDCacheHitWritebackInvalidate, insts.CacheOpDCacheHitForceWritebackInvalidate:
		return c.hitWriteback(addr, true, client)
	}

	return true
}

func (c *Cache) hitWriteback(addr uint32, invalidate bool, client mem.ClientID) bool {
	l, way := c.lookup(addr)
	if l == nil {
		return true
	}

	if l.Dirty && !c.isolated {
		c.startOpWriteback(l, way, c.Index(addr), invalidate, client)
		return false
	}

	if invalidate {
		l.Valid = false
		l.Dirty = false
	}
	return true
}
