// Package cache models the R3000 write-back, set-associative instruction and
// data caches. Misses are serviced by a multi-cycle controller that bursts
// whole lines over the shared bus: an optional writeback of a dirty victim,
// then a fill of the requested line.
package cache

import (
	"fmt"
	"math/bits"

	"github.com/go-logr/logr"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/mem"
	"github.com/sarchlab/r3ksim/timing/clock"
)

// Config holds cache geometry.
type Config struct {
	// BlockCount is the number of sets.
	BlockCount int `json:"block_count" yaml:"block_count"`
	// BlockSize is the line size in bytes.
	BlockSize int `json:"block_size" yaml:"block_size"`
	// Ways is the associativity.
	Ways int `json:"ways" yaml:"ways"`
}

// DefaultICacheConfig returns a 4KB two-way instruction cache with 16B lines.
func DefaultICacheConfig() Config {
	return Config{BlockCount: 128, BlockSize: 16, Ways: 2}
}

// DefaultDCacheConfig returns a 4KB two-way data cache with 16B lines.
func DefaultDCacheConfig() Config {
	return Config{BlockCount: 128, BlockSize: 16, Ways: 2}
}

// Size returns the capacity in bytes.
func (c Config) Size() int {
	return c.BlockCount * c.BlockSize * c.Ways
}

// Validate checks that the geometry is usable.
func (c Config) Validate() error {
	if c.BlockCount <= 0 || bits.OnesCount(uint(c.BlockCount)) != 1 {
		return fmt.Errorf("block_count must be a power of two, got %d", c.BlockCount)
	}
	if c.BlockSize < 4 || bits.OnesCount(uint(c.BlockSize)) != 1 {
		return fmt.Errorf("block_size must be a power of two >= 4, got %d", c.BlockSize)
	}
	if c.Ways <= 0 {
		return fmt.Errorf("ways must be > 0, got %d", c.Ways)
	}
	return nil
}

// Statistics holds cache statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Fills      uint64
	Evictions  uint64
	Writebacks uint64
	// BusyDrops counts accesses made while the line was missing or busy.
	BusyDrops uint64
	BusErrors uint64
}

// MissRate returns misses per miss-or-hit.
func (s Statistics) MissRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

// Line is one cache line.
type Line struct {
	Valid      bool
	Dirty      bool
	Tag        uint32
	LastAccess uint64
	Data       []uint32
}

// Bus is the memory collaborator the cache bursts lines through.
type Bus interface {
	AcquireBus(client mem.ClientID) bool
	ReleaseBus(client mem.ClientID)
	RequestWord(addr uint32, mode exc.Mode, client mem.ClientID) error
	Ready(addr uint32, mode exc.Mode, client mem.ClientID) bool
	FetchWord(addr uint32, mode exc.Mode, client mem.ClientID) (uint32, error)
	StoreWord(addr, data uint32, client mem.ClientID) error
	BigEndian() bool
}

// Option is a functional option for configuring the Cache.
type Option func(*Cache)

// WithLogger sets the logger used for fills, writebacks and bus errors.
func WithLogger(logger logr.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is a write-back, set-associative cache with a single outstanding
// transaction.
type Cache struct {
	name       string
	config     Config
	offsetBits uint
	indexBits  uint
	blockWords int
	bigEndian  bool

	// lines is indexed way*BlockCount+index.
	lines []Line

	state State
	trans *Transaction

	bus   Bus
	clock *clock.Clock
	id    mem.ClientID

	isolated bool

	fault      *exc.Fault
	faultBlock uint32

	stats  Statistics
	logger logr.Logger
}

// New creates a cache. It returns an error if the geometry is invalid.
func New(name string, config Config, bus Bus, clk *clock.Clock, opts ...Option) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", name, err)
	}

	c := &Cache{
		name:       name,
		config:     config,
		offsetBits: uint(bits.TrailingZeros(uint(config.BlockSize))),
		indexBits:  uint(bits.TrailingZeros(uint(config.BlockCount))),
		blockWords: config.BlockSize / 4,
		bigEndian:  bus.BigEndian(),
		lines:      make([]Line, config.BlockCount*config.Ways),
		bus:        bus,
		clock:      clk,
		id:         mem.NewClientID(name),
		logger:     logr.Discard(),
	}

	for i := range c.lines {
		c.lines[i].Data = make([]uint32, c.blockWords)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Config returns the cache geometry.
func (c *Cache) Config() Config { return c.config }

// ID returns the identity the cache uses on the bus.
func (c *Cache) ID() mem.ClientID { return c.id }

// Tag returns the tag bits of addr.
func (c *Cache) Tag(addr uint32) uint32 {
	return addr >> (c.offsetBits + c.indexBits)
}

// Index returns the set index of addr.
func (c *Cache) Index(addr uint32) int {
	return int((addr >> c.offsetBits) & (1<<c.indexBits - 1))
}

// Offset returns the byte offset of addr within its line.
func (c *Cache) Offset(addr uint32) uint32 {
	return addr & (1<<c.offsetBits - 1)
}

// BlockAddr returns the line-aligned address of addr.
func (c *Cache) BlockAddr(addr uint32) uint32 {
	return addr &^ (1<<c.offsetBits - 1)
}

func (c *Cache) lineAddr(tag uint32, index int) uint32 {
	return tag<<(c.offsetBits+c.indexBits) | uint32(index)<<c.offsetBits
}

func (c *Cache) lineAt(way, index int) *Line {
	return &c.lines[way*c.config.BlockCount+index]
}

// Line returns a copy of the line at way and index.
func (c *Cache) Line(way, index int) Line {
	l := *c.lineAt(way, index)
	l.Data = append([]uint32(nil), l.Data...)
	return l
}

// lookup returns the valid line holding addr and its way.
func (c *Cache) lookup(addr uint32) (*Line, int) {
	tag := c.Tag(addr)
	index := c.Index(addr)
	for way := 0; way < c.config.Ways; way++ {
		l := c.lineAt(way, index)
		if l.Valid && l.Tag == tag {
			return l, way
		}
	}
	return nil, -1
}

func (c *Cache) busy(way, index int) bool {
	return c.trans != nil && c.trans.Way == way && c.trans.Index == index
}

// accessible returns the line for addr if it is present and not part of an
// in-flight transaction.
func (c *Cache) accessible(addr uint32) *Line {
	l, way := c.lookup(addr)
	if l == nil || c.busy(way, c.Index(addr)) {
		return nil
	}
	return l
}

// Ready reports whether addr can be accessed this cycle.
func (c *Cache) Ready(addr uint32) bool {
	return c.accessible(addr) != nil
}

// Busy reports whether a transaction is in flight.
func (c *Cache) Busy() bool {
	return c.state != StateIdle
}

// State returns the controller state.
func (c *Cache) State() State {
	return c.state
}

// SetIsolated isolates the cache from memory. Dirty victims of an isolated
// cache are dropped instead of written back.
func (c *Cache) SetIsolated(isolated bool) {
	c.isolated = isolated
}

func (c *Cache) touch(l *Line) {
	l.LastAccess = c.clock.Now()
	c.stats.Hits++
}

func (c *Cache) word(l *Line, addr uint32) *uint32 {
	return &l.Data[c.Offset(addr)>>2]
}

// FetchWord reads the word at addr. It returns all ones if the line is
// missing or busy.
func (c *Cache) FetchWord(addr uint32) uint32 {
	c.stats.Reads++
	l := c.accessible(addr)
	if l == nil {
		c.stats.BusyDrops++
		return 0xFFFFFFFF
	}
	c.touch(l)
	return *c.word(l, addr)
}

// FetchHalfword reads the halfword at addr.
func (c *Cache) FetchHalfword(addr uint32) uint16 {
	return emu.ExtractHalf(c.FetchWord(addr&^3), addr, c.bigEndian)
}

// FetchByte reads the byte at addr.
func (c *Cache) FetchByte(addr uint32) uint8 {
	return emu.ExtractByte(c.FetchWord(addr&^3), addr, c.bigEndian)
}

// StoreWord writes the word at addr and marks the line dirty. The write is
// dropped if the line is missing or busy.
func (c *Cache) StoreWord(addr, data uint32) {
	c.stats.Writes++
	l := c.accessible(addr)
	if l == nil {
		c.stats.BusyDrops++
		return
	}
	c.touch(l)
	*c.word(l, addr) = data
	l.Dirty = true
}

// StoreHalfword writes the halfword at addr.
func (c *Cache) StoreHalfword(addr uint32, data uint16) {
	c.modify(addr, func(w uint32) uint32 {
		return emu.InsertHalf(w, addr, data, c.bigEndian)
	})
}

// StoreByte writes the byte at addr.
func (c *Cache) StoreByte(addr uint32, data uint8) {
	c.modify(addr, func(w uint32) uint32 {
		return emu.InsertByte(w, addr, data, c.bigEndian)
	})
}

func (c *Cache) modify(addr uint32, merge func(uint32) uint32) {
	c.stats.Writes++
	l := c.accessible(addr)
	if l == nil {
		c.stats.BusyDrops++
		return
	}
	c.touch(l)
	w := c.word(l, addr)
	*w = merge(*w)
	l.Dirty = true
}

// victim picks the way to replace at index: the first invalid way, else the
// least recently accessed one.
func (c *Cache) victim(index int) int {
	best := 0
	for way := 0; way < c.config.Ways; way++ {
		l := c.lineAt(way, index)
		if !l.Valid {
			return way
		}
		if l.LastAccess < c.lineAt(best, index).LastAccess {
			best = way
		}
	}
	return best
}

// PollFault returns the bus fault left by an aborted fill of the line
// containing addr, clearing it.
func (c *Cache) PollFault(addr uint32) *exc.Fault {
	if c.fault == nil || c.faultBlock != c.BlockAddr(addr) {
		return nil
	}
	f := c.fault
	c.fault = nil
	return f
}

// Invalidate drops every line without writing back.
func (c *Cache) Invalidate() {
	for i := range c.lines {
		c.lines[i].Valid = false
		c.lines[i].Dirty = false
	}
}

// Stats returns the cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears the statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}
