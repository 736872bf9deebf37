package mem

import (
	"fmt"

	"github.com/go-logr/logr"
	akitamem "github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/timing/clock"
)

// Config holds the mapper parameters.
type Config struct {
	// BigEndian selects the target byte order.
	BigEndian bool
	// BusLatency is the number of cycles between RequestWord and Ready for
	// every region, before the region's own extra latency.
	BusLatency uint64
}

// DefaultConfig returns a big-endian mapper with a one-cycle bus.
func DefaultConfig() Config {
	return Config{BigEndian: true, BusLatency: 1}
}

// Region is a mapped range of physical addresses backed by storage.
type Region struct {
	Base         uint32
	Size         uint32
	ExtraLatency uint64
	ReadOnly     bool

	storage *akitamem.Storage
}

func (r *Region) contains(addr uint32) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

type requestKey struct {
	addr   uint32
	mode   exc.Mode
	client ClientID
}

// Stats counts mapper traffic.
type Stats struct {
	Requests  uint64
	Reads     uint64
	Writes    uint64
	BusErrors uint64
}

// MapperOption is a functional option for configuring the Mapper.
type MapperOption func(*Mapper)

// WithLogger sets the logger used for bus errors and grants.
func WithLogger(logger logr.Logger) MapperOption {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// Mapper routes physical addresses to regions and times accesses.
type Mapper struct {
	config  Config
	clock   *clock.Clock
	logger  logr.Logger
	regions []*Region
	pending map[requestKey]uint64
	arbiter *Arbiter
	stats   Stats
}

// NewMapper creates a mapper with no regions.
func NewMapper(config Config, clk *clock.Clock, opts ...MapperOption) *Mapper {
	m := &Mapper{
		config:  config,
		clock:   clk,
		logger:  logr.Discard(),
		pending: make(map[requestKey]uint64),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.arbiter = NewArbiter(clk, m.logger)

	return m
}

// BigEndian reports the configured target byte order.
func (m *Mapper) BigEndian() bool {
	return m.config.BigEndian
}

// MapRAM maps a writable region of size bytes at base.
func (m *Mapper) MapRAM(base, size uint32, extraLatency uint64) (*Region, error) {
	return m.mapRegion(base, size, extraLatency, false)
}

// MapROM maps a read-only region holding data at base.
func (m *Mapper) MapROM(base uint32, data []byte, extraLatency uint64) (*Region, error) {
	r, err := m.mapRegion(base, uint32(len(data)), extraLatency, true)
	if err != nil {
		return nil, err
	}
	if err := r.storage.Write(0, data); err != nil {
		return nil, fmt.Errorf("failed to initialize ROM at 0x%08x: %w", base, err)
	}
	return r, nil
}

func (m *Mapper) mapRegion(base, size uint32, extraLatency uint64, readOnly bool) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("region at 0x%08x has zero size", base)
	}
	if uint64(base)+uint64(size) > 1<<32 {
		return nil, fmt.Errorf("region at 0x%08x of size 0x%x exceeds the address space", base, size)
	}

	last := base + (size - 1)
	for _, r := range m.regions {
		if r.contains(base) || r.contains(last) || (base <= r.Base && last >= r.Base) {
			return nil, fmt.Errorf("region 0x%08x-0x%08x overlaps region at 0x%08x", base, last, r.Base)
		}
	}

	r := &Region{
		Base:         base,
		Size:         size,
		ExtraLatency: extraLatency,
		ReadOnly:     readOnly,
		storage:      akitamem.NewStorage(uint64(size)),
	}
	m.regions = append(m.regions, r)
	return r, nil
}

// Region returns the region containing addr, or nil.
func (m *Mapper) Region(addr uint32) *Region {
	for _, r := range m.regions {
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

// LoadImage copies raw bytes into mapped memory, ignoring write protection.
func (m *Mapper) LoadImage(addr uint32, data []byte) error {
	for i := range data {
		a := addr + uint32(i)
		r := m.Region(a)
		if r == nil {
			return fmt.Errorf("image byte at 0x%08x is not mapped: %w", a, exc.BusError(exc.DataStore, a))
		}
		if err := r.storage.Write(uint64(a-r.Base), data[i:i+1]); err != nil {
			return fmt.Errorf("failed to load image at 0x%08x: %w", a, err)
		}
	}
	return nil
}

// LoadWords copies words into mapped memory in target byte order, ignoring
// write protection.
func (m *Mapper) LoadWords(addr uint32, words []uint32) error {
	buf := make([]byte, 0, 4*len(words))
	for _, w := range words {
		buf = append(buf, m.wordBytes(w)...)
	}
	return m.LoadImage(addr, buf)
}

// PeekWord reads an aligned word without timing or side effects.
func (m *Mapper) PeekWord(addr uint32) (uint32, error) {
	return m.readWord(addr&^3, exc.DataLoad)
}

// RequestWord records interest in the word at addr. Repeated requests
// while one is pending keep the original issue cycle.
func (m *Mapper) RequestWord(addr uint32, mode exc.Mode, client ClientID) error {
	if m.Region(addr) == nil {
		m.stats.BusErrors++
		return exc.BusError(mode, addr)
	}

	key := requestKey{addr: addr &^ 3, mode: mode, client: client}
	if _, ok := m.pending[key]; ok {
		return nil
	}
	m.pending[key] = m.clock.Now()
	m.stats.Requests++
	return nil
}

// Ready reports whether a requested word can be transferred this cycle.
func (m *Mapper) Ready(addr uint32, mode exc.Mode, client ClientID) bool {
	issued, ok := m.pending[requestKey{addr: addr &^ 3, mode: mode, client: client}]
	if !ok {
		return false
	}
	r := m.Region(addr)
	if r == nil {
		return false
	}
	return m.clock.Now()-issued >= m.config.BusLatency+r.ExtraLatency
}

// CancelRequest drops a pending request that will never be transferred. A
// later request for the same word starts a new latency period.
func (m *Mapper) CancelRequest(addr uint32, mode exc.Mode, client ClientID) {
	m.complete(addr, mode, client)
}

func (m *Mapper) complete(addr uint32, mode exc.Mode, client ClientID) {
	delete(m.pending, requestKey{addr: addr &^ 3, mode: mode, client: client})
}

// AcquireBus requests exclusive use of the bus for client.
func (m *Mapper) AcquireBus(client ClientID) bool {
	return m.arbiter.Acquire(client)
}

// ReleaseBus gives up the bus held by client.
func (m *Mapper) ReleaseBus(client ClientID) {
	m.arbiter.Release(client)
}

// Arbiter returns the bus arbiter.
func (m *Mapper) Arbiter() *Arbiter {
	return m.arbiter
}

// FetchWord reads the aligned word at addr.
func (m *Mapper) FetchWord(addr uint32, mode exc.Mode, client ClientID) (uint32, error) {
	if addr&3 != 0 {
		return 0, exc.AddressError(mode, addr)
	}
	defer m.complete(addr, mode, client)
	return m.readWord(addr, mode)
}

// FetchHalfword reads the aligned halfword at addr.
func (m *Mapper) FetchHalfword(addr uint32, mode exc.Mode, client ClientID) (uint16, error) {
	if addr&1 != 0 {
		return 0, exc.AddressError(mode, addr)
	}
	defer m.complete(addr, mode, client)
	w, err := m.readWord(addr&^3, mode)
	if err != nil {
		return 0, err
	}
	return emu.ExtractHalf(w, addr, m.config.BigEndian), nil
}

// FetchByte reads the byte at addr.
func (m *Mapper) FetchByte(addr uint32, mode exc.Mode, client ClientID) (uint8, error) {
	defer m.complete(addr, mode, client)
	w, err := m.readWord(addr&^3, mode)
	if err != nil {
		return 0, err
	}
	return emu.ExtractByte(w, addr, m.config.BigEndian), nil
}

// StoreWord writes the aligned word at addr.
func (m *Mapper) StoreWord(addr, data uint32, client ClientID) error {
	if addr&3 != 0 {
		return exc.AddressError(exc.DataStore, addr)
	}
	defer m.complete(addr, exc.DataStore, client)
	return m.writeWord(addr, data)
}

// StoreHalfword writes the aligned halfword at addr.
func (m *Mapper) StoreHalfword(addr uint32, data uint16, client ClientID) error {
	if addr&1 != 0 {
		return exc.AddressError(exc.DataStore, addr)
	}
	defer m.complete(addr, exc.DataStore, client)
	w, err := m.readWord(addr&^3, exc.DataStore)
	if err != nil {
		return err
	}
	return m.writeWord(addr&^3, emu.InsertHalf(w, addr, data, m.config.BigEndian))
}

// StoreByte writes the byte at addr.
func (m *Mapper) StoreByte(addr uint32, data uint8, client ClientID) error {
	defer m.complete(addr, exc.DataStore, client)
	w, err := m.readWord(addr&^3, exc.DataStore)
	if err != nil {
		return err
	}
	return m.writeWord(addr&^3, emu.InsertByte(w, addr, data, m.config.BigEndian))
}

// Stats returns mapper traffic counts.
func (m *Mapper) Stats() Stats {
	return m.stats
}

func (m *Mapper) readWord(addr uint32, mode exc.Mode) (uint32, error) {
	r := m.Region(addr)
	if r == nil {
		m.stats.BusErrors++
		m.logger.V(1).Info("bus error", "addr", fmt.Sprintf("0x%08x", addr), "mode", mode)
		return 0, exc.BusError(mode, addr)
	}

	data, err := r.storage.Read(uint64(addr-r.Base), 4)
	if err != nil {
		m.stats.BusErrors++
		return 0, fmt.Errorf("failed to read 0x%08x: %w", addr, exc.BusError(mode, addr))
	}

	m.stats.Reads++
	return m.wordValue(data), nil
}

func (m *Mapper) writeWord(addr, value uint32) error {
	r := m.Region(addr)
	if r == nil {
		m.stats.BusErrors++
		m.logger.V(1).Info("bus error", "addr", fmt.Sprintf("0x%08x", addr), "mode", exc.DataStore)
		return exc.BusError(exc.DataStore, addr)
	}
	if r.ReadOnly {
		return nil
	}

	if err := r.storage.Write(uint64(addr-r.Base), m.wordBytes(value)); err != nil {
		m.stats.BusErrors++
		return fmt.Errorf("failed to write 0x%08x: %w", addr, exc.BusError(exc.DataStore, addr))
	}

	m.stats.Writes++
	return nil
}

func (m *Mapper) wordValue(b []byte) uint32 {
	if m.config.BigEndian {
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	}
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
}

func (m *Mapper) wordBytes(v uint32) []byte {
	if m.config.BigEndian {
		return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	}
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
