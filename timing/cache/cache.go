// Package cache provides cache hierarchy modeling using Akita cache components.
//
// A Cache is one level of the hierarchy. It implements emu.Memory over the
// next level, so layers stack: an L1 over an L2 over main memory.
package cache

import (
	"fmt"
	"math/rand"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/rvsim/emu"
)

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns hits / (hits + misses), or 0 before any access.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// line holds the data and timing state of one (set, way). Tag, valid and
// dirty bits live in the Akita directory block with the same coordinates.
type line struct {
	data     []byte
	filled   bool
	filledAt uint64
}

// LineInfo is a snapshot of one cache line.
type LineInfo struct {
	Set   int
	Way   int
	Tag   uint32
	Addr  uint32
	Valid bool
	Dirty bool
	Data  []byte
}

// Cache is a write-back, write-allocate cache layer.
type Cache struct {
	config Config
	name   string

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Line storage - indexed by (setID * associativity + wayID)
	lines []line

	next *nextLevel
	rng  *rand.Rand

	stats       Statistics
	lastLatency uint64

	// now is the last cycle published by Tick. A cache that is never
	// ticked counts its accesses instead.
	now    uint64
	ticked bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithName labels the cache in statistics and dumps.
func WithName(name string) Option {
	return func(c *Cache) {
		c.name = name
	}
}

// New creates a cache in front of next. The configuration must be valid.
func New(config Config, next emu.Memory, opts ...Option) *Cache {
	numSets := config.NumSets()

	lines := make([]line, config.Lines)
	for i := range lines {
		lines[i].data = make([]byte, config.LineBytes())
	}

	c := &Cache{
		config: config,
		name:   "cache",
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.LineBytes(),
			akitacache.NewLRUVictimFinder(),
		),
		lines: lines,
		next:  newNextLevel(next),
		rng:   rand.New(rand.NewSource(config.Seed)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the cache label.
func (c *Cache) Name() string {
	return c.name
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Next returns the level below this cache.
func (c *Cache) Next() emu.Memory {
	return c.next.mem
}

// Decompose splits an address into tag, set index and byte offset.
func (c *Cache) Decompose(addr uint32) (tag, set, offset uint32) {
	lineBytes := uint32(c.config.LineBytes())
	numSets := uint32(c.config.NumSets())

	offset = addr & (lineBytes - 1)
	set = (addr >> log2(int(lineBytes))) & (numSets - 1)
	tag = addr >> log2(int(lineBytes)*int(numSets))
	return tag, set, offset
}

// blockIndex computes the index into lines for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	return addr &^ uint32(c.config.LineBytes()-1)
}

// locate returns the line holding addr, filling it from the next level on a
// miss, and the latency of the access.
func (c *Cache) locate(addr uint32, dirty bool) (*line, uint64, error) {
	blockAddr := c.blockAddr(addr)
	latency := c.config.HitLatency

	block := c.directory.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		c.stats.Hits++
	} else {
		c.stats.Misses++

		var err error
		block, err = c.fill(blockAddr)
		if err != nil {
			return nil, 0, err
		}
		latency += c.next.mem.LastAccessLatency()
	}

	c.directory.Visit(block)

	l := &c.lines[c.blockIndex(block)]
	if c.inSwapIn(l) {
		latency += c.config.SubsequentLatency
	}

	if dirty {
		block.IsDirty = true
	}

	return l, latency, nil
}

// countAccess advances the clock of a cache nobody ticks by one per access,
// so that swap-in windows still close.
func (c *Cache) countAccess() {
	if !c.ticked {
		c.now++
	}
}

// inSwapIn reports whether the line is still inside its swap-in window.
func (c *Cache) inSwapIn(l *line) bool {
	window := uint64(c.config.LineWords) * c.config.SubsequentLatency
	return l.filled && c.now-l.filledAt < window
}

// fill evicts a victim, writing it back if dirty, and reads blockAddr from
// the next level into its place.
func (c *Cache) fill(blockAddr uint32) (*akitacache.Block, error) {
	victim := c.findVictim(blockAddr)
	l := &c.lines[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++

		if victim.IsDirty {
			c.stats.Writebacks++
			if err := c.next.writeBack(uint32(victim.Tag), l.data); err != nil {
				return nil, err
			}
		}
	}

	victim.IsValid = false
	victim.IsDirty = false

	if err := c.next.fetch(blockAddr, l.data); err != nil {
		return nil, err
	}

	// Tag stores the block-aligned address
	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	l.filled = true
	l.filledAt = c.now

	return victim, nil
}

// findVictim picks the way to replace in the set of blockAddr. Invalid
// ways are always chosen first.
func (c *Cache) findVictim(blockAddr uint32) *akitacache.Block {
	switch c.config.Policy {
	case PolicyRandom:
		_, setID, _ := c.Decompose(blockAddr)
		set := c.directory.GetSets()[setID]

		for _, block := range set.Blocks {
			if !block.IsValid {
				return block
			}
		}
		return set.Blocks[c.rng.Intn(len(set.Blocks))]
	default:
		// Direct-mapped sets have a single way, so LRU order picks it.
		return c.directory.FindVictim(uint64(blockAddr))
	}
}

func (c *Cache) crossesLine(addr uint32, n int) bool {
	return c.blockAddr(addr) != c.blockAddr(addr+uint32(n)-1)
}

func (c *Cache) checkRange(addr uint32, n int) error {
	if uint64(addr)+uint64(n) > uint64(c.Size()) {
		return fmt.Errorf("%w: 0x%08x (+%d) behind %s of %d bytes",
			emu.ErrAddressOutOfRange, addr, n, c.name, c.Size())
	}
	return nil
}

func (c *Cache) read(addr uint32, n int) (uint32, error) {
	c.stats.Reads++
	c.countAccess()

	if err := c.checkRange(addr, n); err != nil {
		return 0, err
	}

	if c.crossesLine(addr, n) {
		return c.readSplit(addr, n)
	}

	l, latency, err := c.locate(addr, false)
	if err != nil {
		return 0, err
	}
	c.lastLatency = latency

	_, _, offset := c.Decompose(addr)
	return extractData(l.data, offset, n), nil
}

func (c *Cache) readSplit(addr uint32, n int) (uint32, error) {
	var value uint32
	var total uint64

	for i := 0; i < n; i++ {
		l, latency, err := c.locate(addr+uint32(i), false)
		if err != nil {
			return 0, err
		}
		total += latency

		_, _, offset := c.Decompose(addr + uint32(i))
		value |= uint32(l.data[offset]) << (8 * i)
	}

	c.lastLatency = total
	return value, nil
}

func (c *Cache) write(addr uint32, n int, value uint32) error {
	c.stats.Writes++
	c.countAccess()

	if err := c.checkRange(addr, n); err != nil {
		return err
	}

	if c.crossesLine(addr, n) {
		var total uint64
		for i := 0; i < n; i++ {
			l, latency, err := c.locate(addr+uint32(i), true)
			if err != nil {
				return err
			}
			total += latency

			_, _, offset := c.Decompose(addr + uint32(i))
			l.data[offset] = byte(value >> (8 * i))
		}
		c.lastLatency = total
		return nil
	}

	l, latency, err := c.locate(addr, true)
	if err != nil {
		return err
	}
	c.lastLatency = latency

	_, _, offset := c.Decompose(addr)
	storeData(l.data, offset, n, value)
	return nil
}

// Read8 reads a byte.
func (c *Cache) Read8(addr uint32) (uint8, error) {
	v, err := c.read(addr, 1)
	return uint8(v), err
}

// Read16 reads a half word.
func (c *Cache) Read16(addr uint32) (uint16, error) {
	v, err := c.read(addr, 2)
	return uint16(v), err
}

// Read32 reads a word.
func (c *Cache) Read32(addr uint32) (uint32, error) {
	return c.read(addr, 4)
}

// Write8 writes a byte.
func (c *Cache) Write8(addr uint32, value uint8) error {
	return c.write(addr, 1, uint32(value))
}

// Write16 writes a half word.
func (c *Cache) Write16(addr uint32, value uint16) error {
	return c.write(addr, 2, uint32(value))
}

// Write32 writes a word.
func (c *Cache) Write32(addr uint32, value uint32) error {
	return c.write(addr, 4, value)
}

// ReadBlock fills buf from addr, line by line. It lets another cache use
// this one as its next level.
func (c *Cache) ReadBlock(addr uint32, buf []byte) error {
	c.countAccess()
	if err := c.checkRange(addr, len(buf)); err != nil {
		return err
	}

	var total uint64
	for i := 0; i < len(buf); {
		l, latency, err := c.locate(addr+uint32(i), false)
		if err != nil {
			return err
		}
		total += latency

		_, _, offset := c.Decompose(addr + uint32(i))
		i += copy(buf[i:], l.data[offset:])
	}

	c.stats.Reads++
	c.lastLatency = total
	return nil
}

// WriteBlock stores data at addr, line by line.
func (c *Cache) WriteBlock(addr uint32, data []byte) error {
	c.countAccess()
	if err := c.checkRange(addr, len(data)); err != nil {
		return err
	}

	var total uint64
	for i := 0; i < len(data); {
		l, latency, err := c.locate(addr+uint32(i), true)
		if err != nil {
			return err
		}
		total += latency

		_, _, offset := c.Decompose(addr + uint32(i))
		i += copy(l.data[offset:], data[i:])
	}

	c.stats.Writes++
	c.lastLatency = total
	return nil
}

// Peek returns the byte at addr as the program would see it, from this
// level if cached and from below otherwise. It does not change replacement
// state, statistics or latency.
func (c *Cache) Peek(addr uint32) (uint8, error) {
	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block != nil && block.IsValid {
		_, _, offset := c.Decompose(addr)
		return c.lines[c.blockIndex(block)].data[offset], nil
	}

	return c.next.mem.Peek(addr)
}

// LastAccessLatency returns the latency of the most recent access.
func (c *Cache) LastAccessLatency() uint64 {
	return c.lastLatency
}

// Latency returns the hit latency.
func (c *Cache) Latency() uint64 {
	return c.config.HitLatency
}

// Size returns the size of the address space behind the cache.
func (c *Cache) Size() uint32 {
	return c.next.mem.Size()
}

// Tick publishes the current cycle to this level and the levels below.
func (c *Cache) Tick(now uint64) {
	c.now = now
	c.ticked = true
	c.next.mem.Tick(now)
}

// Flush writes back all dirty lines and invalidates every line.
func (c *Cache) Flush() error {
	sets := c.directory.GetSets()
	for _, set := range sets {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				l := &c.lines[c.blockIndex(block)]
				if err := c.next.writeBack(uint32(block.Tag), l.data); err != nil {
					return err
				}
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}

	return nil
}

// Lines returns a snapshot of every line in set-major order.
func (c *Cache) Lines() []LineInfo {
	var infos []LineInfo

	sets := c.directory.GetSets()
	for _, set := range sets {
		for _, block := range set.Blocks {
			l := c.lines[c.blockIndex(block)]
			info := LineInfo{
				Set:   block.SetID,
				Way:   block.WayID,
				Valid: block.IsValid,
				Dirty: block.IsDirty,
				Data:  append([]byte(nil), l.data...),
			}
			if block.IsValid {
				info.Addr = uint32(block.Tag)
				info.Tag, _, _ = c.Decompose(info.Addr)
			}
			infos = append(infos, info)
		}
	}

	return infos
}

// Reset invalidates all cache lines without writeback, clears statistics
// and resets the levels below.
func (c *Cache) Reset() {
	c.directory.Reset()
	for i := range c.lines {
		clear(c.lines[i].data)
		c.lines[i].filled = false
		c.lines[i].filledAt = 0
	}
	c.stats = Statistics{}
	c.lastLatency = 0
	c.now = 0
	c.rng = rand.New(rand.NewSource(c.config.Seed))
	c.next.mem.Reset()
}

// extractData extracts a little-endian value of the given size.
func extractData(data []byte, offset uint32, size int) uint32 {
	var result uint32
	for i := 0; i < size; i++ {
		result |= uint32(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData stores a little-endian value of the given size.
func storeData(data []byte, offset uint32, size int, value uint32) {
	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
