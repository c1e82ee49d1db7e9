package cache

import (
	"fmt"
	"math/bits"
	"strings"
)

// Policy selects the line to evict when a set is full.
type Policy int

// Replacement policies.
const (
	// PolicyDirectMapped maps every address to a single way.
	PolicyDirectMapped Policy = iota
	// PolicyLRU evicts the least recently touched line of the set.
	PolicyLRU
	// PolicyRandom evicts a uniformly chosen way of the set.
	PolicyRandom
)

var policyNames = map[Policy]string{
	PolicyDirectMapped: "direct",
	PolicyLRU:          "lru",
	PolicyRandom:       "random",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy converts a policy name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown cache policy %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if _, ok := policyNames[p]; !ok {
		return nil, fmt.Errorf("unknown cache policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Config holds cache configuration parameters.
type Config struct {
	// Policy is the replacement policy.
	Policy Policy `json:"policy"`
	// LineWords is the number of 32-bit words per cache line.
	LineWords int `json:"line_words"`
	// Lines is the total number of lines in the cache.
	Lines int `json:"lines"`
	// Associativity is the number of ways per set.
	Associativity int `json:"associativity"`
	// HitLatency in cycles.
	HitLatency uint64 `json:"hit_latency"`
	// SubsequentLatency is charged on accesses that land in a line while it
	// is still being swapped in, LineWords*SubsequentLatency cycles after
	// the fill.
	SubsequentLatency uint64 `json:"subsequent_latency"`
	// Seed seeds the random replacement policy.
	Seed int64 `json:"seed,omitempty"`
}

// DefaultConfig returns a small 2-way LRU cache of 64 lines of 4 words.
func DefaultConfig() Config {
	return Config{
		Policy:            PolicyLRU,
		LineWords:         4,
		Lines:             64,
		Associativity:     2,
		HitLatency:        1,
		SubsequentLatency: 1,
	}
}

// LineBytes returns the line size in bytes.
func (c Config) LineBytes() int {
	return c.LineWords * 4
}

// NumSets returns the number of sets.
func (c Config) NumSets() int {
	return c.Lines / c.Associativity
}

// Validate checks that the geometry is a power of two throughout and that
// the associativity agrees with the policy.
func (c Config) Validate() error {
	if _, ok := policyNames[c.Policy]; !ok {
		return fmt.Errorf("unknown cache policy %d", int(c.Policy))
	}
	if !isPowerOfTwo(c.LineWords) {
		return fmt.Errorf("line_words must be a power of two, got %d", c.LineWords)
	}
	if !isPowerOfTwo(c.Lines) {
		return fmt.Errorf("lines must be a power of two, got %d", c.Lines)
	}
	if !isPowerOfTwo(c.Associativity) || c.Associativity > c.Lines {
		return fmt.Errorf("associativity must be a power of two no larger than lines, got %d",
			c.Associativity)
	}
	if c.Policy == PolicyDirectMapped && c.Associativity != 1 {
		return fmt.Errorf("a direct-mapped cache must have associativity 1, got %d",
			c.Associativity)
	}
	if c.HitLatency == 0 {
		return fmt.Errorf("hit_latency must be > 0")
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) uint {
	return uint(bits.TrailingZeros(uint(n)))
}
