package shader_go

import (
	"encoding/binary"
	"sort"

	"lukechampine.com/uint128"
)

// Default seed.
const RAPID_SEED uint64 = 0xbdd89aa982704029

// Default secret.
var rapid_secret = [3]uint64{0x2d358dccaa6c78a5, 0x8bb84b93962eacc9, 0x4b33a62ed433d4a3}

// 64x64 -> 128 bit multiply, low half in a, high half in b.
func rapid_mum(a, b *uint64) {
	r := uint128.From64(*a).Mul(uint128.From64(*b))
	*a = r.Lo
	*b = r.Hi
}

func rapid_mix(a, b uint64) uint64 {
	rapid_mum(&a, &b)
	return a ^ b
}

func rapid_read64(p []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(p[off:])
}

func rapid_read32(p []byte, off int) uint64 {
	return uint64(binary.LittleEndian.Uint32(p[off:]))
}

// Inputs of 1 to 3 bytes.
func rapid_readSmall(p []byte, k int) uint64 {
	return uint64(p[0])<<56 | uint64(p[k>>1])<<32 | uint64(p[k-1])
}

func rapidhash_internal(key []byte, seed uint64, secret [3]uint64) uint64 {
	n := len(key)
	seed ^= rapid_mix(seed^secret[0], secret[1]) ^ uint64(n)
	var a, b uint64

	if n <= 16 {
		if n >= 4 {
			last := n - 4
			a = (rapid_read32(key, 0) << 32) | rapid_read32(key, last)
			delta := (n & 24) >> (n >> 3)
			b = (rapid_read32(key, delta) << 32) | rapid_read32(key, last-delta)
		} else if n > 0 {
			a = rapid_readSmall(key, n)
		}
	} else {
		off := 0
		i := n
		if i > 48 {
			see1 := seed
			see2 := seed
			for i >= 48 {
				seed = rapid_mix(rapid_read64(key, off)^secret[0], rapid_read64(key, off+8)^seed)
				see1 = rapid_mix(rapid_read64(key, off+16)^secret[1], rapid_read64(key, off+24)^see1)
				see2 = rapid_mix(rapid_read64(key, off+32)^secret[2], rapid_read64(key, off+40)^see2)
				off += 48
				i -= 48
			}
			seed ^= see1 ^ see2
		}
		if i > 16 {
			seed = rapid_mix(rapid_read64(key, off)^secret[2], rapid_read64(key, off+8)^seed^secret[1])
			if i > 32 {
				seed = rapid_mix(rapid_read64(key, off+16)^secret[2], rapid_read64(key, off+24)^seed)
			}
		}
		// The last 16 bytes may overlap what was already mixed.
		a = rapid_read64(key, off+i-16)
		b = rapid_read64(key, off+i-8)
	}
	a ^= secret[1]
	b ^= seed
	rapid_mum(&a, &b)
	return rapid_mix(a^secret[0]^uint64(n), b^secret[1])
}

// / Used for fingerprints only; never persisted.
func rapidhash(key []byte) uint64 {
	return rapidhash_internal(key, RAPID_SEED, rapid_secret)
}

// / Fingerprint of a macro definition set, independent of insertion order.
// / Two loads of the same sources with different definitions must not be
// / mistaken for one another.
func DefinitionsFingerprint(defs map[string]string) uint64 {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	buf := make([]byte, 0, 256)
	for _, name := range names {
		buf = append(buf, name...)
		buf = append(buf, 0)
		buf = append(buf, defs[name]...)
		buf = append(buf, 0)
	}
	return rapidhash(buf)
}
