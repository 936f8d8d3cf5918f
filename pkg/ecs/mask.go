package ecs

import "math/bits"

// EnabledMask holds one bit per entity of a chunk, two 64-bit words for ChunkCapacity.
type EnabledMask [2]uint64

// SparseEdgeThreshold selects the sparse walk strategy per chunk: masks with at most
// this many edges are walked range by range, others are scanned word by word.
// Both strategies visit the same indices in the same order.
var SparseEdgeThreshold = 4

// FullMask returns a mask with the first n bits set.
func FullMask(n int) EnabledMask {
	switch {
	case n <= 0:
		return EnabledMask{}
	case n < 64:
		return EnabledMask{1<<uint(n) - 1, 0}
	case n == 64:
		return EnabledMask{^uint64(0), 0}
	case n < ChunkCapacity:
		return EnabledMask{^uint64(0), 1<<uint(n-64) - 1}
	default:
		return EnabledMask{^uint64(0), ^uint64(0)}
	}
}

func (m EnabledMask) Get(i int) bool {
	if i < 0 || i >= ChunkCapacity {
		return false
	}
	return m[i>>6]&(1<<(uint(i)&63)) != 0
}

func (m *EnabledMask) Set(i int, enabled bool) {
	if i < 0 || i >= ChunkCapacity {
		return
	}
	if enabled {
		m[i>>6] |= 1 << (uint(i) & 63)
	} else {
		m[i>>6] &^= 1 << (uint(i) & 63)
	}
}

func (m EnabledMask) Count() int {
	return bits.OnesCount64(m[0]) + bits.OnesCount64(m[1])
}

func (m EnabledMask) IsEmpty() bool { return m[0]|m[1] == 0 }

func (m EnabledMask) And(o EnabledMask) EnabledMask { return EnabledMask{m[0] & o[0], m[1] & o[1]} }

func (m EnabledMask) Or(o EnabledMask) EnabledMask { return EnabledMask{m[0] | o[0], m[1] | o[1]} }

func (m EnabledMask) AndNot(o EnabledMask) EnabledMask {
	return EnabledMask{m[0] &^ o[0], m[1] &^ o[1]}
}

// Window keeps the bits in [start, end).
func (m EnabledMask) Window(start, end int) EnabledMask {
	return m.And(FullMask(end).AndNot(FullMask(start)))
}

// EdgeCount counts the transitions between set and clear bits, treating the bit
// before index 0 as clear. A mask made of k separate runs has at most 2k edges.
func (m EnabledMask) EdgeCount() int {
	shifted := EnabledMask{m[0] << 1, m[1]<<1 | m[0]>>63}
	return bits.OnesCount64(m[0]^shifted[0]) + bits.OnesCount64(m[1]^shifted[1])
}

// NextRange returns the next run of set bits starting at or after from.
func (m EnabledMask) NextRange(from int) (start, end int, ok bool) {
	start = m.firstSet(from)
	if start >= ChunkCapacity {
		return 0, 0, false
	}
	return start, EnabledMask{^m[0], ^m[1]}.firstSet(start), true
}

// firstSet returns the index of the first set bit at or after from, or ChunkCapacity.
func (m EnabledMask) firstSet(from int) int {
	if from < 0 {
		from = 0
	}
	for w := from >> 6; w < len(m); w++ {
		word := m[w]
		if w == from>>6 {
			word &= ^uint64(0) << (uint(from) & 63)
		}
		if word != 0 {
			return w<<6 + bits.TrailingZeros64(word)
		}
	}
	return ChunkCapacity
}

// WalkRanges visits every set bit by walking contiguous runs. It stops early and
// returns false when fn does.
func WalkRanges(m EnabledMask, fn func(i int) bool) bool {
	for from := 0; ; {
		start, end, ok := m.NextRange(from)
		if !ok {
			return true
		}
		for i := start; i < end; i++ {
			if !fn(i) {
				return false
			}
		}
		from = end
	}
}

// ScanWords visits every set bit one 64-bit word at a time.
func ScanWords(m EnabledMask, fn func(i int) bool) bool {
	for w := range m {
		word := m[w]
		for word != 0 {
			if !fn(w<<6 + bits.TrailingZeros64(word)) {
				return false
			}
			word &= word - 1
		}
	}
	return true
}

// ForEachEnabled visits every set bit in ascending order, choosing the strategy from
// the edge count of the mask.
func ForEachEnabled(m EnabledMask, fn func(i int) bool) bool {
	if m.EdgeCount() <= SparseEdgeThreshold {
		return WalkRanges(m, fn)
	}
	return ScanWords(m, fn)
}

// ForEachInRange visits the matching entity indices of a chunk range.
func ForEachInRange(r ChunkRange, fn func(i int) bool) bool {
	if !r.UseEnabledMask {
		for i := r.Start; i < r.End; i++ {
			if !fn(i) {
				return false
			}
		}
		return true
	}
	return ForEachEnabled(r.Mask.Window(r.Start, r.End), fn)
}
