package detector

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const shingleSize = 5

// shingles returns the overlapping k-token windows of a canonical token
// stream, the unit the locality-sensitive bucketing operates on.
func shingles(tokens []string, k int) []string {
	if len(tokens) < k {
		return []string{strings.Join(tokens, " ")}
	}
	out := make([]string, 0, len(tokens)-k+1)
	for i := 0; i+k <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+k], " "))
	}
	return out
}

const numMinHashes = 8
const bandRows = 2 // 4 bands of 2 rows each

// minhashSignature computes a minhash signature over a shingle set: for
// each of numMinHashes independent hash "functions" (xxhash salted by
// index), the signature entry is the minimum hash value across every
// shingle. Two units with many shared shingles are likely to agree on
// several signature entries even though their token streams are not
// identical.
func minhashSignature(shingleSet []string) []uint64 {
	sig := make([]uint64, numMinHashes)
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for _, sh := range shingleSet {
		for i := 0; i < numMinHashes; i++ {
			h := xxhash.New()
			h.Write([]byte{byte(i)})
			h.Write([]byte(sh))
			v := h.Sum64()
			if v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// lshBuckets bands a set of minhash signatures into candidate-pair
// buckets: units landing in the same bucket for any band are emitted as
// candidate pairs for full pairwise comparison, keeping the comparison
// count near-linear instead of the full O(n^2) pairwise scan.
func lshBuckets(signatures [][]uint64) [][2]int {
	type bandKey struct {
		band int
		hash uint64
	}
	buckets := make(map[bandKey][]int)

	for idx, sig := range signatures {
		for band := 0; band*bandRows < len(sig); band++ {
			start := band * bandRows
			end := start + bandRows
			if end > len(sig) {
				end = len(sig)
			}
			h := xxhash.New()
			for _, v := range sig[start:end] {
				var b [8]byte
				for i := range b {
					b[i] = byte(v >> (8 * i))
				}
				h.Write(b[:])
			}
			key := bandKey{band: band, hash: h.Sum64()}
			buckets[key] = append(buckets[key], idx)
		}
	}

	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for _, members := range buckets {
		if len(members) < 2 {
			continue
		}
		sort.Ints(members)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				p := [2]int{members[i], members[j]}
				if !seen[p] {
					seen[p] = true
					pairs = append(pairs, p)
				}
			}
		}
	}
	return pairs
}
