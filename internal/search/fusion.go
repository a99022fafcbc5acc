package search

import (
	"sort"

	"github.com/codegraph-dev/codegraph/internal/storage"
)

// DefaultRRFConstant is the rank smoothing constant k
const DefaultRRFConstant = 60.0

// fusedCandidate is one item after rank fusion. A zero rank means the item
// was absent from that path's candidate list.
type fusedCandidate struct {
	chunkID      string
	score        float64
	lexicalRank  int
	vectorRank   int
	lexicalScore *float64
	vectorScore  *float64
}

// fuseRRF combines lexical and vector candidate lists with weighted
// Reciprocal Rank Fusion:
//
//	fused(item) = wLex * 1/(k + lexRank) + wVec * 1/(k + vecRank)
//
// where a term is zero if the item is absent from that list. Items present
// in both lists therefore outrank items strong in only one; consensus is
// the design goal. Ties on equal fused score break by chunk ID ascending,
// so ordering is fully deterministic. With one list empty, fusion reduces
// to a pass-through of the other list's own ranking.
func fuseRRF(lexical []storage.TextResult, vector []storage.VectorResult, wLex, wVec, k float64) []fusedCandidate {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byID := make(map[string]*fusedCandidate, len(lexical)+len(vector))

	for i, tr := range lexical {
		rank := i + 1
		score := tr.Score
		byID[tr.ChunkID] = &fusedCandidate{
			chunkID:      tr.ChunkID,
			score:        wLex / (k + float64(rank)),
			lexicalRank:  rank,
			lexicalScore: &score,
		}
	}

	for i, vr := range vector {
		rank := i + 1
		score := vr.Similarity
		c, ok := byID[vr.ChunkID]
		if !ok {
			c = &fusedCandidate{chunkID: vr.ChunkID}
			byID[vr.ChunkID] = c
		}
		c.score += wVec / (k + float64(rank))
		c.vectorRank = rank
		c.vectorScore = &score
	}

	fused := make([]fusedCandidate, 0, len(byID))
	for _, c := range byID {
		fused = append(fused, *c)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].chunkID < fused[j].chunkID
	})

	return fused
}
