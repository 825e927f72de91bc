package scoring

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"

	"github.com/ramonehamilton/cubeml/internal/encoder"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// Card is one scored vocabulary entry.
type Card struct {
	Index  int     `json:"index"`
	Oracle string  `json:"oracle,omitempty"`
	Rating float32 `json:"rating"`
}

// Recommendation splits scored cards into candidates to add to a cube and
// members to consider removing.
type Recommendation struct {
	Adds    []Card `json:"adds"`
	Removes []Card `json:"removes"`
}

// DefaultRecommendLimit caps each side of a recommendation.
const DefaultRecommendLimit = 100

// Recommend ranks every card by score. Adds are the highest-rated cards not
// in the cube; removes are the lowest-rated cards in it. Each list holds at
// most limit cards; limit <= 0 means DefaultRecommendLimit.
func Recommend(scores []float32, cube []int, v *vocab.Index, limit int) (Recommendation, error) {
	if len(scores) != v.NumCards() {
		return Recommendation{}, fmt.Errorf("got %d scores for %d cards", len(scores), v.NumCards())
	}
	if err := v.CheckAll(cube); err != nil {
		return Recommendation{}, err
	}
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}

	inCube := make(map[int]bool, len(cube))
	for _, c := range cube {
		inCube[c] = true
	}

	cards := make([]Card, len(scores))
	for i, s := range scores {
		oracle, _ := v.Oracle(i)
		cards[i] = Card{Index: i, Oracle: oracle, Rating: s}
	}
	sort.SliceStable(cards, func(a, b int) bool { return cards[a].Rating > cards[b].Rating })

	var rec Recommendation
	for _, c := range cards {
		if !inCube[c.Index] && len(rec.Adds) < limit {
			rec.Adds = append(rec.Adds, c)
		}
	}
	for i := len(cards) - 1; i >= 0; i-- {
		if c := cards[i]; inCube[c.Index] && len(rec.Removes) < limit {
			rec.Removes = append(rec.Removes, c)
		}
	}
	return rec, nil
}

// TopRatedPercent scores predictions against multi-hot truths. For each row
// with true set T, the ceil(1.2·|T|) highest predictions P are taken and the
// row scores (|T ∩ P| + 1) / (|T| + 1). The result is the mean over rows.
func TopRatedPercent(yTrue, yPred *tensor.Dense) (float64, error) {
	if !yTrue.Shape().Eq(yPred.Shape()) || yTrue.Dims() != 2 {
		return 0, fmt.Errorf("truth %v and prediction %v must be matching matrices", yTrue.Shape(), yPred.Shape())
	}
	rows := yTrue.Shape()[0]
	if rows == 0 {
		return 0, fmt.Errorf("no rows to score")
	}

	scores := make([]float64, rows)
	for r := 0; r < rows; r++ {
		truth := encoder.Decode(yTrue, r)
		n := int(math.Ceil(float64(len(truth)) * 1.2))
		top := topN(encoder.Row(yPred, r), n)

		hits := 0
		for _, c := range truth {
			if top[c] {
				hits++
			}
		}
		scores[r] = float64(hits+1) / float64(len(truth)+1)
	}
	return stat.Mean(scores, nil), nil
}

func topN(row []float32, n int) map[int]bool {
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })

	n = min(n, len(idx))
	top := make(map[int]bool, n)
	for _, c := range idx[:n] {
		top[c] = true
	}
	return top
}
