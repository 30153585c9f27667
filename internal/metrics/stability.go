package metrics

import (
	"math"
	"sort"

	"github.com/rawblock/holdings-engine/pkg/models"
)

// Report stability metrics.
//
// The engine is deliberately single-pass: callers widen coverage by
// re-invoking it with an expanded transfer set (for example, adding the
// 2-hop neighborhood of the first pass's HIGH-tier wallets). These metrics
// quantify how much the attribution moved between two such passes over the
// same target, instantly exposing unstable tier assignments.

// ReportStability summarizes the agreement between two reports.
type ReportStability struct {
	// SharedWallets is the number of addresses admitted in both reports.
	SharedWallets int `json:"sharedWallets"`

	// TierAgreement is the fraction of shared wallets assigned the same
	// confidence tier in both reports. 1.0 = no tier moved.
	TierAgreement float64 `json:"tierAgreement"`

	// PopulationChurn is 1 minus the Jaccard similarity of the two admitted
	// wallet sets. 0 = identical populations, 1 = disjoint.
	PopulationChurn float64 `json:"populationChurn"`

	// AdjustedRand and VariationOfInfo compare the tier partitions of the
	// shared wallets (see AdjustedRandIndex / VariationOfInformation).
	AdjustedRand    float64 `json:"adjustedRand"`
	VariationOfInfo float64 `json:"variationOfInfo"`
}

// CompareReports computes stability metrics between a first-pass and an
// expanded-pass report of the same target.
func CompareReports(first, second models.HoldingsReport) ReportStability {
	firstTiers := tierByAddress(first)
	secondTiers := tierByAddress(second)

	shared := make([]string, 0)
	for addr := range firstTiers {
		if _, ok := secondTiers[addr]; ok {
			shared = append(shared, addr)
		}
	}
	sort.Strings(shared)

	agree := 0
	firstLabels := make([]int, 0, len(shared))
	secondLabels := make([]int, 0, len(shared))
	for _, addr := range shared {
		if firstTiers[addr] == secondTiers[addr] {
			agree++
		}
		firstLabels = append(firstLabels, tierLabel(firstTiers[addr]))
		secondLabels = append(secondLabels, tierLabel(secondTiers[addr]))
	}

	union := len(firstTiers) + len(secondTiers) - len(shared)

	s := ReportStability{
		SharedWallets:   len(shared),
		AdjustedRand:    AdjustedRandIndex(firstLabels, secondLabels),
		VariationOfInfo: VariationOfInformation(firstLabels, secondLabels),
	}
	if len(shared) > 0 {
		s.TierAgreement = float64(agree) / float64(len(shared))
	}
	if union > 0 {
		s.PopulationChurn = 1.0 - float64(len(shared))/float64(union)
	}
	return s
}

func tierByAddress(report models.HoldingsReport) map[string]string {
	tiers := make(map[string]string, len(report.Wallets))
	for _, w := range report.Wallets {
		tiers[w.Address] = w.Confidence
	}
	return tiers
}

func tierLabel(tier string) int {
	switch tier {
	case models.ConfidenceHigh:
		return 2
	case models.ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// AdjustedRandIndex computes the Adjusted Rand Index (ARI) between two
// labelings of the same wallet population. ARI evaluates how well one
// pass's tier partition agrees with the other's, beyond chance agreement.
//
// ARI = (RI - Expected_RI) / (Max_RI - Expected_RI)
// where RI = (a + b) / C(n, 2)
//   a = number of pairs in same tier in both passes
//   b = number of pairs in different tiers in both passes
//
// Values range from -1 (worse than random) to 1 (perfect agreement). 0 = random.
func AdjustedRandIndex(first, second []int) float64 {
	n := len(first)
	if n != len(second) || n < 2 {
		return 0.0
	}

	// Build contingency table
	firstIdx := labelIndex(first)
	secondIdx := labelIndex(second)

	// Contingency matrix n_ij
	nij := make([][]int, len(firstIdx))
	for i := range nij {
		nij[i] = make([]int, len(secondIdx))
	}

	for k := 0; k < n; k++ {
		nij[firstIdx[first[k]]][secondIdx[second[k]]]++
	}

	// Row sums (a_i) and column sums (b_j)
	rowSums := make([]int, len(firstIdx))
	colSums := make([]int, len(secondIdx))

	for i := range nij {
		for j := range nij[i] {
			rowSums[i] += nij[i][j]
			colSums[j] += nij[i][j]
		}
	}

	// Compute the index using combinatorial formula
	// sum of C(n_ij, 2)
	sumNijC2 := 0.0
	for i := range nij {
		for j := range nij[i] {
			sumNijC2 += comb2(nij[i][j])
		}
	}

	sumAiC2 := 0.0
	for _, a := range rowSums {
		sumAiC2 += comb2(a)
	}

	sumBjC2 := 0.0
	for _, b := range colSums {
		sumBjC2 += comb2(b)
	}

	nC2 := comb2(n)
	if nC2 == 0 {
		return 0.0
	}

	expectedIndex := (sumAiC2 * sumBjC2) / nC2
	maxIndex := 0.5 * (sumAiC2 + sumBjC2)

	denominator := maxIndex - expectedIndex
	if math.Abs(denominator) < 1e-12 {
		return 1.0 // Perfect agreement (both are 0)
	}

	return (sumNijC2 - expectedIndex) / denominator
}

// VariationOfInformation computes the VI distance between two labelings.
// VI is an information-theoretic metric that measures the amount of
// information lost and gained when transitioning from one tier partition
// to another.
//
// VI(C, C') = H(C|C') + H(C'|C)
// where H is the conditional entropy.
//
// Lower is better. 0 = identical partitions.
func VariationOfInformation(first, second []int) float64 {
	n := len(first)
	if n != len(second) || n < 2 {
		return 0.0
	}

	nf := float64(n)

	firstIdx := labelIndex(first)
	secondIdx := labelIndex(second)

	nij := make([][]int, len(firstIdx))
	for i := range nij {
		nij[i] = make([]int, len(secondIdx))
	}
	for k := 0; k < n; k++ {
		nij[firstIdx[first[k]]][secondIdx[second[k]]]++
	}

	rowSums := make([]int, len(firstIdx))
	colSums := make([]int, len(secondIdx))
	for i := range nij {
		for j := range nij[i] {
			rowSums[i] += nij[i][j]
			colSums[j] += nij[i][j]
		}
	}

	// H(C|C') = -sum_ij (n_ij/n) * log(n_ij / b_j)
	hCgivenCp := 0.0
	for i := range nij {
		for j := range nij[i] {
			if nij[i][j] > 0 && colSums[j] > 0 {
				pij := float64(nij[i][j]) / nf
				hCgivenCp -= pij * math.Log2(float64(nij[i][j])/float64(colSums[j]))
			}
		}
	}

	// H(C'|C) = -sum_ij (n_ij/n) * log(n_ij / a_i)
	hCpgivenC := 0.0
	for i := range nij {
		for j := range nij[i] {
			if nij[i][j] > 0 && rowSums[i] > 0 {
				pij := float64(nij[i][j]) / nf
				hCpgivenC -= pij * math.Log2(float64(nij[i][j])/float64(rowSums[i]))
			}
		}
	}

	return hCgivenCp + hCpgivenC
}

// comb2 computes C(n, 2) = n*(n-1)/2
func comb2(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n) * float64(n-1) / 2.0
}

// labelIndex maps each distinct label to a dense index, first-seen order
func labelIndex(labels []int) map[int]int {
	idx := make(map[int]int)
	for _, l := range labels {
		if _, ok := idx[l]; !ok {
			idx[l] = len(idx)
		}
	}
	return idx
}
