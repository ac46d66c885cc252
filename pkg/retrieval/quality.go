package retrieval

import (
	"math"

	"github.com/papercomputeco/shelf/pkg/errs"
)

const (
	RatingExcellent = "excellent"
	RatingGood      = "good"
	RatingFair      = "fair"
	RatingPoor      = "poor"
	RatingNone      = "no results"
)

// Bucket assigns Rating to result sets whose mean similarity is at least
// MinSimilarity.
type Bucket struct {
	MinSimilarity float64 `json:"min_similarity" toml:"min_similarity"`
	Rating        string  `json:"rating" toml:"rating"`
}

// DefaultBuckets is ordered from the highest threshold down. Anything below
// the last bucket is RatingPoor.
var DefaultBuckets = []Bucket{
	{MinSimilarity: 0.8, Rating: RatingExcellent},
	{MinSimilarity: 0.6, Rating: RatingGood},
	{MinSimilarity: 0.4, Rating: RatingFair},
}

// Spread summarizes one metric over a result set.
type Spread struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Quality is the aggregate view of a result set.
type Quality struct {
	Results    int     `json:"results"`
	Distance   *Spread `json:"distance,omitempty"`
	Similarity *Spread `json:"similarity,omitempty"`
	Rating     string  `json:"rating"`
}

// ValidateBuckets requires non-empty ratings and strictly descending
// thresholds.
func ValidateBuckets(buckets []Bucket) error {
	for i, b := range buckets {
		if b.Rating == "" {
			return errs.Newf(errs.KindConfiguration, "quality bucket %d has no rating", i)
		}
		if i > 0 && b.MinSimilarity >= buckets[i-1].MinSimilarity {
			return errs.Newf(errs.KindConfiguration, "quality bucket thresholds must descend (bucket %d)", i)
		}
	}
	return nil
}

// AnalyzeQuality computes distance and similarity spreads and rates the mean
// similarity against buckets. Lower bounds are inclusive.
func AnalyzeQuality(results []Result, buckets []Bucket) Quality {
	if len(results) == 0 {
		return Quality{Rating: RatingNone}
	}

	distances := make([]float64, len(results))
	similarities := make([]float64, len(results))
	for i, r := range results {
		distances[i] = r.Distance
		similarities[i] = r.Similarity
	}

	sim := spread(similarities)
	return Quality{
		Results:    len(results),
		Distance:   spreadPtr(spread(distances)),
		Similarity: spreadPtr(sim),
		Rating:     rate(sim.Mean, buckets),
	}
}

func rate(mean float64, buckets []Bucket) string {
	for _, b := range buckets {
		if mean >= b.MinSimilarity {
			return b.Rating
		}
	}
	return RatingPoor
}

// spread uses the population standard deviation.
func spread(values []float64) Spread {
	s := Spread{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - s.Mean
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(len(values)))
	return s
}

func spreadPtr(s Spread) *Spread {
	return &s
}
