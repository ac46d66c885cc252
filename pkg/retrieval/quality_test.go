package retrieval_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/retrieval"
)

func withSimilarities(sims ...float64) []retrieval.Result {
	out := make([]retrieval.Result, len(sims))
	for i, s := range sims {
		out[i] = retrieval.Result{ChunkID: int64(i + 1), Similarity: s, Distance: 1 - s}
	}
	return out
}

var _ = Describe("AnalyzeQuality", func() {
	It("reports no results for an empty set", func() {
		q := retrieval.AnalyzeQuality(nil, retrieval.DefaultBuckets)
		Expect(q.Rating).To(Equal(retrieval.RatingNone))
		Expect(q.Distance).To(BeNil())
		Expect(q.Similarity).To(BeNil())
	})

	It("computes spreads with the population standard deviation", func() {
		q := retrieval.AnalyzeQuality(withSimilarities(0.9, 0.5), retrieval.DefaultBuckets)
		Expect(q.Results).To(Equal(2))
		Expect(q.Similarity.Min).To(BeNumerically("~", 0.5))
		Expect(q.Similarity.Max).To(BeNumerically("~", 0.9))
		Expect(q.Similarity.Mean).To(BeNumerically("~", 0.7))
		Expect(q.Similarity.StdDev).To(BeNumerically("~", 0.2, 1e-9))
		Expect(q.Distance.Mean).To(BeNumerically("~", 0.3, 1e-9))
		Expect(q.Rating).To(Equal(retrieval.RatingGood))
	})

	DescribeTable("bucket boundaries are inclusive lower bounds",
		func(sim float64, rating string) {
			q := retrieval.AnalyzeQuality(withSimilarities(sim), retrieval.DefaultBuckets)
			Expect(q.Rating).To(Equal(rating))
		},
		Entry("0.8", 0.8, retrieval.RatingExcellent),
		Entry("just under 0.8", 0.7999, retrieval.RatingGood),
		Entry("0.6", 0.6, retrieval.RatingGood),
		Entry("0.4", 0.4, retrieval.RatingFair),
		Entry("just under 0.4", 0.3999, retrieval.RatingPoor),
		Entry("negative", -0.5, retrieval.RatingPoor),
	)

	It("uses a custom table", func() {
		buckets := []retrieval.Bucket{{MinSimilarity: 0.95, Rating: "exact"}}
		Expect(retrieval.AnalyzeQuality(withSimilarities(0.96), buckets).Rating).To(Equal("exact"))
		Expect(retrieval.AnalyzeQuality(withSimilarities(0.9), buckets).Rating).To(Equal(retrieval.RatingPoor))
	})

	It("validates tables", func() {
		Expect(retrieval.ValidateBuckets(retrieval.DefaultBuckets)).To(Succeed())
		err := retrieval.ValidateBuckets([]retrieval.Bucket{{MinSimilarity: 0.4, Rating: "a"}, {MinSimilarity: 0.6, Rating: "b"}})
		Expect(errs.KindOf(err)).To(Equal(errs.KindConfiguration))
		err = retrieval.ValidateBuckets([]retrieval.Bucket{{MinSimilarity: 0.4}})
		Expect(errs.KindOf(err)).To(Equal(errs.KindConfiguration))
	})
})
