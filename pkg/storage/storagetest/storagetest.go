// Package storagetest holds the behavioural specs every storage.Store must
// pass. Driver test packages call ItBehavesLikeAStore from a Describe block.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/storage"
)

// Dimensions is the vector width the shared specs use.
const Dimensions = 3

// Chunks builds n chunks whose embeddings point along the unit axes in turn.
func Chunks(n int) []storage.NewChunk {
	out := make([]storage.NewChunk, n)
	for i := range out {
		vec := make([]float32, Dimensions)
		vec[i%Dimensions] = 1
		out[i] = storage.NewChunk{
			Index:      i,
			Content:    fmt.Sprintf("chunk %d", i),
			TokenCount: 2,
			StartChar:  i * 8,
			EndChar:    i*8 + 7,
			Embedding:  vec,
		}
	}
	return out
}

func doc(checksum string, created time.Time) storage.NewDocument {
	return storage.NewDocument{
		Filename:  checksum + ".txt",
		Filepath:  "/tmp/" + checksum + ".txt",
		Checksum:  checksum,
		CreatedAt: created,
	}
}

func strPtr(s string) *string { return &s }

// ItBehavesLikeAStore registers the shared specs. newStore is called before
// each spec and must return an empty store.
func ItBehavesLikeAStore(newStore func() storage.Store) {
	var (
		store storage.Store
		ctx   context.Context
		base  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = nil
		store = newStore()
		base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
	})

	Describe("InsertDocument", func() {
		It("stores the document with its chunks in order", func() {
			id, err := store.InsertDocument(ctx, doc("aaa", base), Chunks(3))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			got, err := store.GetDocument(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Checksum).To(Equal("aaa"))
			Expect(got.Filename).To(Equal("aaa.txt"))
			Expect(got.ChunkCount).To(Equal(3))
			Expect(got.CreatedAt.Equal(base)).To(BeTrue())
			Expect(got.UpdatedAt.Equal(base)).To(BeTrue())

			chunks, err := store.GetChunks(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(3))
			for i, c := range chunks {
				Expect(c.Index).To(Equal(i))
				Expect(c.DocumentID).To(Equal(id))
				Expect(c.Content).To(Equal(fmt.Sprintf("chunk %d", i)))
			}
		})

		It("rejects a duplicate checksum without writing chunks", func() {
			_, err := store.InsertDocument(ctx, doc("same", base), Chunks(2))
			Expect(err).NotTo(HaveOccurred())

			_, err = store.InsertDocument(ctx, doc("same", base.Add(time.Second)), Chunks(4))
			Expect(errors.Is(err, storage.ErrDuplicate)).To(BeTrue())

			stats, err := store.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(storage.Stats{Documents: 1, Chunks: 2}))
		})
	})

	Describe("checksum lookups", func() {
		It("reports existence and ownership", func() {
			id, err := store.InsertDocument(ctx, doc("c1", base), Chunks(1))
			Expect(err).NotTo(HaveOccurred())

			exists, err := store.ExistsByChecksum(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			owner, found, err := store.ChecksumOwner(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(owner).To(Equal(id))

			_, found, err = store.ChecksumOwner(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	Describe("GetDocument", func() {
		It("returns NotFoundError for unknown ids", func() {
			_, err := store.GetDocument(ctx, 4242)
			Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListDocuments", func() {
		It("pages newest first and reports the total", func() {
			for i := range 5 {
				_, err := store.InsertDocument(ctx, doc(fmt.Sprintf("d%d", i), base.Add(time.Duration(i)*time.Minute)), Chunks(1))
				Expect(err).NotTo(HaveOccurred())
			}

			first, total, err := store.ListDocuments(ctx, 1, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(5))
			Expect(first).To(HaveLen(2))
			Expect(first[0].Checksum).To(Equal("d4"))
			Expect(first[1].Checksum).To(Equal("d3"))

			last, _, err := store.ListDocuments(ctx, 3, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(HaveLen(1))
			Expect(last[0].Checksum).To(Equal("d0"))

			beyond, _, err := store.ListDocuments(ctx, 9, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(beyond).To(BeEmpty())
		})
	})

	Describe("DeleteDocument", func() {
		It("removes the document, chunks and vectors", func() {
			id, err := store.InsertDocument(ctx, doc("gone", base), Chunks(3))
			Expect(err).NotTo(HaveOccurred())

			removed, err := store.DeleteDocument(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed.Filepath).To(Equal("/tmp/gone.txt"))

			_, err = store.GetDocument(ctx, id)
			Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())

			chunks, err := store.GetChunks(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())

			matches, err := store.SearchChunks(ctx, []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())

			exists, err := store.ExistsByChecksum(ctx, "gone")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := store.DeleteDocument(ctx, 999)
			Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ReplaceChunks", func() {
		It("swaps every chunk and updates metadata atomically", func() {
			id, err := store.InsertDocument(ctx, doc("v1", base), Chunks(3))
			Expect(err).NotTo(HaveOccurred())

			later := base.Add(time.Hour)
			err = store.ReplaceChunks(ctx, id, Chunks(2), storage.MetadataUpdate{
				Filename:  strPtr("renamed.txt"),
				Checksum:  strPtr("v2"),
				UpdatedAt: later,
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.GetDocument(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Filename).To(Equal("renamed.txt"))
			Expect(got.Filepath).To(Equal("/tmp/v1.txt"))
			Expect(got.Checksum).To(Equal("v2"))
			Expect(got.UpdatedAt.Equal(later)).To(BeTrue())
			Expect(got.CreatedAt.Equal(base)).To(BeTrue())
			Expect(got.ChunkCount).To(Equal(2))

			stats, err := store.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Chunks).To(Equal(2))
		})

		It("refuses to take another document's checksum", func() {
			_, err := store.InsertDocument(ctx, doc("owner", base), Chunks(1))
			Expect(err).NotTo(HaveOccurred())
			id, err := store.InsertDocument(ctx, doc("other", base), Chunks(2))
			Expect(err).NotTo(HaveOccurred())

			err = store.ReplaceChunks(ctx, id, Chunks(1), storage.MetadataUpdate{
				Checksum:  strPtr("owner"),
				UpdatedAt: base.Add(time.Hour),
			})
			Expect(errors.Is(err, storage.ErrDuplicate)).To(BeTrue())

			chunks, err := store.GetChunks(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
		})

		It("returns NotFoundError for unknown ids", func() {
			err := store.ReplaceChunks(ctx, 31337, Chunks(1), storage.MetadataUpdate{UpdatedAt: base})
			Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("UpdateDocumentMetadata", func() {
		It("updates only the given fields", func() {
			id, err := store.InsertDocument(ctx, doc("meta", base), Chunks(1))
			Expect(err).NotTo(HaveOccurred())

			err = store.UpdateDocumentMetadata(ctx, id, storage.MetadataUpdate{
				Filepath:  strPtr("/var/new.txt"),
				UpdatedAt: base.Add(time.Minute),
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.GetDocument(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Filepath).To(Equal("/var/new.txt"))
			Expect(got.Filename).To(Equal("meta.txt"))
			Expect(got.Checksum).To(Equal("meta"))
		})
	})

	Describe("SearchChunks", func() {
		It("orders by cosine distance and honours topK", func() {
			_, err := store.InsertDocument(ctx, doc("search", base), Chunks(3))
			Expect(err).NotTo(HaveOccurred())

			matches, err := store.SearchChunks(ctx, []float32{0, 1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].Content).To(Equal("chunk 1"))
			Expect(matches[0].Filename).To(Equal("search.txt"))
			Expect(matches[0].Distance).To(BeNumerically("~", 0, 1e-5))
			Expect(matches[1].Distance).To(BeNumerically("~", 1, 1e-5))
		})

		It("breaks distance ties by chunk id", func() {
			_, err := store.InsertDocument(ctx, doc("ties", base), Chunks(6))
			Expect(err).NotTo(HaveOccurred())

			matches, err := store.SearchChunks(ctx, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].Content).To(Equal("chunk 0"))
			Expect(matches[1].Content).To(Equal("chunk 3"))
			Expect(matches[0].ChunkID).To(BeNumerically("<", matches[1].ChunkID))
		})
	})
}
