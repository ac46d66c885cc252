package utils

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		result := Truncate("this is a long string", 10)
		Expect(result).To(Equal("this is a ..."))
	})
})

var _ = Describe("clip", func() {
	It("cuts on rune boundaries", func() {
		Expect(Clip("héllo wörld", 7)).To(Equal("héllo w"))
	})

	It("leaves shorter strings alone", func() {
		Expect(Clip("abc", 10)).To(Equal("abc"))
	})
})

var _ = Describe("checksum", func() {
	It("returns the sha256 hex digest", func() {
		Expect(Checksum([]byte("abc"))).To(Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
	})
})

var _ = Describe("sanitize filename", func() {
	It("replaces separators and reserved characters", func() {
		Expect(SanitizeFilename(`../etc/pa:ss<wd>?.txt`)).To(Equal(".._etc_pa_ss_wd__.txt"))
	})

	It("falls back for empty names", func() {
		Expect(SanitizeFilename("  ")).To(Equal("untitled"))
	})

	It("caps long names and keeps the extension", func() {
		long := strings.Repeat("a", 300) + ".txt"
		out := SanitizeFilename(long)
		Expect(len(out)).To(Equal(255))
		Expect(out).To(HaveSuffix(".txt"))
	})

	It("fits names to a byte limit without splitting runes", func() {
		out := FitFilename(strings.Repeat("é", 20)+".md", 12)
		Expect(out).To(Equal("éééé.md"))
		Expect(FitFilename("short.txt", 12)).To(Equal("short.txt"))
	})

	It("lowercases extensions", func() {
		Expect(Extension("Report.TXT")).To(Equal("txt"))
		Expect(Extension("noext")).To(BeEmpty())
	})
})
