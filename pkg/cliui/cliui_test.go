package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/cliui"
)

var _ = Describe("cliui", func() {
	It("formats short and long durations", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})

	It("marks success and failure differently", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})

	It("prints a placeholder for empty fields", func() {
		var buf bytes.Buffer
		cliui.Field(&buf, 8, "model", "")
		Expect(buf.String()).To(ContainSubstring("<not set>"))
		Expect(buf.String()).To(ContainSubstring("model"))
	})

	It("keeps unknown ratings readable", func() {
		Expect(cliui.Rating("no results")).To(ContainSubstring("no results"))
	})
})
