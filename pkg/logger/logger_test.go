package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/logger"
)

var _ = Describe("New", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("writes text records at info by default", func() {
		l := logger.New(logger.WithWriter(buf))
		l.Info("document stored", "document_id", 7)
		l.Debug("hidden")

		Expect(buf.String()).To(ContainSubstring("document stored"))
		Expect(buf.String()).To(ContainSubstring("document_id=7"))
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
	})

	It("emits debug records when enabled", func() {
		l := logger.New(logger.WithWriter(buf), logger.WithDebug(true))
		l.Debug("resolved api key", "provider", "openai")
		Expect(buf.String()).To(ContainSubstring("resolved api key"))
	})

	It("writes JSON records", func() {
		l := logger.New(logger.WithWriter(buf), logger.WithJSON(true))
		l.Info("EMBEDDING_USAGE", "tokens", 42)

		var parsed map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
		Expect(parsed["msg"]).To(Equal("EMBEDDING_USAGE"))
		Expect(parsed["tokens"]).To(BeNumerically("==", 42))
	})

	It("prefers the pretty handler over JSON", func() {
		l := logger.New(logger.WithWriter(buf), logger.WithJSON(true), logger.WithPretty(true))
		l.Info("listening", "addr", ":8080")

		Expect(buf.String()).To(ContainSubstring("listening"))
		Expect(json.Valid(buf.Bytes())).To(BeFalse())
	})

	It("adds the source location when asked", func() {
		l := logger.New(logger.WithWriter(buf), logger.WithJSON(true), logger.WithSource(true))
		l.Info("with source")
		Expect(buf.String()).To(ContainSubstring(`"source"`))
	})
})

var _ = Describe("NewFile", func() {
	It("appends JSON records to the file, creating parent directories", func() {
		path := filepath.Join(GinkgoT().TempDir(), "logs", "shelf.log")

		for _, msg := range []string{"first", "second"} {
			l, closer, err := logger.NewFile(path, false)
			Expect(err).NotTo(HaveOccurred())
			l.Info(msg)
			Expect(closer.Close()).To(Succeed())
		}

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[1]).To(ContainSubstring(`"msg":"second"`))
	})
})

var _ = Describe("Nop", func() {
	It("drops everything", func() {
		l := logger.Nop().With("component", "api").WithGroup("req")
		Expect(func() { l.Error("boom", "status", 500) }).NotTo(Panic())
		Expect(l.Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})

var _ = Describe("Multi", func() {
	var console, file *bytes.Buffer

	BeforeEach(func() {
		console = &bytes.Buffer{}
		file = &bytes.Buffer{}
	})

	It("sends each record to every sink", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(console)),
			logger.New(logger.WithWriter(file), logger.WithJSON(true)),
		)
		l.Info("upload complete", "chunks", 3)

		Expect(console.String()).To(ContainSubstring("upload complete"))
		Expect(file.String()).To(ContainSubstring(`"chunks":3`))
	})

	It("honours each sink's level", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(console)),
			logger.New(logger.WithWriter(file), logger.WithDebug(true)),
		)
		l.Debug("only in file")

		Expect(console.String()).To(BeEmpty())
		Expect(file.String()).To(ContainSubstring("only in file"))
	})

	It("carries attributes and groups to every sink", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(console), logger.WithJSON(true)),
			logger.New(logger.WithWriter(file), logger.WithJSON(true)),
		).With("component", "documents").WithGroup("doc")
		l.Info("deleted", "id", 4)

		for _, out := range []string{console.String(), file.String()} {
			Expect(out).To(ContainSubstring(`"component":"documents"`))
			Expect(out).To(ContainSubstring(`"doc":{"id":4}`))
		}
	})

	It("skips nil loggers", func() {
		l := logger.Multi(nil, logger.New(logger.WithWriter(console)))
		l.Info("still works")
		Expect(console.String()).To(ContainSubstring("still works"))
	})
})
