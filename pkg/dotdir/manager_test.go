package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv(dotdir.HomeEnv, "")
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewManager", func() {
		It("creates a new manager", func() {
			Expect(m).ToNot(BeNil())
		})
	})

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns existing directory without error", func() {
			result, err := m.Target(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(tmpDir))
		})

		It("returns the override dir even when a local .shelf dir exists", func() {
			// Create a local .shelf dir in the tmpDir
			localShelf := filepath.Join(tmpDir, ".shelf")
			Expect(os.Mkdir(localShelf, 0o755)).To(Succeed())

			// Change to tmpDir so the local dir is discoverable
			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .shelf dir when it exists and no override is provided", func() {
			// Create a local .shelf dir in the tmpDir
			localShelf := filepath.Join(tmpDir, ".shelf")
			Expect(os.Mkdir(localShelf, 0o755)).To(Succeed())

			// Change to tmpDir so the local dir is discoverable
			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(localShelf))
		})

		It("creates the home .shelf dir when no local dir exists and no override is provided", func() {
			// Ensure we're in a directory without a .shelf subdir
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(emptyDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			// Override HOME so that ~/.shelf from the real home dir is not found.
			origHome := os.Getenv("HOME")
			Expect(os.Setenv("HOME", emptyDir)).To(Succeed())
			DeferCleanup(func() { os.Setenv("HOME", origHome) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(emptyDir, ".shelf")))
			Expect(filepath.Join(emptyDir, ".shelf")).To(BeADirectory())
		})
	})

	Describe("SHELF_HOME", func() {
		It("takes precedence over a local .shelf dir but not over an override", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".shelf"), 0o755)).To(Succeed())
			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			home := filepath.Join(tmpDir, "shelf-home")
			GinkgoT().Setenv(dotdir.HomeEnv, "  "+home+"  ")

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(home))
			Expect(home).To(BeADirectory())

			override := filepath.Join(tmpDir, "override")
			result, err = m.Target(override)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(override))
		})
	})

	Describe("Resolve", func() {
		It("names every file kept in the shelf directory", func() {
			layout, err := m.Resolve(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(layout).To(Equal(dotdir.Layout{
				Dir:         tmpDir,
				Config:      filepath.Join(tmpDir, "config.toml"),
				Credentials: filepath.Join(tmpDir, "credentials.toml"),
				Database:    filepath.Join(tmpDir, "shelf.db"),
				Uploads:     filepath.Join(tmpDir, "uploads"),
			}))
		})
	})

	Describe("Path", func() {
		It("joins a name onto the resolved directory", func() {
			p, err := m.Path(tmpDir, "shelf.db")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(filepath.Join(tmpDir, "shelf.db")))
		})
	})
})
