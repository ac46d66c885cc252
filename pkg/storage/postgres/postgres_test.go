package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shelf/pkg/logger"
	"github.com/papercomputeco/shelf/pkg/storage"
	"github.com/papercomputeco/shelf/pkg/storage/postgres"
	"github.com/papercomputeco/shelf/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("SHELF_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("SHELF_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.ItBehavesLikeAStore(func() storage.Store {
		ctx := context.Background()
		driver, err := postgres.NewDriver(ctx, connStr(), storagetest.Dimensions, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		// Clean all rows before each test for isolation.
		Expect(driver.Truncate(ctx)).To(Succeed())
		return driver
	})

	It("requires dimensions", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://unused", 0, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})
