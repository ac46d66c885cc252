package storage

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// NormalizePage clamps page and perPage into valid ranges and returns the
// row offset.
func NormalizePage(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage, (page - 1) * perPage
}
