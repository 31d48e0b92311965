package records

import (
	"strconv"
	"strings"

	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/tablesrv/config"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Page selects a window of a record list.
type Page struct {
	Limit  int
	Offset int
}

func pageSizes() (def, max int) {
	def, max = DefaultPageSize, MaxPageSize
	if cfg := config.Config(); cfg != nil {
		if cfg.Records.DefaultPageSize > 0 {
			def = cfg.Records.DefaultPageSize
		}
		if cfg.Records.MaxPageSize > 0 {
			max = cfg.Records.MaxPageSize
		}
	}
	if def > max {
		def = max
	}
	return def, max
}

// ParsePage reads limit and offset query parameters. A missing or non-positive limit
// selects the default page size, a limit above the maximum is clamped and a negative
// offset is treated as zero. Values that are not integers are rejected.
func ParsePage(limit, offset string) (Page, apperrors.Error) {
	def, max := pageSizes()
	p := Page{Limit: def}
	if s := strings.TrimSpace(limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, ErrInvalidPagination.Msg("limit must be an integer")
		}
		p.Limit = n
	}
	if s := strings.TrimSpace(offset); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, ErrInvalidPagination.Msg("offset must be an integer")
		}
		p.Offset = n
	}
	return p.clamp(def, max), nil
}

func (p Page) clamp(def, max int) Page {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
