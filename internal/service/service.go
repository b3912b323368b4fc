// Package service is the domain layer over the entity repositories: update
// operations reject empty patches and return the re-read entity.
package service

import (
	"errors"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
	"github.com/quipper/poc/sis/be/pkg/common/metrics"
	"github.com/quipper/poc/sis/be/pkg/repositories"
)

var (
	ErrNoUpdateFields = errors.New("no update fields supplied")
	ErrSubjectInUse   = errors.New("subject is referenced by groups")
	ErrGroupInUse     = errors.New("group is referenced by grades")
)

// observe counts integrity rejections; other errors pass through untouched.
func observe(m *metrics.Metrics, op string, err error) error {
	if err != nil && repositories.IsValidation(err) {
		logger.Debug("%s rejected: %v", op, err)
		m.RejectedWrite(repositories.Reason(err))
	}
	return err
}
