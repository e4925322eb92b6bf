package reservation

import (
	"context"

	"go.uber.org/zap"

	"github.com/libreria/reservation-service/internal/model"
	"github.com/libreria/reservation-service/internal/repository"
)

type Service struct {
	log  *zap.Logger
	repo repository.Repository
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log,
		repo: repo,
	}
}

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

// Reserve binds the book to the user. A book that is already held is not
// overwritten; the caller gets errs.ErrAlreadyReserved.
func (s *Service) Reserve(ctx context.Context, bookID, userID int64) error {
	if err := s.repo.Reserve(ctx, bookID, userID); err != nil {
		return err
	}
	s.log.Debug("book reserved", zap.Int64("bookID", bookID), zap.Int64("userID", userID))
	return nil
}

// Cancel releases the reservation. Only the holding user may cancel;
// anything else (wrong user, not reserved) is errs.ErrUnauthorized.
func (s *Service) Cancel(ctx context.Context, bookID, userID int64) error {
	if err := s.repo.Cancel(ctx, bookID, userID); err != nil {
		return err
	}
	s.log.Debug("reservation cancelled", zap.Int64("bookID", bookID), zap.Int64("userID", userID))
	return nil
}
