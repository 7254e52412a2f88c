package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSelectionClosed = errors.New("round is not accepting selections")
	ErrNotYourCard     = errors.New("card is not selected by this player")
)

// SelectionService stakes and releases cards while a round is waiting.
type SelectionService struct {
	repo store.Repository
	bet  decimal.Decimal
}

func NewSelectionService(repo store.Repository, bet decimal.Decimal) *SelectionService {
	return &SelectionService{repo: repo, bet: bet}
}

// Select debits the bet from the player's wallet and claims card cardNo
// for the round. Everything happens in one transaction so a failed claim
// leaves the wallet untouched.
func (s *SelectionService) Select(ctx context.Context, roundID, userID int64, cardNo int) (*models.PlayerSelection, error) {
	var sel *models.PlayerSelection
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		round, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		if round.Status != models.StatusWaiting {
			return ErrSelectionClosed
		}
		card, err := tx.GetCardByNo(ctx, cardNo)
		if err != nil {
			return fmt.Errorf("card %d: %w", cardNo, err)
		}

		if err := tx.Debit(ctx, models.Posting{
			UserID:  userID,
			Amount:  s.bet,
			TType:   models.TxBet,
			TRef:    "bet:" + uuid.NewString(),
			RoundID: &round.ID,
		}); err != nil {
			return err
		}
		sel, err = tx.CreateSelection(ctx, &models.PlayerSelection{
			RoundID: round.ID,
			UserID:  userID,
			CardID:  card.ID,
			Stake:   s.bet,
		})
		if err != nil {
			return err
		}
		return tx.AddStake(ctx, round.ID, s.bet)
	})
	if err != nil {
		return nil, fmt.Errorf("select card %d: %w", cardNo, err)
	}

	log.WithFields(log.Fields{"round": roundID, "user": userID, "card": cardNo, "stake": s.bet}).Info("card selected")
	return sel, nil
}

// Deselect releases the player's card and refunds the stake it was bought with.
func (s *SelectionService) Deselect(ctx context.Context, roundID, userID int64, cardNo int) error {
	var refund decimal.Decimal
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		round, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		if round.Status != models.StatusWaiting {
			return ErrSelectionClosed
		}
		card, err := tx.GetCardByNo(ctx, cardNo)
		if err != nil {
			return fmt.Errorf("card %d: %w", cardNo, err)
		}
		sel, err := tx.GetSelection(ctx, round.ID, card.ID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotYourCard
		}
		if err != nil {
			return err
		}
		if !sel.IsActive || sel.UserID != userID {
			return ErrNotYourCard
		}

		refund = sel.Stake
		if refund.IsPositive() {
			if err := tx.Credit(ctx, models.Posting{
				UserID:  userID,
				Amount:  refund,
				TType:   models.TxRefund,
				TRef:    "refund:" + uuid.NewString(),
				RoundID: &round.ID,
			}); err != nil {
				return err
			}
		}
		if err := tx.DeactivateSelection(ctx, sel.ID); err != nil {
			return err
		}
		return tx.AddStake(ctx, round.ID, refund.Neg())
	})
	if err != nil {
		return fmt.Errorf("deselect card %d: %w", cardNo, err)
	}

	log.WithFields(log.Fields{"round": roundID, "user": userID, "card": cardNo, "refund": refund}).Info("card released")
	return nil
}
