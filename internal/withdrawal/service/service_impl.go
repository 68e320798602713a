package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/lock"
	obslogger "github.com/smallbiznis/incomeengine/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/incomeengine/internal/observability/metrics"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters"
	payoutdomain "github.com/smallbiznis/incomeengine/internal/payout/domain"
	"github.com/smallbiznis/incomeengine/internal/withdrawal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	balanceLockKey = "withdrawal:balance"
	balanceLockTTL = 2 * time.Minute
)

type Params struct {
	fx.In

	Ledger  ledgerdomain.Service
	Payouts *adapters.Registry
	Remote  *lock.RedisLocker `optional:"true"`
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	ledger  ledgerdomain.Service
	payouts *adapters.Registry
	balance *lock.Mutex
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	log := p.Log.Named("withdrawal.service")
	return &Service{
		ledger:  p.Ledger,
		payouts: p.Payouts,
		balance: lock.NewMutex(balanceLockKey, balanceLockTTL, p.Remote, log),
		log:     log,
		metrics: p.Metrics,
	}
}

// RequestWithdrawal checks the balance and records the withdrawal under one
// lock, so two requests cannot both spend the same funds.
func (s *Service) RequestWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (domain.WithdrawalResult, error) {
	amount := ledgerdomain.NormalizeAmount(req.Amount)
	if !amount.IsPositive() {
		return domain.WithdrawalResult{}, domain.ErrInvalidAmount
	}
	// payouts move whole cents; the recorded amount must be what is sent
	if !amount.Equal(amount.Truncate(payoutdomain.CentPlaces)) {
		return domain.WithdrawalResult{}, domain.ErrAmountPrecision
	}

	release, err := s.balance.Lock(ctx)
	if err != nil {
		return domain.WithdrawalResult{}, fmt.Errorf("acquire balance lock: %w", err)
	}
	defer release()

	available, err := s.ledger.AvailableBalance(ctx)
	if err != nil {
		return domain.WithdrawalResult{}, err
	}
	if amount.GreaterThan(available) {
		return domain.WithdrawalResult{}, &domain.InsufficientFundsError{Requested: amount, Available: available}
	}

	provider, err := s.payouts.Get(req.Method)
	if err != nil {
		return domain.WithdrawalResult{}, err
	}
	kind := provider.Kind()

	record, err := s.ledger.RecordWithdrawal(ctx, kind, amount, provider.Destination(req.Recipient))
	if err != nil {
		return domain.WithdrawalResult{}, err
	}
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("withdrawal_id", record.ID.String()),
		zap.String("platform", kind),
		zap.String("amount", amount.StringFixed(2)),
	)
	s.metrics.RecordPayoutEvent(ctx, kind, "payout.requested")

	result, payErr := provider.Payout(ctx, amount, record.Destination)
	if payErr != nil {
		if !payoutdomain.IsPayoutError(payErr) {
			payErr = &payoutdomain.PayoutError{Provider: kind, Err: payErr}
		}
		log.Warn("withdrawal.payout.failed", zap.Error(payErr))
		s.metrics.RecordPayoutEvent(ctx, kind, "payout.failed")

		// the provider may have failed on ctx; the record still has to settle
		failed, err := s.ledger.UpdateWithdrawalStatus(context.WithoutCancel(ctx), record.ID, ledgerdomain.WithdrawalStatusFailed, "")
		if err != nil {
			return domain.WithdrawalResult{Withdrawal: record}, errors.Join(payErr, err)
		}
		s.note(ctx, ledgerdomain.LogLevelError, fmt.Sprintf("Withdrawal of $%s via %s failed", amount.StringFixed(2), kind), record.ID)
		return domain.WithdrawalResult{
			Withdrawal: failed,
			Message:    payErr.Error(),
		}, payErr
	}

	updated, err := s.ledger.UpdateWithdrawalStatus(context.WithoutCancel(ctx), record.ID, result.Status, result.TransactionID)
	if err != nil {
		log.Error("withdrawal.status.update_failed", zap.String("status", string(result.Status)), zap.Error(err))
		return domain.WithdrawalResult{Withdrawal: record}, fmt.Errorf("update withdrawal status: %w", err)
	}
	s.metrics.RecordPayoutEvent(ctx, kind, "payout."+string(result.Status))
	s.note(ctx, ledgerdomain.LogLevelInfo, fmt.Sprintf("Withdrawal of $%s via %s %s", amount.StringFixed(2), kind, result.Status), record.ID)
	log.Info("withdrawal.requested", zap.String("status", string(updated.Status)))

	return domain.WithdrawalResult{
		Withdrawal:   updated,
		Message:      result.Message,
		Instructions: result.Instructions,
	}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status ledgerdomain.WithdrawalStatus, transactionID string) (ledgerdomain.Withdrawal, error) {
	updated, err := s.ledger.UpdateWithdrawalStatus(ctx, id, status, transactionID)
	if err != nil {
		return ledgerdomain.Withdrawal{}, err
	}
	s.note(ctx, ledgerdomain.LogLevelInfo, fmt.Sprintf("Withdrawal marked %s", status), id)
	return updated, nil
}

func (s *Service) note(ctx context.Context, level ledgerdomain.LogLevel, message string, id snowflake.ID) {
	err := s.ledger.AppendLog(ctx, ledgerdomain.AppendLogRequest{
		Level:   level,
		Message: message,
		Data:    map[string]any{"withdrawal_id": id.String()},
	})
	if err != nil {
		s.log.Warn("withdrawal.log.append_failed", zap.Error(err))
	}
}
