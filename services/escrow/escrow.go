// Package escrow implements the reservation state machine on top of the balance ledger: owners put part of
// their balance on hold with a signed authorization, and the hold is later executed (paid out to the
// recipient and executor) or reclaimed (released back to the owner).
//
// Every mutating operation runs in a single ledger unit of work, so a rejection leaves no state behind.
// Events are published only after the unit of work committed.
package escrow

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bsv-blockchain/escrowledger/authorization"
	"github.com/bsv-blockchain/escrowledger/clock"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/services/escrow/events"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/tracing"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/bsv-blockchain/escrowledger/util/health"
	"github.com/holiman/uint256"
	"github.com/ordishs/gocore"
)

type Escrow struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	store     ledger.Store
	clock     clock.Clock
	verifier  authorization.Verifier
	publisher events.Publisher
	cache     *reservationCache
	stats     *gocore.Stat
}

// New wires the state machine. A nil publisher drops events.
func New(logger ulogger.Logger, tSettings *settings.Settings, store ledger.Store, clk clock.Clock, verifier authorization.Verifier, publisher events.Publisher) *Escrow {
	initPrometheusMetrics()

	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &Escrow{
		logger:    logger,
		settings:  tSettings,
		store:     store,
		clock:     clk,
		verifier:  verifier,
		publisher: publisher,
		cache:     newReservationCache(tSettings.Escrow.ReservationCacheTTL, tSettings.Escrow.ReservationCacheSize),
		stats:     gocore.NewStat("escrow"),
	}
}

// Health reports liveness unconditionally; readiness aggregates the ledger store and the block clock.
func (e *Escrow) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "LedgerStore", Check: e.store.Health},
		{Name: "Clock", Check: func(context.Context, bool) (int, string, error) {
			return http.StatusOK, fmt.Sprintf("current block %d", e.clock.CurrentBlock()), nil
		}},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (e *Escrow) Clock() clock.Clock {
	return e.clock
}

func (e *Escrow) Verifier() authorization.Verifier {
	return e.verifier
}

// Reserve admits a signed reservation. Checks run in a fixed order and the first failure wins:
// executor set, expiry in the future, signature from the owner, nonce unused, enough unreserved balance.
// Any submitter may relay a valid request.
func (e *Escrow) Reserve(ctx context.Context, submitter model.Address, req *model.ReserveRequest) error {
	if err := validateReserveRequest(req); err != nil {
		return e.rejected(ctx, "reserve", err)
	}

	ctx, _, deferFn := tracing.StartTracing(ctx, "Escrow:Reserve",
		tracing.WithParentStat(e.stats),
		tracing.WithHistogram(prometheusEscrowDuration.WithLabelValues("reserve")),
		tracing.WithTag("owner", req.Owner.Hex()),
	)
	defer deferFn()

	if req.Executor == model.ZeroAddress {
		return e.rejected(ctx, "reserve", errors.NewExecutorZeroAddressError("executor is the zero address"))
	}

	block := e.clock.CurrentBlock()
	if req.ExpiryBlock <= block {
		return e.rejected(ctx, "reserve", errors.NewInvalidExpiryError("expiry block %d is not after current block %d", req.ExpiryBlock, block))
	}

	signer, err := e.verifier.RecoverReserve(authorization.ReserveMessageFromRequest(req), req.Signature)
	if err != nil {
		return e.rejected(ctx, "reserve", err)
	}

	if signer != req.Owner {
		return e.rejected(ctx, "reserve", errors.NewInvalidSignatureError("reservation signed by %s, not owner %s", signer.Hex(), req.Owner.Hex()))
	}

	reservation := &model.Reservation{
		Owner:        req.Owner,
		Nonce:        req.Nonce.Clone(),
		Recipient:    req.Recipient,
		Executor:     req.Executor,
		Amount:       req.Amount.Clone(),
		Fee:          req.Fee.Clone(),
		ExpiryBlock:  req.ExpiryBlock,
		CreatedBlock: block,
	}

	err = e.store.Update(ctx, func(txn ledger.Txn) error {
		// reservation row before account rows, the same order execute and reclaim lock in
		if err := checkNonceUnused(ctx, txn, reservation); err != nil {
			return err
		}

		// the owner lock serialises every reserve against this owner's unreserved balance
		accounts, err := txn.LockAccounts(ctx, req.Owner)
		if err != nil {
			return err
		}

		// a concurrent reserve of the same key may have committed while we waited for the owner lock
		if err = checkNonceUnused(ctx, txn, reservation); err != nil {
			return err
		}

		status, ok := transition(model.StatusDraft, eventReserve)
		if !ok {
			return errors.NewProcessingError("reservation lifecycle does not allow reserve from draft")
		}

		reservation.Status = status

		held, ok := reservation.Held()
		if !ok {
			return errors.NewInsufficientUnreservedBalanceError("amount %s plus fee %s overflows", req.Amount.Dec(), req.Fee.Dec())
		}

		if err = hold(accounts[req.Owner], held); err != nil {
			return err
		}

		if err = txn.InsertReservation(ctx, reservation); err != nil {
			return err
		}

		return putAccounts(ctx, txn, accounts)
	})
	if err != nil {
		return e.rejected(ctx, "reserve", err)
	}

	prometheusEscrowReserve.Inc()

	e.logger.Debugf("[Escrow:Reserve] %s nonce %s holds %s+%s for %s until block %d", req.Owner.Hex(), req.Nonce.Dec(), req.Amount.Dec(), req.Fee.Dec(), req.Recipient.Hex(), req.ExpiryBlock)

	e.publish(ctx, events.NewReservationEvent(events.TypeReserved, submitter, block, reservation))

	return nil
}

// Execute pays out an active, unexpired reservation: the owner loses amount+fee, the recipient gains
// amount and the executor gains fee. Only the owner or the executor may execute.
func (e *Escrow) Execute(ctx context.Context, submitter, owner model.Address, nonce *uint256.Int) error {
	ctx, _, deferFn := tracing.StartTracing(ctx, "Escrow:Execute",
		tracing.WithParentStat(e.stats),
		tracing.WithHistogram(prometheusEscrowDuration.WithLabelValues("execute")),
		tracing.WithTag("owner", owner.Hex()),
	)
	defer deferFn()

	if nonce == nil {
		return e.rejected(ctx, "execute", errors.NewInvalidArgumentError("nonce is required"))
	}

	var (
		executed *model.Reservation
		block    uint64
	)

	err := e.store.Update(ctx, func(txn ledger.Txn) error {
		r, err := txn.GetReservation(ctx, model.NewReservationKey(owner, nonce))
		if err != nil {
			return err
		}

		next, ok := transition(r.Status, eventExecute)
		if !ok {
			return errors.NewInvalidStatusForExecuteError("reservation %s/%s is %s", owner.Hex(), nonce.Dec(), r.Status)
		}

		block = e.clock.CurrentBlock()
		if block > r.ExpiryBlock {
			return errors.NewReservationExpiredError("reservation %s/%s expired at block %d, now %d", owner.Hex(), nonce.Dec(), r.ExpiryBlock, block)
		}

		if submitter != r.Owner && submitter != r.Executor {
			return errors.NewUnauthorizedExecuteError("%s is neither owner nor executor of %s/%s", submitter.Hex(), owner.Hex(), nonce.Dec())
		}

		held, ok := r.Held()
		if !ok {
			return errors.NewStorageError("reservation %s/%s holds an overflowing amount", owner.Hex(), nonce.Dec())
		}

		accounts, err := txn.LockAccounts(ctx, r.Owner, r.Recipient, r.Executor)
		if err != nil {
			return err
		}

		// recipient or executor may be the owner; the map hands back one account per address so every
		// leg lands on the same balance
		if err = release(accounts[r.Owner], held); err != nil {
			return err
		}

		if err = debit(accounts[r.Owner], held); err != nil {
			return err
		}

		if err = credit(accounts[r.Recipient], r.Amount); err != nil {
			return err
		}

		if err = credit(accounts[r.Executor], r.Fee); err != nil {
			return err
		}

		if err = putAccounts(ctx, txn, accounts); err != nil {
			return err
		}

		if err = txn.SetReservationStatus(ctx, r.Key(), next); err != nil {
			return err
		}

		r.Status = next
		executed = r

		return nil
	})
	if err != nil {
		return e.rejected(ctx, "execute", err)
	}

	prometheusEscrowExecute.Inc()
	e.cache.put(executed)

	e.logger.Debugf("[Escrow:Execute] %s/%s executed by %s at block %d", owner.Hex(), nonce.Dec(), submitter.Hex(), block)

	e.publish(ctx, events.NewReservationEvent(events.TypeExecuted, submitter, block, executed))

	return nil
}

// Reclaim releases an active reservation's hold without moving funds. The executor may reclaim at any
// time, the owner only once the reservation has expired.
func (e *Escrow) Reclaim(ctx context.Context, submitter, owner model.Address, nonce *uint256.Int) error {
	ctx, _, deferFn := tracing.StartTracing(ctx, "Escrow:Reclaim",
		tracing.WithParentStat(e.stats),
		tracing.WithHistogram(prometheusEscrowDuration.WithLabelValues("reclaim")),
		tracing.WithTag("owner", owner.Hex()),
	)
	defer deferFn()

	if nonce == nil {
		return e.rejected(ctx, "reclaim", errors.NewInvalidArgumentError("nonce is required"))
	}

	var (
		reclaimed *model.Reservation
		block     uint64
	)

	err := e.store.Update(ctx, func(txn ledger.Txn) error {
		r, err := txn.GetReservation(ctx, model.NewReservationKey(owner, nonce))
		if err != nil {
			return err
		}

		next, ok := transition(r.Status, eventReclaim)
		if !ok {
			return errors.NewInvalidStatusForReclaimError("reservation %s/%s is %s", owner.Hex(), nonce.Dec(), r.Status)
		}

		block = e.clock.CurrentBlock()

		switch submitter {
		case r.Executor:
			// the executor may always release the hold
		case r.Owner:
			if block <= r.ExpiryBlock {
				return errors.NewNotExpiredToReclaimError("reservation %s/%s expires at block %d, now %d", owner.Hex(), nonce.Dec(), r.ExpiryBlock, block)
			}
		default:
			return errors.NewUnauthorizedReclaimError("%s is neither owner nor executor of %s/%s", submitter.Hex(), owner.Hex(), nonce.Dec())
		}

		held, ok := r.Held()
		if !ok {
			return errors.NewStorageError("reservation %s/%s holds an overflowing amount", owner.Hex(), nonce.Dec())
		}

		accounts, err := txn.LockAccounts(ctx, r.Owner)
		if err != nil {
			return err
		}

		if err = release(accounts[r.Owner], held); err != nil {
			return err
		}

		if err = putAccounts(ctx, txn, accounts); err != nil {
			return err
		}

		if err = txn.SetReservationStatus(ctx, r.Key(), next); err != nil {
			return err
		}

		r.Status = next
		reclaimed = r

		return nil
	})
	if err != nil {
		return e.rejected(ctx, "reclaim", err)
	}

	prometheusEscrowReclaim.Inc()
	e.cache.put(reclaimed)

	e.logger.Debugf("[Escrow:Reclaim] %s/%s reclaimed by %s at block %d", owner.Hex(), nonce.Dec(), submitter.Hex(), block)

	e.publish(ctx, events.NewReservationEvent(events.TypeReclaimed, submitter, block, reclaimed))

	return nil
}

// Transfer is an ordinary transfer. It can only spend the unreserved part of the sender's balance.
func (e *Escrow) Transfer(ctx context.Context, from, to model.Address, amount *uint256.Int) error {
	ctx, _, deferFn := tracing.StartTracing(ctx, "Escrow:Transfer",
		tracing.WithParentStat(e.stats),
		tracing.WithHistogram(prometheusEscrowDuration.WithLabelValues("transfer")),
	)
	defer deferFn()

	if amount == nil {
		return e.rejected(ctx, "transfer", errors.NewInvalidArgumentError("amount is required"))
	}

	err := e.store.Update(ctx, func(txn ledger.Txn) error {
		accounts, err := txn.LockAccounts(ctx, from, to)
		if err != nil {
			return err
		}

		if err = debitUnreserved(accounts[from], amount); err != nil {
			return err
		}

		if err = credit(accounts[to], amount); err != nil {
			return err
		}

		return putAccounts(ctx, txn, accounts)
	})
	if err != nil {
		return e.rejected(ctx, "transfer", err)
	}

	prometheusEscrowTransfer.Inc()

	e.publish(ctx, events.NewTransferEvent(events.TypeTransferred, from, e.clock.CurrentBlock(), &events.Transfer{
		From:   from,
		To:     to,
		Amount: amount.Clone(),
	}))

	return nil
}

// TransferWithAuthorization moves funds on the strength of the owner's signature; the submitter relaying it
// collects the fee. Transfer nonces live apart from reservation nonces.
func (e *Escrow) TransferWithAuthorization(ctx context.Context, submitter model.Address, req *model.TransferRequest) error {
	if req == nil || req.Amount == nil || req.Fee == nil || req.Nonce == nil {
		return e.rejected(ctx, "transfer_signed", errors.NewInvalidArgumentError("amount, fee and nonce are required"))
	}

	ctx, _, deferFn := tracing.StartTracing(ctx, "Escrow:TransferWithAuthorization",
		tracing.WithParentStat(e.stats),
		tracing.WithHistogram(prometheusEscrowDuration.WithLabelValues("transfer_signed")),
		tracing.WithTag("owner", req.Owner.Hex()),
	)
	defer deferFn()

	signer, err := e.verifier.RecoverTransfer(authorization.TransferMessageFromRequest(req), req.Signature)
	if err != nil {
		return e.rejected(ctx, "transfer_signed", err)
	}

	if signer != req.Owner {
		return e.rejected(ctx, "transfer_signed", errors.NewInvalidSignatureError("transfer signed by %s, not owner %s", signer.Hex(), req.Owner.Hex()))
	}

	err = e.store.Update(ctx, func(txn ledger.Txn) error {
		accounts, err := txn.LockAccounts(ctx, req.Owner, req.Recipient, submitter)
		if err != nil {
			return err
		}

		if err = txn.UseTransferNonce(ctx, req.Owner, req.Nonce); err != nil {
			return err
		}

		total, ok := model.HeldAmount(req.Amount, req.Fee)
		if !ok {
			return errors.NewExceedsUnreservedBalanceError("amount %s plus fee %s overflows", req.Amount.Dec(), req.Fee.Dec())
		}

		if err = debitUnreserved(accounts[req.Owner], total); err != nil {
			return err
		}

		if err = credit(accounts[req.Recipient], req.Amount); err != nil {
			return err
		}

		if err = credit(accounts[submitter], req.Fee); err != nil {
			return err
		}

		return putAccounts(ctx, txn, accounts)
	})
	if err != nil {
		return e.rejected(ctx, "transfer_signed", err)
	}

	prometheusEscrowTransfer.Inc()

	e.publish(ctx, events.NewTransferEvent(events.TypeTransferred, submitter, e.clock.CurrentBlock(), &events.Transfer{
		From:   req.Owner,
		To:     req.Recipient,
		Amount: req.Amount.Clone(),
		Fee:    req.Fee.Clone(),
	}))

	return nil
}

// Credit adds amount to account. It is the ledger's internal mint primitive, used for genesis allocations.
func (e *Escrow) Credit(ctx context.Context, account model.Address, amount *uint256.Int) error {
	if amount == nil {
		return errors.NewInvalidArgumentError("amount is required")
	}

	err := e.store.Update(ctx, func(txn ledger.Txn) error {
		return creditTxn(ctx, txn, account, amount)
	})
	if err != nil {
		return e.rejected(ctx, "credit", err)
	}

	prometheusEscrowCredit.Inc()

	e.publish(ctx, events.NewTransferEvent(events.TypeCredited, account, e.clock.CurrentBlock(), &events.Transfer{
		To:     account,
		Amount: amount.Clone(),
	}))

	return nil
}

func creditTxn(ctx context.Context, txn ledger.Txn, account model.Address, amount *uint256.Int) error {
	accounts, err := txn.LockAccounts(ctx, account)
	if err != nil {
		return err
	}

	if err = credit(accounts[account], amount); err != nil {
		return err
	}

	return putAccounts(ctx, txn, accounts)
}

// GetReservation returns the stored record, or ErrReservationNotFound for a key that was never reserved.
func (e *Escrow) GetReservation(ctx context.Context, owner model.Address, nonce *uint256.Int) (*model.Reservation, error) {
	if nonce == nil {
		return nil, errors.NewInvalidArgumentError("nonce is required")
	}

	key := model.NewReservationKey(owner, nonce)

	if r, ok := e.cache.get(key); ok {
		return r, nil
	}

	var reservation *model.Reservation

	err := e.store.View(ctx, func(txn ledger.Txn) error {
		r, err := txn.GetReservation(ctx, key)
		if err != nil {
			return err
		}

		reservation = r

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.put(reservation)

	return reservation, nil
}

// ListReservations returns every reservation of owner, whatever its status, ordered by nonce.
func (e *Escrow) ListReservations(ctx context.Context, owner model.Address) ([]*model.Reservation, error) {
	var reservations []*model.Reservation

	err := e.store.View(ctx, func(txn ledger.Txn) (err error) {
		reservations, err = txn.ListReservations(ctx, owner)
		return err
	})
	if err != nil {
		return nil, err
	}

	return reservations, nil
}

func (e *Escrow) Account(ctx context.Context, addr model.Address) (*model.Account, error) {
	var account *model.Account

	err := e.store.View(ctx, func(txn ledger.Txn) (err error) {
		account, err = txn.GetAccount(ctx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (e *Escrow) BalanceOf(ctx context.Context, addr model.Address) (*uint256.Int, error) {
	account, err := e.Account(ctx, addr)
	if err != nil {
		return nil, err
	}

	return account.Balance, nil
}

func (e *Escrow) ReservedBalanceOf(ctx context.Context, addr model.Address) (*uint256.Int, error) {
	account, err := e.Account(ctx, addr)
	if err != nil {
		return nil, err
	}

	return account.Reserved, nil
}

func (e *Escrow) UnreservedBalanceOf(ctx context.Context, addr model.Address) (*uint256.Int, error) {
	account, err := e.Account(ctx, addr)
	if err != nil {
		return nil, err
	}

	return account.Unreserved(), nil
}

// rejected counts and logs a failed operation and hands the error back unchanged.
func (e *Escrow) rejected(ctx context.Context, op string, err error) error {
	tracing.RecordError(ctx, err)
	prometheusEscrowRejections.WithLabelValues(op, errors.CodeOf(err).String()).Inc()

	if errors.IsRejection(err) {
		e.logger.Debugf("[Escrow:%s] rejected: %v", op, err)
	} else {
		e.logger.Errorf("[Escrow:%s] failed: %v", op, err)
	}

	return err
}

// publish runs after commit; a delivery failure cannot undo the transition, so it is only logged.
func (e *Escrow) publish(ctx context.Context, event *events.Event) {
	if err := e.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		prometheusEscrowPublishErrors.Inc()
		e.logger.Warnf("[Escrow] failed to publish %s event %s: %v", event.Type, event.ID, err)
	}
}

func checkNonceUnused(ctx context.Context, txn ledger.Txn, r *model.Reservation) error {
	existing, err := txn.GetReservation(ctx, r.Key())

	switch {
	case err == nil:
		return errors.NewNonceAlreadyUsedError("nonce %s already used by %s (reservation is %s)", r.Nonce.Dec(), r.Owner.Hex(), existing.Status)
	case errors.Is(err, errors.ErrReservationNotFound):
		return nil
	default:
		return err
	}
}

func validateReserveRequest(req *model.ReserveRequest) error {
	if req == nil {
		return errors.NewInvalidArgumentError("reserve request is required")
	}

	if req.Amount == nil || req.Fee == nil || req.Nonce == nil {
		return errors.NewInvalidArgumentError("amount, fee and nonce are required")
	}

	return nil
}
