// Package minting registers medicine batches on chain and stores them once
// the minted token id is known.
package minting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/chain"
	"github.com/dhanvantari/dhanvantari/internal/platform/lock"
)

const (
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultLockTTL        = 3 * time.Minute
	DefaultAnomalyLimit   = 50
)

// Chain is the ledger surface used by the flow. *chain.Client satisfies it.
type Chain interface {
	WalletAddress() (common.Address, error)
	CheckNetwork(ctx context.Context) error
	SubmitMint(ctx context.Context, call chain.MintCall) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Minted(receipt *types.Receipt) (*chain.Minted, error)
	ContractAddress() common.Address
}

// Batches persists minted batches. *medicine.Service satisfies it.
type Batches interface {
	CreateBatch(ctx context.Context, m *medicine.Medicine) ([]*medicine.Unit, error)
	BatchExists(ctx context.Context, manufacturerID uuid.UUID, batch string) (bool, error)
}

type Config struct {
	Network        chain.Network
	ConfirmTimeout time.Duration
	LockTTL        time.Duration
}

// Result is a successful mint.
type Result struct {
	State           State              `json:"state"`
	Medicine        *medicine.Medicine `json:"medicine"`
	Units           []*medicine.Unit   `json:"units"`
	TransactionHash string             `json:"transaction_hash"`
	ExplorerURL     string             `json:"explorer_url,omitempty"`
}

var (
	errChainDisabled = fmt.Errorf("minting is not configured: %w", chain.ErrWalletNotConnected)

	ErrWalletNotBound = fmt.Errorf("bind a wallet before confirming client-signed mints: %w", chain.ErrWalletNotConnected)
	ErrEventMismatch  = fmt.Errorf("mint event does not match the batch: %w", apperr.ErrValidation)
)

// UnconfirmedError is a submitted mint whose receipt was not seen in time.
// The transaction may still be mined.
type UnconfirmedError struct {
	TransactionHash string
	Err             error
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf("mint %s not confirmed: %v", e.TransactionHash, e.Err)
}

func (e *UnconfirmedError) Unwrap() error { return e.Err }

type Service struct {
	chain     Chain
	batches   Batches
	anomalies AnomalyRepository
	locker    lock.Locker
	cfg       Config
}

// NewService builds the flow. A nil chain disables minting.
func NewService(c Chain, batches Batches, anomalies AnomalyRepository, locker lock.Locker, cfg Config) *Service {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &Service{chain: c, batches: batches, anomalies: anomalies, locker: locker, cfg: cfg}
}

func (s *Service) Network() chain.Network { return s.cfg.Network }

// Mint signs and submits the mint with the server wallet, waits for it to
// be mined and stores the batch with its units. Once submitted, a mint that
// is not seen mined is recorded as an anomaly and returned as
// *UnconfirmedError so the client can finish it through Confirm.
func (s *Service) Mint(ctx context.Context, caller *account.Account, req BatchRequest) (*Result, error) {
	m, release, err := s.prepare(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	defer release()

	flow := newFlow(ctx, m.BatchNumber)
	if err := flow.to(StateWalletCheck); err != nil {
		return nil, err
	}
	if s.chain == nil {
		return nil, flow.fail(errChainDisabled)
	}
	to, err := s.chain.WalletAddress()
	if err != nil {
		return nil, flow.fail(err)
	}

	if err := s.checkNetwork(ctx, flow); err != nil {
		return nil, err
	}

	if err := flow.to(StateSubmitting); err != nil {
		return nil, err
	}
	tokenURI, err := MetadataFor(m).TokenURI()
	if err != nil {
		return nil, flow.fail(err)
	}
	m.ID = uuid.New()
	hash, err := s.chain.SubmitMint(ctx, chain.MintCall{
		To:                to,
		TokenURI:          tokenURI,
		MedicineID:        m.ID.String(),
		BatchNumber:       m.BatchNumber,
		ManufacturerName:  m.ManufacturerName,
		ExpiryDate:        m.ExpiryDate.Format(medicine.DateLayout),
		ManufacturingDate: m.ManufacturingDate.Format(medicine.DateLayout),
	})
	if err != nil {
		return nil, flow.fail(err)
	}
	flow.log.Info().Str("tx_hash", hash.Hex()).Msg("mint submitted")

	receipt, err := s.await(ctx, flow, hash)
	if err != nil {
		if !errors.Is(err, chain.ErrReverted) {
			s.recordAnomaly(ctx, m, hash, fmt.Errorf("unconfirmed: %w", err))
			err = &UnconfirmedError{TransactionHash: hash.Hex(), Err: err}
		}
		return nil, flow.fail(err)
	}
	ev, err := s.minted(ctx, m, hash, receipt)
	if err != nil {
		return nil, flow.fail(err)
	}
	if ev.FromEvent && (ev.BatchNumber != m.BatchNumber || ev.MedicineID != m.ID.String()) {
		err := fmt.Errorf("event names batch %q and medicine %q: %w", ev.BatchNumber, ev.MedicineID, ErrEventMismatch)
		s.recordAnomaly(ctx, m, hash, err)
		return nil, flow.fail(err)
	}
	return s.persist(ctx, flow, m, hash, ev.TokenID)
}

// Confirm stores a batch from a mined transaction the caller submitted
// themselves. The receipt's MedicineMinted event must name the requested
// batch and be minted by the caller's bound wallet, or by the server wallet
// when the hash is the caller's own unconfirmed mint. The event's medicine
// id becomes the batch id.
func (s *Service) Confirm(ctx context.Context, caller *account.Account, txHash string, req BatchRequest) (*Result, error) {
	hash, err := parseTxHash(txHash)
	if err != nil {
		return nil, err
	}
	m, release, err := s.prepare(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	defer release()

	flow := newFlow(ctx, m.BatchNumber)
	if s.chain == nil {
		if err := flow.to(StateNetworkCheck); err != nil {
			return nil, err
		}
		return nil, flow.fail(errChainDisabled)
	}
	minter, pending, err := s.expectedMinter(ctx, caller, hash, m.BatchNumber)
	if err != nil {
		if err := flow.to(StateNetworkCheck); err != nil {
			return nil, err
		}
		return nil, flow.fail(err)
	}
	if err := s.checkNetwork(ctx, flow); err != nil {
		return nil, err
	}

	receipt, err := s.await(ctx, flow, hash)
	if err != nil {
		return nil, flow.fail(err)
	}
	ev, err := s.minted(ctx, m, hash, receipt)
	if err != nil {
		return nil, flow.fail(err)
	}
	if err := checkClaim(ev, m, minter); err != nil {
		return nil, flow.fail(err)
	}
	id, err := uuid.Parse(ev.MedicineID)
	if err != nil {
		return nil, flow.fail(fmt.Errorf("medicine id %q is not a UUID: %w", ev.MedicineID, ErrEventMismatch))
	}
	m.ID = id

	res, err := s.persist(ctx, flow, m, hash, ev.TokenID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		if err := s.anomalies.Resolve(ctx, pending.ID); err != nil {
			flow.log.Warn().Err(err).Str("anomaly_id", pending.ID.String()).Msg("resolve confirmed mint anomaly")
		}
	}
	return res, nil
}

// expectedMinter returns the address a confirmed mint must come from and
// the open anomaly it completes, if any.
func (s *Service) expectedMinter(ctx context.Context, caller *account.Account, hash common.Hash, batch string) (common.Address, *Anomaly, error) {
	if s.anomalies != nil {
		a, err := s.anomalies.GetByHash(ctx, hash.Hex())
		switch {
		case err == nil && !a.Resolved && a.ManufacturerID == caller.ID && a.BatchNumber == batch:
			if server, err := s.chain.WalletAddress(); err == nil {
				return server, a, nil
			}
		case err != nil && !errors.Is(err, ErrAnomalyNotFound):
			return common.Address{}, nil, err
		}
	}
	wallet, ok := caller.Wallet()
	if !ok {
		return common.Address{}, nil, ErrWalletNotBound
	}
	return wallet, nil, nil
}

func checkClaim(ev *chain.Minted, m *medicine.Medicine, minter common.Address) error {
	if !ev.FromEvent {
		return fmt.Errorf("no MedicineMinted event in transaction: %w", ErrEventMismatch)
	}
	if ev.BatchNumber != m.BatchNumber {
		return fmt.Errorf("event names batch %q, not %q: %w", ev.BatchNumber, m.BatchNumber, ErrEventMismatch)
	}
	if ev.Manufacturer != minter {
		return fmt.Errorf("token minted by %s, not by %s: %w", ev.Manufacturer.Hex(), minter.Hex(), apperr.ErrForbidden)
	}
	return nil
}

// prepare validates the request, takes the per-batch lock and rejects
// batches that already exist. The returned func releases the lock.
func (s *Service) prepare(ctx context.Context, caller *account.Account, req BatchRequest) (*medicine.Medicine, func(), error) {
	if caller == nil {
		return nil, nil, apperr.ErrUnauthorized
	}
	m, err := req.batch(caller)
	if err != nil {
		return nil, nil, err
	}

	key := fmt.Sprintf("mint:%s:%s", caller.ID, m.BatchNumber)
	lease, err := s.locker.Obtain(ctx, key, s.cfg.LockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, nil, fmt.Errorf("batch %s is already being minted: %w", m.BatchNumber, apperr.ErrConflict)
	}
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("lock", key).Msg("release mint lock")
		}
	}

	exists, err := s.batches.BatchExists(ctx, caller.ID, m.BatchNumber)
	if err != nil {
		release()
		return nil, nil, err
	}
	if exists {
		release()
		return nil, nil, fmt.Errorf("batch %s already exists: %w", m.BatchNumber, medicine.ErrDuplicate)
	}
	return m, release, nil
}

func (s *Service) checkNetwork(ctx context.Context, flow *Flow) error {
	if err := flow.to(StateNetworkCheck); err != nil {
		return err
	}
	if err := s.chain.CheckNetwork(ctx); err != nil {
		return flow.fail(err)
	}
	return nil
}

func (s *Service) await(ctx context.Context, flow *Flow, hash common.Hash) (*types.Receipt, error) {
	if err := flow.to(StateConfirming); err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()
	return s.chain.WaitReceipt(waitCtx, hash)
}

// minted reads the mint from a receipt. A mined transaction without a token
// id is recorded as an anomaly.
func (s *Service) minted(ctx context.Context, m *medicine.Medicine, hash common.Hash, receipt *types.Receipt) (*chain.Minted, error) {
	ev, err := s.chain.Minted(receipt)
	if err != nil {
		s.recordAnomaly(ctx, m, hash, err)
		return nil, err
	}
	return ev, nil
}

func (s *Service) persist(ctx context.Context, flow *Flow, m *medicine.Medicine, hash common.Hash, tokenID string) (*Result, error) {
	m.TokenID = tokenID
	m.TransactionHash = hash.Hex()
	m.ContractAddress = s.chain.ContractAddress().Hex()
	units, err := s.batches.CreateBatch(ctx, m)
	if err != nil {
		if !errors.Is(err, apperr.ErrConflict) && !errors.Is(err, apperr.ErrValidation) {
			s.recordAnomaly(ctx, m, hash, fmt.Errorf("persist minted batch: %w", err))
		}
		return nil, flow.fail(err)
	}

	if err := flow.to(StateSuccess); err != nil {
		return nil, err
	}
	flow.log.Info().Str("token_id", tokenID).Int("units", len(units)).Msg("batch minted")
	return &Result{
		State:           flow.State(),
		Medicine:        m,
		Units:           units,
		TransactionHash: m.TransactionHash,
		ExplorerURL:     s.cfg.Network.TxURL(m.TransactionHash),
	}, nil
}

// recordAnomaly queues a transaction that reached the chain without a
// stored batch. Failing to record it is logged and does not replace the
// mint error.
func (s *Service) recordAnomaly(ctx context.Context, m *medicine.Medicine, hash common.Hash, cause error) {
	logger := zerolog.Ctx(ctx)
	logger.Error().Err(cause).Str("tx_hash", hash.Hex()).Str("batch_number", m.BatchNumber).
		Msg("chain transaction has no stored batch")
	if s.anomalies == nil {
		return
	}
	a := &Anomaly{
		TransactionHash: hash.Hex(),
		ManufacturerID:  m.ManufacturerID,
		BatchNumber:     m.BatchNumber,
		Reason:          cause.Error(),
	}
	if err := s.anomalies.Create(context.WithoutCancel(ctx), a); err != nil {
		logger.Error().Err(err).Str("tx_hash", hash.Hex()).Msg("record mint anomaly")
	}
}

func (s *Service) Anomalies(ctx context.Context, unresolvedOnly bool, limit int) ([]*Anomaly, error) {
	if limit <= 0 {
		limit = DefaultAnomalyLimit
	}
	return s.anomalies.List(ctx, unresolvedOnly, limit)
}

func (s *Service) ResolveAnomaly(ctx context.Context, id uuid.UUID) error {
	return s.anomalies.Resolve(ctx, id)
}

func parseTxHash(raw string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, apperr.Invalidf("transaction_hash must be a 0x-prefixed 32-byte hex string")
	}
	return common.BytesToHash(b), nil
}
