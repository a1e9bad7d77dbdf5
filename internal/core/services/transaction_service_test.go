package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finvolv/balance_backend/internal/apperrors"
	"github.com/finvolv/balance_backend/internal/core/domain"
	portsrepo "github.com/finvolv/balance_backend/internal/core/ports/repositories"
	portssvc "github.com/finvolv/balance_backend/internal/core/ports/services"
	"github.com/finvolv/balance_backend/internal/core/services"
	"github.com/finvolv/balance_backend/internal/dto"
	"github.com/finvolv/balance_backend/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Mock TransactionRepository ---
type MockTransactionRepository struct {
	mock.Mock
}

var _ portsrepo.TransactionRepositoryFacade = (*MockTransactionRepository)(nil)

func (m *MockTransactionRepository) ApplyTransaction(ctx context.Context, txn domain.Transaction, calc portsrepo.BalanceCalculator) (*domain.Transaction, error) {
	args := m.Called(ctx, txn, calc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumSignedAmountsAt(ctx context.Context, userID string, at time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, at)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// --- Mock IdempotencyStore ---
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Begin(ctx context.Context, key, requestHash string) (domain.ClaimState, *domain.IdempotencyRecord, error) {
	args := m.Called(ctx, key, requestHash)
	var record *domain.IdempotencyRecord
	if args.Get(1) != nil {
		record = args.Get(1).(*domain.IdempotencyRecord)
	}
	return args.Get(0).(domain.ClaimState), record, args.Error(2)
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, key string, result domain.OperationResult) error {
	args := m.Called(ctx, key, result)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Fail(ctx context.Context, key, errorKind string) error {
	args := m.Called(ctx, key, errorKind)
	return args.Error(0)
}

// --- Mock NotifierGateway ---
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(event domain.TransactionEvent) {
	m.Called(event)
}

func (m *MockNotifier) Close() {
	m.Called()
}

// --- Suite ---
type TransactionServiceTestSuite struct {
	suite.Suite

	mockRepo     *MockTransactionRepository
	mockStore    *MockIdempotencyStore
	mockNotifier *MockNotifier

	userID string
	key    string
}

func (s *TransactionServiceTestSuite) SetupTest() {
	s.mockRepo = new(MockTransactionRepository)
	s.mockStore = new(MockIdempotencyStore)
	s.mockNotifier = new(MockNotifier)
	s.userID = uuid.NewString()
	s.key = uuid.NewString()
}

func (s *TransactionServiceTestSuite) newService() portssvc.TransactionSvcFacade {
	return services.NewTransactionService(s.mockRepo, s.mockStore, s.mockNotifier)
}

func (s *TransactionServiceTestSuite) request(txnType domain.TransactionType, amount string) dto.SubmitTransactionRequest {
	return dto.SubmitTransactionRequest{
		UserID:         s.userID,
		Type:           txnType,
		Amount:         decimal.RequireFromString(amount),
		IdempotencyKey: s.key,
		TraceID:        uuid.NewString(),
	}
}

func (s *TransactionServiceTestSuite) TestFreshDepositCommits() {
	req := s.request(domain.Deposit, "50.00")
	hash := utils.RequestFingerprint(s.userID, domain.Deposit, req.Amount)

	s.mockStore.On("Begin", mock.Anything, s.key, hash).Return(domain.ClaimFresh, (*domain.IdempotencyRecord)(nil), nil)
	s.mockRepo.On("ApplyTransaction", mock.Anything, mock.Anything, mock.Anything).Return(
		&domain.Transaction{
			TransactionID:  "txn-1",
			UserID:         s.userID,
			Type:           domain.Deposit,
			Amount:         req.Amount,
			RunningBalance: decimal.RequireFromString("150.00"),
			Status:         domain.StatusCommitted,
			CreatedAt:      time.Now().UTC(),
		}, nil)
	s.mockStore.On("Complete", mock.Anything, s.key, domain.OperationResult{
		TransactionID: "txn-1",
		NewBalance:    decimal.RequireFromString("150.00"),
	}).Return(nil)
	s.mockNotifier.On("Notify", mock.MatchedBy(func(event domain.TransactionEvent) bool {
		return event.EventType == domain.EventTransactionCreated &&
			event.TransactionID == "txn-1" &&
			event.TraceID == req.TraceID
	})).Return()

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeCommitted, outcome.Status)
	s.Equal("txn-1", outcome.TransactionID)
	s.True(outcome.NewBalance.Equal(decimal.RequireFromString("150.00")))
	s.False(outcome.Replayed)
	s.mockStore.AssertExpectations(s.T())
	s.mockRepo.AssertExpectations(s.T())
	s.mockNotifier.AssertExpectations(s.T())
}

func (s *TransactionServiceTestSuite) TestBalanceCalculatorRejectsOverdraw() {
	req := s.request(domain.Withdraw, "60.00")

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimFresh, (*domain.IdempotencyRecord)(nil), nil)
	s.mockRepo.On("ApplyTransaction", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		calc := args.Get(2).(portsrepo.BalanceCalculator)

		// Withdraw within funds succeeds.
		newBalance, err := calc(decimal.RequireFromString("100.00"))
		s.NoError(err)
		s.True(newBalance.Equal(decimal.RequireFromString("40.00")))

		// Withdraw past zero is rejected by the calculator.
		_, err = calc(decimal.RequireFromString("59.99"))
		s.ErrorIs(err, apperrors.ErrInsufficientFunds)
	}).Return((*domain.Transaction)(nil), apperrors.ErrInsufficientFunds)
	s.mockStore.On("Fail", mock.Anything, s.key, dto.ErrKindInsufficientFunds).Return(nil)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeRejected, outcome.Status)
	s.Equal(dto.ErrKindInsufficientFunds, outcome.ErrorKind)
	s.mockStore.AssertExpectations(s.T())
}

func (s *TransactionServiceTestSuite) TestReplayOfCompletedOutcome() {
	req := s.request(domain.Deposit, "50.00")
	stored := &domain.IdempotencyRecord{
		Key:    s.key,
		Status: domain.ClaimCompleted,
		Result: &domain.OperationResult{
			TransactionID: "txn-earlier",
			NewBalance:    decimal.RequireFromString("150.00"),
		},
	}

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimCompleted, stored, nil)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeCommitted, outcome.Status)
	s.Equal("txn-earlier", outcome.TransactionID)
	s.True(outcome.Replayed)
	// No execution happened.
	s.mockRepo.AssertNotCalled(s.T(), "ApplyTransaction", mock.Anything, mock.Anything, mock.Anything)
	s.mockStore.AssertNotCalled(s.T(), "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func (s *TransactionServiceTestSuite) TestReplayOfFailedOutcome() {
	req := s.request(domain.Withdraw, "60.00")
	stored := &domain.IdempotencyRecord{
		Key:       s.key,
		Status:    domain.ClaimFailed,
		ErrorKind: dto.ErrKindInsufficientFunds,
	}

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimFailed, stored, nil)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeRejected, outcome.Status)
	s.Equal(dto.ErrKindInsufficientFunds, outcome.ErrorKind)
	s.True(outcome.Replayed)
	s.mockRepo.AssertNotCalled(s.T(), "ApplyTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func (s *TransactionServiceTestSuite) TestReplayedStorageFailureIsRetryable() {
	req := s.request(domain.Deposit, "10.00")
	stored := &domain.IdempotencyRecord{
		Key:       s.key,
		Status:    domain.ClaimFailed,
		ErrorKind: dto.ErrKindStorageError,
	}

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimFailed, stored, nil)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeStorageFailure, outcome.Status)
}

func (s *TransactionServiceTestSuite) TestDuplicateInFlightConflicts() {
	req := s.request(domain.Deposit, "50.00")

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimInProgress, (*domain.IdempotencyRecord)(nil), nil)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeConflict, outcome.Status)
	s.mockRepo.AssertNotCalled(s.T(), "ApplyTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func (s *TransactionServiceTestSuite) TestKeyPayloadMismatchSurfaces() {
	req := s.request(domain.Deposit, "50.00")

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimState(""), (*domain.IdempotencyRecord)(nil), apperrors.ErrKeyPayloadMismatch)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().ErrorIs(err, apperrors.ErrKeyPayloadMismatch)
	s.Nil(outcome)
}

func (s *TransactionServiceTestSuite) TestStoreOutageFailsClosed() {
	req := s.request(domain.Deposit, "50.00")

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimState(""), (*domain.IdempotencyRecord)(nil), apperrors.ErrStorageUnavailable)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeStorageFailure, outcome.Status)
	// Deduplication is never skipped.
	s.mockRepo.AssertNotCalled(s.T(), "ApplyTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func (s *TransactionServiceTestSuite) TestInvalidAmountRejectedBeforeClaim() {
	for _, amount := range []string{"0", "-5.00"} {
		req := s.request(domain.Withdraw, amount)

		outcome, err := s.newService().SubmitTransaction(context.Background(), req)

		s.Require().NoError(err)
		s.Equal(dto.OutcomeRejected, outcome.Status)
		s.Equal(dto.ErrKindInvalidAmount, outcome.ErrorKind)
	}
	s.mockStore.AssertNotCalled(s.T(), "Begin", mock.Anything, mock.Anything, mock.Anything)
}

func (s *TransactionServiceTestSuite) TestUnknownDirectionRejected() {
	req := s.request(domain.TransactionType("TRANSFER"), "5.00")

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeRejected, outcome.Status)
	s.Equal(dto.ErrKindInvalidAmount, outcome.ErrorKind)
}

func (s *TransactionServiceTestSuite) TestUserNotFoundRecordsFailure() {
	req := s.request(domain.Deposit, "5.00")

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimFresh, (*domain.IdempotencyRecord)(nil), nil)
	s.mockRepo.On("ApplyTransaction", mock.Anything, mock.Anything, mock.Anything).Return((*domain.Transaction)(nil), apperrors.ErrNotFound)
	s.mockStore.On("Fail", mock.Anything, s.key, dto.ErrKindUserNotFound).Return(nil)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeRejected, outcome.Status)
	s.Equal(dto.ErrKindUserNotFound, outcome.ErrorKind)
	s.mockStore.AssertExpectations(s.T())
}

func (s *TransactionServiceTestSuite) TestLedgerFailureRollsBackAndRecordsStorageError() {
	req := s.request(domain.Deposit, "5.00")

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimFresh, (*domain.IdempotencyRecord)(nil), nil)
	s.mockRepo.On("ApplyTransaction", mock.Anything, mock.Anything, mock.Anything).Return((*domain.Transaction)(nil), apperrors.NewAppError(500, "db down", errors.New("connection refused")))
	s.mockStore.On("Fail", mock.Anything, s.key, dto.ErrKindStorageError).Return(nil)

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	s.Require().NoError(err)
	s.Equal(dto.OutcomeStorageFailure, outcome.Status)
	s.Equal(dto.ErrKindStorageError, outcome.ErrorKind)
	s.mockNotifier.AssertNotCalled(s.T(), "Notify", mock.Anything)
}

func (s *TransactionServiceTestSuite) TestFinalizeFailureDoesNotAffectCommittedResult() {
	req := s.request(domain.Deposit, "50.00")

	s.mockStore.On("Begin", mock.Anything, s.key, mock.Anything).Return(domain.ClaimFresh, (*domain.IdempotencyRecord)(nil), nil)
	s.mockRepo.On("ApplyTransaction", mock.Anything, mock.Anything, mock.Anything).Return(
		&domain.Transaction{
			TransactionID:  "txn-2",
			UserID:         s.userID,
			Type:           domain.Deposit,
			Amount:         req.Amount,
			RunningBalance: decimal.RequireFromString("50.00"),
			Status:         domain.StatusCommitted,
			CreatedAt:      time.Now().UTC(),
		}, nil)
	s.mockStore.On("Complete", mock.Anything, s.key, mock.Anything).Return(apperrors.ErrStorageUnavailable)
	s.mockNotifier.On("Notify", mock.Anything).Return()

	outcome, err := s.newService().SubmitTransaction(context.Background(), req)

	// Ledger state is authoritative; the caller still sees success.
	s.Require().NoError(err)
	s.Equal(dto.OutcomeCommitted, outcome.Status)
	s.Equal("txn-2", outcome.TransactionID)
}

func TestTransactionService(t *testing.T) {
	suite.Run(t, new(TransactionServiceTestSuite))
}

// fakeLedger serializes ApplyTransaction per user like the row lock does, so
// the concurrency property can be checked without a database.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	applied  []domain.Transaction
}

func (f *fakeLedger) ApplyTransaction(ctx context.Context, txn domain.Transaction, calc portsrepo.BalanceCalculator) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.balances[txn.UserID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	newBalance, err := calc(current)
	if err != nil {
		return nil, err
	}
	f.balances[txn.UserID] = newBalance
	txn.RunningBalance = newBalance
	f.applied = append(f.applied, txn)
	return &txn, nil
}

func (f *fakeLedger) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return nil, apperrors.ErrNotFound
}

func (f *fakeLedger) SumSignedAmountsAt(ctx context.Context, userID string, at time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// fakeIdempotency is a map-backed store with the same atomic-claim semantics
// as the Redis implementation.
type fakeIdempotency struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord
}

func (f *fakeIdempotency) Begin(ctx context.Context, key, requestHash string) (domain.ClaimState, *domain.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rec, ok := f.records[key]; ok {
		if rec.RequestHash != requestHash {
			return "", nil, apperrors.ErrKeyPayloadMismatch
		}
		copied := *rec
		return rec.Status, &copied, nil
	}
	f.records[key] = &domain.IdempotencyRecord{
		Key:         key,
		Status:      domain.ClaimInProgress,
		RequestHash: requestHash,
		CreatedAt:   time.Now().UTC(),
	}
	return domain.ClaimFresh, f.records[key], nil
}

func (f *fakeIdempotency) Complete(ctx context.Context, key string, result domain.OperationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key].Status = domain.ClaimCompleted
	f.records[key].Result = &result
	return nil
}

func (f *fakeIdempotency) Fail(ctx context.Context, key, errorKind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key].Status = domain.ClaimFailed
	f.records[key].ErrorKind = errorKind
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.TransactionEvent) {}
func (nopNotifier) Close()                         {}

// TestConcurrentWithdrawals drives many racing operations through the real
// coordinator against fake stores and checks the ledger invariants: the
// balance never goes negative and the final balance equals the initial
// balance plus the signed sum of exactly the committed transactions.
func TestConcurrentWithdrawals(t *testing.T) {
	userID := uuid.NewString()
	initial := decimal.RequireFromString("100.00")
	ledger := &fakeLedger{balances: map[string]decimal.Decimal{userID: initial}}
	store := &fakeIdempotency{records: map[string]*domain.IdempotencyRecord{}}
	svc := services.NewTransactionService(ledger, store, nopNotifier{})

	const workers = 20
	amount := decimal.RequireFromString("30.00")

	var wg sync.WaitGroup
	outcomes := make([]*dto.TransactionOutcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := svc.SubmitTransaction(context.Background(), dto.SubmitTransactionRequest{
				UserID:         userID,
				Type:           domain.Withdraw,
				Amount:         amount,
				IdempotencyKey: uuid.NewString(),
				TraceID:        uuid.NewString(),
			})
			require.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, outcome := range outcomes {
		switch outcome.Status {
		case dto.OutcomeCommitted:
			committed++
		case dto.OutcomeRejected:
			assert.Equal(t, dto.ErrKindInsufficientFunds, outcome.ErrorKind)
		default:
			t.Fatalf("unexpected outcome status %s", outcome.Status)
		}
	}

	// 100.00 funds exactly three 30.00 withdrawals.
	assert.Equal(t, 3, committed)
	assert.Len(t, ledger.applied, 3)

	final := ledger.balances[userID]
	assert.True(t, final.Equal(decimal.RequireFromString("10.00")), "final balance %s", final)
	assert.False(t, final.IsNegative())

	sum := decimal.Zero
	for _, txn := range ledger.applied {
		sum = sum.Add(txn.SignedAmount())
	}
	assert.True(t, initial.Add(sum).Equal(final))
}

// TestSameKeyConcurrent checks that two racing submissions with one key yield
// exactly one committed execution; the loser observes either a conflict or
// the replayed result.
func TestSameKeyConcurrent(t *testing.T) {
	userID := uuid.NewString()
	ledger := &fakeLedger{balances: map[string]decimal.Decimal{userID: decimal.RequireFromString("100.00")}}
	store := &fakeIdempotency{records: map[string]*domain.IdempotencyRecord{}}
	svc := services.NewTransactionService(ledger, store, nopNotifier{})

	key := uuid.NewString()
	req := dto.SubmitTransactionRequest{
		UserID:         userID,
		Type:           domain.Withdraw,
		Amount:         decimal.RequireFromString("60.00"),
		IdempotencyKey: key,
		TraceID:        uuid.NewString(),
	}

	var wg sync.WaitGroup
	results := make([]*dto.TransactionOutcome, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := svc.SubmitTransaction(context.Background(), req)
			require.NoError(t, err)
			results[i] = outcome
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, outcome := range results {
		if outcome.Status == dto.OutcomeCommitted {
			committed++
		} else {
			assert.Equal(t, dto.OutcomeConflict, outcome.Status)
		}
	}
	assert.GreaterOrEqual(t, committed, 1)
	assert.Len(t, ledger.applied, 1, "exactly one execution for one key")
	assert.True(t, ledger.balances[userID].Equal(decimal.RequireFromString("40.00")))
}

// TestSequentialReplay checks that a retry after completion returns the
// stored result without creating a second transaction.
func TestSequentialReplay(t *testing.T) {
	userID := uuid.NewString()
	ledger := &fakeLedger{balances: map[string]decimal.Decimal{userID: decimal.RequireFromString("100.00")}}
	store := &fakeIdempotency{records: map[string]*domain.IdempotencyRecord{}}
	svc := services.NewTransactionService(ledger, store, nopNotifier{})

	req := dto.SubmitTransactionRequest{
		UserID:         userID,
		Type:           domain.Deposit,
		Amount:         decimal.RequireFromString("50.00"),
		IdempotencyKey: uuid.NewString(),
		TraceID:        uuid.NewString(),
	}

	first, err := svc.SubmitTransaction(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, dto.OutcomeCommitted, first.Status)

	second, err := svc.SubmitTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeCommitted, second.Status)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.True(t, first.NewBalance.Equal(second.NewBalance))
	assert.Len(t, ledger.applied, 1)
	assert.True(t, ledger.balances[userID].Equal(decimal.RequireFromString("150.00")))
}
