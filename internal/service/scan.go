package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"opmelink-api/internal/metrics"
	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"
	"opmelink-api/internal/restriction"

	"go.uber.org/zap"
)

// ScanResult is an accepted scan.
type ScanResult struct {
	Quantity int                `json:"quantity"`
	Created  bool               `json:"created"`
	Implant  *model.ImplantItem `json:"implant"`
}

// ScanService gates the ledger behind the restriction check and the catalog.
type ScanService struct {
	rules   *RuleService
	catalog repository.ImplantRepository
	ledger  *LinkLedger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewScanService creates a scan service.
func NewScanService(rules *RuleService, catalog repository.ImplantRepository, ledger *LinkLedger, m *metrics.Metrics, logger *zap.Logger) *ScanService {
	return &ScanService{
		rules:   rules,
		catalog: catalog,
		ledger:  ledger,
		metrics: m,
		logger:  logger.Named("scan"),
	}
}

// Scan links barcode to record on behalf of p. The restriction is evaluated
// before the catalog lookup; a rejected scan leaves the ledger untouched.
func (s *ScanService) Scan(ctx context.Context, p model.Principal, record model.CaseRecord, barcode string) (*ScanResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", model.ErrInvalidInput)
	}

	rules, err := s.rules.RulesFor(ctx, p.OwnerID, barcode)
	if err != nil {
		s.metrics.Scan(metrics.OutcomeError)
		return nil, err
	}
	if decision := restriction.Evaluate(record.InsurancePlan, barcode, rules); !decision.Allowed {
		s.metrics.Scan(metrics.OutcomeBlocked)
		s.logger.Info("scan blocked",
			zap.String("owner_id", p.OwnerID),
			zap.Int64("case_id", record.CaseID),
			zap.String("barcode", barcode),
			zap.String("plan", record.InsurancePlan),
		)
		return nil, decision.Err()
	}

	item, err := s.catalog.GetImplant(ctx, p.OwnerID, barcode)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.metrics.Scan(metrics.OutcomeUnknown)
		} else {
			s.metrics.Scan(metrics.OutcomeError)
		}
		return nil, err
	}

	res, err := s.ledger.LinkOrIncrement(ctx, p.OwnerID, record.CaseID, barcode)
	if err != nil {
		s.metrics.Scan(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.Scan(metrics.OutcomeAccepted)
	return &ScanResult{Quantity: res.Link.Quantity, Created: res.Created, Implant: item}, nil
}

// ScanState is a state of ScanSession.
type ScanState string

// Scan session states.
const (
	StateIdle         ScanState = "idle"
	StateCaseSelected ScanState = "case_selected"
	StateReadyToScan  ScanState = "ready_to_scan"
	StateEvaluating   ScanState = "evaluating"
)

// Scan outcome kinds.
const (
	OutcomeAccepted    = "accepted"
	OutcomeBlocked     = "blocked"
	OutcomeUnknownItem = "unknown_item"
	OutcomeFailed      = "failed"
)

var (
	// ErrNoCaseSelected is returned by Scan before a case is selected.
	ErrNoCaseSelected = errors.New("no case selected")

	// ErrScanInProgress is returned when a scan is submitted while another is evaluating.
	ErrScanInProgress = errors.New("scan already in progress")
)

// ScanOutcome is what the last scan of a session produced.
type ScanOutcome struct {
	Kind    string                 `json:"kind"`
	Barcode string                 `json:"barcode"`
	Result  *ScanResult            `json:"result,omitempty"`
	Rule    *model.RestrictionRule `json:"rule,omitempty"`
	Err     error                  `json:"-"`
}

// ScanSession is the interactive scan state machine for one operator:
// Idle -> CaseSelected -> ReadyToScan -> Evaluating -> ReadyToScan.
// Selecting another case or clearing returns to Idle first. Nothing here
// outlives the process.
type ScanSession struct {
	svc       *ScanService
	principal model.Principal

	mu    sync.Mutex
	state ScanState
	rec   *model.CaseRecord
	last  *ScanOutcome
}

// NewScanSession starts an idle session for p.
func NewScanSession(svc *ScanService, p model.Principal) *ScanSession {
	return &ScanSession{svc: svc, principal: p, state: StateIdle}
}

// State returns the current state.
func (s *ScanSession) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Case returns the selected case, or nil.
func (s *ScanSession) Case() *model.CaseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// LastOutcome returns the outcome of the previous scan, or nil.
func (s *ScanSession) LastOutcome() *ScanOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SelectCase makes rec the active case and readies the session for scanning.
func (s *ScanSession) SelectCase(rec model.CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEvaluating {
		return ErrScanInProgress
	}
	s.reset()

	// CaseSelected is passed through: nothing loads between selection and scanning.
	s.rec = &rec
	s.state = StateReadyToScan
	return nil
}

// ClearCase returns the session to Idle.
func (s *ScanSession) ClearCase() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEvaluating {
		return ErrScanInProgress
	}
	s.reset()
	return nil
}

func (s *ScanSession) reset() {
	s.state = StateIdle
	s.rec = nil
	s.last = nil
}

// Scan evaluates barcode against the selected case. Blocked and unknown items
// come back as outcomes carrying their error; the session stays ReadyToScan.
func (s *ScanSession) Scan(ctx context.Context, barcode string) (*ScanOutcome, error) {
	s.mu.Lock()
	switch s.state {
	case StateEvaluating:
		s.mu.Unlock()
		return nil, ErrScanInProgress
	case StateReadyToScan:
	default:
		s.mu.Unlock()
		return nil, ErrNoCaseSelected
	}
	rec := *s.rec
	s.state = StateEvaluating
	s.mu.Unlock()

	res, err := s.svc.Scan(ctx, s.principal, rec, barcode)
	outcome := classify(strings.TrimSpace(barcode), res, err)

	s.mu.Lock()
	s.state = StateReadyToScan
	s.last = outcome
	s.mu.Unlock()

	return outcome, nil
}

func classify(barcode string, res *ScanResult, err error) *ScanOutcome {
	out := &ScanOutcome{Barcode: barcode, Result: res, Err: err}

	var restricted *model.RestrictionError
	switch {
	case err == nil:
		out.Kind = OutcomeAccepted
	case errors.As(err, &restricted):
		out.Kind = OutcomeBlocked
		rule := restricted.Rule
		out.Rule = &rule
	case errors.Is(err, model.ErrNotFound):
		out.Kind = OutcomeUnknownItem
	default:
		out.Kind = OutcomeFailed
	}
	return out
}
