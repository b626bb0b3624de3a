package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuelos/backend/internal/cache"
	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/lock"
	"fuelos/backend/internal/metrics"
	"fuelos/backend/internal/reconcile"
	"fuelos/backend/internal/store"
	"fuelos/backend/internal/xid"
)

var (
	ErrForbidden            = errors.New("role not allowed")
	ErrSubmissionInProgress = errors.New("shift submission in progress")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options carries the optional collaborators of a Service. Zero values fall
// back to in-process defaults.
type Options struct {
	RateCache    cache.RateCache
	RateCacheTTL time.Duration
	Locker       lock.Locker
	Metrics      *metrics.Recorder
	Logger       *zap.Logger
	Policy       reconcile.Policy
	Location     *time.Location
	Clock        func() time.Time
}

type Service struct {
	repo     store.Repository
	rates    cache.RateCache
	rateTTL  time.Duration
	locker   lock.Locker
	metrics  *metrics.Recorder
	logger   *zap.Logger
	policy   reconcile.Policy
	location *time.Location
	now      func() time.Time
	validate *validator.Validate
}

func New(repo store.Repository, opts Options) *Service {
	if opts.RateCache == nil {
		opts.RateCache = cache.NoopRateCache{}
	}
	if opts.RateCacheTTL <= 0 {
		opts.RateCacheTTL = 5 * time.Minute
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewKeyedMutex()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if !opts.Policy.VarianceWarnThreshold.IsPositive() {
		opts.Policy = reconcile.DefaultPolicy()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Service{
		repo:     repo,
		rates:    opts.RateCache,
		rateTTL:  opts.RateCacheTTL,
		locker:   opts.Locker,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		policy:   opts.Policy,
		location: opts.Location,
		now:      opts.Clock,
		validate: validate,
	}
}

func (s *Service) ListPumps(ctx context.Context) ([]domain.Pump, error) {
	return s.repo.ListPumps(ctx)
}

func (s *Service) CreatePump(ctx context.Context, req domain.PumpCreateRequest) (domain.Pump, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.Pump{}, err
	}
	req.ID = strings.ToUpper(strings.TrimSpace(req.ID))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateRequest(req); err != nil {
		return domain.Pump{}, err
	}

	created, err := s.repo.CreatePump(ctx, domain.Pump{
		ID:        req.ID,
		Name:      req.Name,
		Active:    true,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Pump{}, err
	}

	s.logAudit(ctx, created.ID, "pump_create", "pump", created.ID, created.Name)
	return *created, nil
}

func (s *Service) ListNozzles(ctx context.Context, pumpID string, includeInactive bool) ([]domain.Nozzle, error) {
	pumpID = strings.TrimSpace(pumpID)
	if _, err := s.repo.GetPump(ctx, pumpID); err != nil {
		return nil, err
	}
	return s.repo.ListNozzles(ctx, pumpID, includeInactive)
}

func (s *Service) AddNozzle(ctx context.Context, pumpID string, req domain.NozzleCreateRequest) (domain.Nozzle, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.Nozzle{}, err
	}
	pumpID = strings.TrimSpace(pumpID)
	req.NozzleID = strings.ToUpper(strings.TrimSpace(req.NozzleID))
	if err := s.validateRequest(req); err != nil {
		return domain.Nozzle{}, err
	}
	if !req.FuelType.Valid() {
		return domain.Nozzle{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "fuel_type", Issue: fmt.Sprintf("unknown fuel %q", req.FuelType), PumpID: pumpID, NozzleID: req.NozzleID}
	}
	if req.InitialReading.IsNegative() {
		return domain.Nozzle{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "initial_reading", Issue: "must not be negative", PumpID: pumpID, NozzleID: req.NozzleID}
	}
	if _, err := s.repo.GetPump(ctx, pumpID); err != nil {
		return domain.Nozzle{}, err
	}

	created, err := s.repo.CreateNozzle(ctx, domain.Nozzle{
		PumpID:         pumpID,
		NozzleID:       req.NozzleID,
		FuelType:       req.FuelType,
		CurrentReading: req.InitialReading.Round(3),
		Operator:       strings.TrimSpace(req.Operator),
		Active:         true,
	})
	if err != nil {
		return domain.Nozzle{}, err
	}

	s.logAudit(ctx, pumpID, "nozzle_create", "nozzle", created.NozzleID, fmt.Sprintf("fuel=%s,reading=%s", created.FuelType, created.CurrentReading))
	return *created, nil
}

// DeactivateNozzle keeps the nozzle and its history but drops it from the
// set that future shifts must close.
func (s *Service) DeactivateNozzle(ctx context.Context, pumpID string, nozzleID string) (domain.Nozzle, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.Nozzle{}, err
	}
	updated, err := s.repo.SetNozzleActive(ctx, strings.TrimSpace(pumpID), strings.TrimSpace(nozzleID), false)
	if err != nil {
		return domain.Nozzle{}, err
	}
	s.logAudit(ctx, updated.PumpID, "nozzle_deactivate", "nozzle", updated.NozzleID, "")
	return *updated, nil
}

// GetRates serves the current rate table from the cache, refilling it from
// the store on a miss. Cache failures are logged and never fatal.
func (s *Service) GetRates(ctx context.Context) ([]domain.FuelRate, error) {
	cached, ok, err := s.rates.GetRates(ctx)
	if err != nil {
		s.logger.Warn("rate cache read failed", zap.Error(err))
	}
	if ok {
		return cached, nil
	}

	rates, err := s.repo.ListRates(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.rates.SetRates(ctx, rates, s.rateTTL); err != nil {
		s.logger.Warn("rate cache write failed", zap.Error(err))
	}
	return rates, nil
}

func (s *Service) SetRates(ctx context.Context, req domain.RatesUpdateRequest) ([]domain.FuelRate, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	actor, _ := ActorFromContext(ctx)
	now := s.now().UTC()
	rates := make([]domain.FuelRate, 0, len(req.Rates))
	for _, fuel := range domain.FuelTypes {
		rate, ok := req.Rates[fuel]
		if !ok {
			continue
		}
		if !rate.IsPositive() {
			return nil, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "rates", Issue: fmt.Sprintf("%s rate must be positive", fuel)}
		}
		rates = append(rates, domain.FuelRate{FuelType: fuel, Rate: rate.Round(2), EffectiveAt: now, ChangedBy: actor.Username})
	}
	if len(rates) != len(req.Rates) {
		return nil, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "rates", Issue: "unknown fuel type"}
	}

	if err := s.repo.SetRates(ctx, rates); err != nil {
		return nil, err
	}
	if err := s.rates.Invalidate(ctx); err != nil {
		s.logger.Warn("rate cache invalidate failed", zap.Error(err))
	}

	parts := make([]string, 0, len(rates))
	for _, r := range rates {
		parts = append(parts, fmt.Sprintf("%s=%s", r.FuelType, r.Rate))
	}
	s.logAudit(ctx, "", "rates_update", "fuel_rate", "current", strings.Join(parts, ","))
	return s.repo.ListRates(ctx)
}

func (s *Service) ListRateHistory(ctx context.Context, fuel domain.FuelType, limit int) ([]domain.FuelRate, error) {
	if fuel != "" && !fuel.Valid() {
		return nil, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "fuel_type", Issue: fmt.Sprintf("unknown fuel %q", fuel)}
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListRateHistory(ctx, fuel, limit)
}

// rateTable freezes the rates a shift computation uses. A cache hit is
// taken as is; otherwise every fuel is resolved against the store.
func (s *Service) rateTable(ctx context.Context, fuels []domain.FuelType) (reconcile.RateTable, error) {
	cached, ok, err := s.rates.GetRates(ctx)
	if err != nil {
		s.logger.Warn("rate cache read failed", zap.Error(err))
	}
	if ok {
		return reconcile.NewRateTable(cached), nil
	}
	return reconcile.CollectRates(ctx, storeRates{repo: s.repo}, fuels, s.now())
}

type storeRates struct {
	repo store.Repository
}

func (r storeRates) RateAt(ctx context.Context, fuel domain.FuelType, at time.Time) (decimal.Decimal, error) {
	rate, err := r.repo.RateAt(ctx, fuel, at)
	if errors.Is(err, store.ErrNotFound) {
		return rate, &reconcile.ValidationError{Err: reconcile.ErrRateMissing, Field: "rate", Issue: string(fuel)}
	}
	return rate, err
}

func (s *Service) CurrentShift(_ context.Context) domain.CurrentShiftResponse {
	local := s.now().In(s.location)
	return domain.CurrentShiftResponse{
		Date:  reconcile.BusinessDateFor(local),
		Shift: reconcile.CurrentShiftFor(local),
		At:    local.Format(time.RFC3339),
	}
}

func (s *Service) GetDailySales(ctx context.Context, pumpID string, date string) ([]domain.DailySales, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = s.CurrentShift(ctx).Date
	} else if _, err := reconcile.ParseDate(date); err != nil {
		return nil, err
	}
	return s.repo.GetDailySales(ctx, strings.TrimSpace(pumpID), date)
}

func (s *Service) ListAuditLogs(ctx context.Context, pumpID string, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := reconcile.ParseDate(date)
		if err != nil {
			return nil, err
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, strings.TrimSpace(pumpID), from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, pumpID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		PumpID:        pumpID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err))
	}
}

// validateRequest runs the struct tags and reports the first failing field
// as a ValidationError.
func (s *Service) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: fe.Field(), Issue: "failed " + fe.Tag()}
	}
	return &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Issue: err.Error()}
}

func requireRole(ctx context.Context, roles ...string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrForbidden, actor.Role)
}
