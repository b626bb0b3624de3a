package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/reconcile"
)

// UpdatePump renames or (de)activates a pump. An inactive pump keeps its
// history but accepts no new shift submissions.
func (s *Service) UpdatePump(ctx context.Context, pumpID string, req domain.PumpUpdateRequest) (domain.Pump, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.Pump{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.Pump{}, err
	}
	current, err := s.repo.GetPump(ctx, strings.ToUpper(strings.TrimSpace(pumpID)))
	if err != nil {
		return domain.Pump{}, err
	}

	next := *current
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
		if next.Name == "" {
			return domain.Pump{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "name", Issue: "must not be blank", PumpID: current.ID}
		}
	}
	if req.Active != nil {
		next.Active = *req.Active
	}
	updated, err := s.repo.UpdatePump(ctx, next)
	if err != nil {
		return domain.Pump{}, err
	}
	s.logAudit(ctx, updated.ID, "pump_update", "pump", updated.ID, fmt.Sprintf("name=%s,active=%t", updated.Name, updated.Active))
	return *updated, nil
}

func (s *Service) ListCreditCustomers(ctx context.Context, includeInactive bool) ([]domain.CreditCustomer, error) {
	return s.repo.ListCreditCustomers(ctx, includeInactive)
}

func (s *Service) GetCreditCustomer(ctx context.Context, id string) (domain.CreditCustomer, error) {
	c, err := s.repo.GetCreditCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CreditCustomer{}, err
	}
	return *c, nil
}

func (s *Service) CreateCreditCustomer(ctx context.Context, req domain.CreditCustomerCreateRequest) (domain.CreditCustomer, error) {
	if err := requireRole(ctx, domain.RoleManager, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.CreditCustomer{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.VehicleNo = strings.ToUpper(strings.TrimSpace(req.VehicleNo))
	if err := s.validateRequest(req); err != nil {
		return domain.CreditCustomer{}, err
	}
	if req.CreditLimit.IsNegative() {
		return domain.CreditCustomer{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "credit_limit", Issue: "must not be negative"}
	}

	created, err := s.repo.CreateCreditCustomer(ctx, domain.CreditCustomer{
		Name:        req.Name,
		Phone:       req.Phone,
		VehicleNo:   req.VehicleNo,
		CreditLimit: req.CreditLimit.Round(2),
		Balance:     decimal.Zero,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.CreditCustomer{}, err
	}
	s.logAudit(ctx, "", "credit_customer_create", "credit_customer", created.ID, fmt.Sprintf("name=%s,limit=%s", created.Name, created.CreditLimit))
	return *created, nil
}

func (s *Service) UpdateCreditCustomer(ctx context.Context, id string, req domain.CreditCustomerUpdateRequest) (domain.CreditCustomer, error) {
	if err := requireRole(ctx, domain.RoleManager, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.CreditCustomer{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.CreditCustomer{}, err
	}
	current, err := s.repo.GetCreditCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CreditCustomer{}, err
	}

	next := *current
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
		if next.Name == "" {
			return domain.CreditCustomer{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "name", Issue: "must not be blank"}
		}
	}
	if req.Phone != nil {
		next.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.VehicleNo != nil {
		next.VehicleNo = strings.ToUpper(strings.TrimSpace(*req.VehicleNo))
	}
	if req.CreditLimit != nil {
		if req.CreditLimit.IsNegative() {
			return domain.CreditCustomer{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "credit_limit", Issue: "must not be negative"}
		}
		next.CreditLimit = req.CreditLimit.Round(2)
	}
	if req.Active != nil {
		next.Active = *req.Active
	}
	next.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateCreditCustomer(ctx, next)
	if err != nil {
		return domain.CreditCustomer{}, err
	}
	s.logAudit(ctx, "", "credit_customer_update", "credit_customer", updated.ID,
		fmt.Sprintf("name=%s,limit=%s,active=%t", updated.Name, updated.CreditLimit, updated.Active))
	return *updated, nil
}

// DeactivateCreditCustomer hides the customer from new credit sales. The
// ledger and any outstanding balance stay.
func (s *Service) DeactivateCreditCustomer(ctx context.Context, id string) (domain.CreditCustomer, error) {
	inactive := false
	return s.UpdateCreditCustomer(ctx, id, domain.CreditCustomerUpdateRequest{Active: &inactive})
}

func (s *Service) ListCreditTransactions(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListCreditTransactions(ctx, strings.TrimSpace(customerID), limit)
}

// AddCreditTransaction books a manual charge or a settlement against one
// customer. Shift charges are written by SubmitShift.
func (s *Service) AddCreditTransaction(ctx context.Context, customerID string, req domain.CreditTransactionRequest) (domain.CreditTransaction, error) {
	if err := requireRole(ctx, domain.RoleManager, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.CreditTransaction{}, err
	}
	req.Type = domain.CreditEntryType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	req.Date = strings.TrimSpace(req.Date)
	req.Note = strings.TrimSpace(req.Note)
	if err := s.validateRequest(req); err != nil {
		return domain.CreditTransaction{}, err
	}
	if !req.Amount.Round(2).IsPositive() {
		return domain.CreditTransaction{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "amount", Issue: "must be positive"}
	}

	customer, err := s.repo.GetCreditCustomer(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	if req.Type == domain.CreditCharge && !customer.Active {
		return domain.CreditTransaction{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "customer_id", Issue: "customer is inactive"}
	}
	if req.Date == "" {
		req.Date = s.CurrentShift(ctx).Date
	}

	actor, _ := ActorFromContext(ctx)
	posted, err := s.repo.PostCreditTransaction(ctx, domain.CreditTransaction{
		CustomerID: customer.ID,
		Type:       req.Type,
		Amount:     req.Amount.Round(2),
		Date:       req.Date,
		Note:       req.Note,
		CreatedBy:  actor.Username,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}

	if after := (domain.CreditCustomer{CreditLimit: customer.CreditLimit, Balance: posted.Balance}); after.OverLimit() {
		s.logger.Warn("credit customer over limit",
			zap.String("customer_id", customer.ID),
			zap.String("balance", posted.Balance.String()),
			zap.String("limit", customer.CreditLimit.String()))
	}
	s.logAudit(ctx, "", "credit_"+string(posted.Type), "credit_customer", customer.ID,
		fmt.Sprintf("amount=%s,balance=%s", posted.Amount, posted.Balance))
	return *posted, nil
}

func (s *Service) CreditSummary(ctx context.Context) (domain.CreditSummary, error) {
	customers, err := s.repo.ListCreditCustomers(ctx, true)
	if err != nil {
		return domain.CreditSummary{}, err
	}
	return reconcile.SummarizeCredit(customers), nil
}

const maxSummaryDays = 366

// SalesSummary rolls submitted shifts up over an inclusive date range. An
// empty range means the current business date.
func (s *Service) SalesSummary(ctx context.Context, req domain.SalesSummaryRequest) (domain.SalesSummary, error) {
	req.PumpID = strings.ToUpper(strings.TrimSpace(req.PumpID))
	req.FromDate = strings.TrimSpace(req.FromDate)
	req.ToDate = strings.TrimSpace(req.ToDate)
	today := s.CurrentShift(ctx).Date
	if req.ToDate == "" {
		req.ToDate = today
	}
	if req.FromDate == "" {
		req.FromDate = req.ToDate
	}
	from, err := reconcile.ParseDate(req.FromDate)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	to, err := reconcile.ParseDate(req.ToDate)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	if to.Before(from) {
		return domain.SalesSummary{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "to", Issue: "before from"}
	}
	if to.Sub(from).Hours()/24 >= maxSummaryDays {
		return domain.SalesSummary{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "from", Issue: fmt.Sprintf("range longer than %d days", maxSummaryDays)}
	}
	if req.PumpID != "" {
		if _, err := s.repo.GetPump(ctx, req.PumpID); err != nil {
			return domain.SalesSummary{}, err
		}
	}

	reports, err := s.repo.ListShiftReports(ctx, domain.ShiftReportFilter{
		PumpID:   req.PumpID,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Limit:    maxSummaryDays * len(domain.ShiftNames) * 16,
	})
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return reconcile.SummarizeSales(reports, req.PumpID, req.FromDate, req.ToDate), nil
}
