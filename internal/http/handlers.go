package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"altarfunds/internal/core"
	"altarfunds/internal/display"
	applog "altarfunds/internal/log"
	"altarfunds/internal/services"
)

// apiFormatter renders amounts and dates for JSON consumers.
type apiFormatter struct{}

func (apiFormatter) FormatAmount(amount core.Money) string { return formatAmount(amount) }
func (apiFormatter) FormatDate(t time.Time) string         { return t.Format("02 Jan 2006") }

type dashboardResponse struct {
	Profile   *profilePayload `json:"profile,omitempty"`
	Summary   *summaryPayload `json:"summary,omitempty"`
	Recent    []display.Row   `json:"recent_transactions"`
	HasGiving bool            `json:"has_giving_history"`
}

type profilePayload struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	ChurchID int64  `json:"church_id"`
}

type summaryPayload struct {
	TotalIncomeCents   int64  `json:"total_income_cents"`
	TotalExpensesCents int64  `json:"total_expenses_cents"`
	BalanceCents       int64  `json:"balance_cents"`
	Balance            string `json:"balance"`
	YearlyBalanceCents int64  `json:"yearly_balance_cents"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	dash, ok := s.dashCache.Get(dashCacheKey)
	if !ok {
		dash = s.dash.Load(r.Context())
		s.dashCache.Set(dashCacheKey, dash)
	}

	resp := dashboardResponse{
		Recent:    display.Project(dash.Recent, apiFormatter{}),
		HasGiving: dash.HasTransactions,
	}
	if dash.ProfileOK {
		resp.Profile = &profilePayload{
			Name:     dash.Profile.Name,
			Phone:    dash.Profile.Phone,
			Email:    dash.Profile.Email,
			ChurchID: dash.Profile.ChurchID,
		}
	}
	if dash.SummaryOK {
		resp.Summary = &summaryPayload{
			TotalIncomeCents:   dash.Summary.TotalIncome.Cents,
			TotalExpensesCents: dash.Summary.TotalExpenses.Cents,
			BalanceCents:       dash.Summary.Balance().Cents,
			Balance:            formatAmount(dash.Summary.Balance()),
			YearlyBalanceCents: dash.Summary.YearlyBalance().Cents,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type giveRequest struct {
	Amount   string `json:"amount"`
	Category string `json:"category"`
}

type giveResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) handleGive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req giveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseAmountToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	gift := core.Gift{Amount: core.Money{Cents: cents}, Category: strings.TrimSpace(req.Category)}
	session, err := s.payments.Submit(r.Context(), gift)
	switch {
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrEmptyCategory):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case services.IsNetworkError(err):
		writeError(w, http.StatusBadGateway, "giving service unreachable, try again")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Give submission failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, giveResponse{
		Reference:   session.Reference,
		RedirectURL: session.RedirectURL,
	})
}

type verifyRequest struct {
	Reference string `json:"reference"`
}

type verifyResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Receipt   string `json:"receipt,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) handleGiveVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "missing payment reference")
		return
	}

	err := s.payments.Resolve(r.Context(), req.Reference)
	resp := verifyResponse{Reference: req.Reference}
	switch {
	case err == nil:
		resp.Status = "completed"
		if session, serr := s.payments.Session(req.Reference); serr == nil {
			resp.Receipt = session.Receipt
		}
		s.dashCache.Delete(dashCacheKey)
	case errors.Is(err, services.ErrProviderDeclined):
		resp.Status = "failed"
		resp.Message = "payment was declined"
		s.dashCache.Delete(dashCacheKey)
	case errors.Is(err, services.ErrAmbiguousOutcome):
		resp.Status = "unknown"
		resp.Message = "payment outcome unknown, check again later"
	case errors.Is(err, services.ErrUnknownSession):
		writeError(w, http.StatusNotFound, "unknown payment reference")
		return
	case errors.Is(err, services.ErrVerificationInFlight):
		writeError(w, http.StatusConflict, "verification already in progress")
		return
	default:
		s.logger.ErrorContext(r.Context(), "Verification failed",
			applog.FieldSessionRef, req.Reference, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type transactionsResponse struct {
	Transactions []display.Row `json:"transactions"`
	Stale        bool          `json:"stale"`
}

// handleTransactions serves the live giving history, falling back to the
// local cache when the backend is unreachable. The stale flag tells the
// client which one it got.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	txs, err := s.giving.ListTransactions(r.Context(), limit)
	stale := false
	if err != nil {
		s.logger.WarnContext(r.Context(), "Live transactions fetch failed, serving cache", "error", err)
		cached, cerr := s.txCache.GetAllTransactions(r.Context())
		if cerr != nil {
			writeError(w, http.StatusBadGateway, "giving history unavailable")
			return
		}
		if len(cached) > limit {
			cached = cached[:limit]
		}
		txs = cached
		stale = true
	}

	writeJSON(w, http.StatusOK, transactionsResponse{
		Transactions: display.Project(txs, apiFormatter{}),
		Stale:        stale,
	})
}

type recurringPayload struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Every    string `json:"every"`
	NextDate string `json:"next_date"`
	Status   string `json:"status"`
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	items, err := s.giving.ListRecurring(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "recurring giving unavailable")
		return
	}

	payload := make([]recurringPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, recurringPayload{
			ID:       item.ID,
			Category: item.Category,
			Amount:   formatAmount(item.Amount),
			Every:    string(item.Every),
			NextDate: item.NextDate,
			Status:   string(item.Status),
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleRecurringAction routes POST /api/recurring/{id}/pause and
// /api/recurring/{id}/resume.
func (s *Server) handleRecurringAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/recurring/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid recurring giving id")
		return
	}

	var status core.RecurringStatus
	switch parts[1] {
	case "pause":
		status = core.RecurringPaused
	case "resume":
		status = core.RecurringActive
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.giving.SetRecurringStatus(r.Context(), id, status); err != nil {
		s.logger.ErrorContext(r.Context(), "Recurring status update failed",
			"recurring_id", id, "status", string(status), "error", err)
		writeError(w, http.StatusBadGateway, "could not update recurring giving")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

type pledgePayload struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Target      string  `json:"target"`
	Paid        string  `json:"paid"`
	Progress    float64 `json:"progress"`
	TargetDate  string  `json:"target_date"`
}

func (s *Server) handlePledges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	pledges, err := s.giving.ListPledges(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "pledges unavailable")
		return
	}

	payload := make([]pledgePayload, 0, len(pledges))
	for _, p := range pledges {
		payload = append(payload, pledgePayload{
			ID:          p.ID,
			Description: p.Description,
			Target:      formatAmount(p.Target),
			Paid:        formatAmount(p.Paid),
			Progress:    p.Progress(),
			TargetDate:  p.TargetDate,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

type notificationPayload struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	Read      bool   `json:"read"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	notes, err := s.giving.ListNotifications(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "notifications unavailable")
		return
	}

	payload := make([]notificationPayload, 0, len(notes))
	for _, n := range notes {
		payload = append(payload, notificationPayload{
			ID:        n.ID,
			Title:     n.Title,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
			Read:      n.Read,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
