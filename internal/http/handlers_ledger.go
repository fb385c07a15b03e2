package http

import (
	"context"
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
)

// kindRoute binds one URL segment to a ledger.
type kindRoute struct {
	kind core.Kind
	list func(core.Snapshot) any
	save func(ctx context.Context, w http.ResponseWriter, r *http.Request, userID, id string) (any, error)
}

func (s *Server) kindRoutes() map[string]kindRoute {
	return map[string]kindRoute{
		"revenue": {
			kind: core.KindRevenue,
			list: func(sn core.Snapshot) any { return nonNil(sn.Revenue) },
			save: saver(s.ledger.SaveRevenue, func(e *core.RevenueEntry, id string) { e.ID = id }),
		},
		"expenses": {
			kind: core.KindExpense,
			list: func(sn core.Snapshot) any { return nonNil(sn.Expenses) },
			save: saver(s.ledger.SaveExpense, func(e *core.ExpenseEntry, id string) { e.ID = id }),
		},
		"debts": {
			kind: core.KindDebt,
			list: func(sn core.Snapshot) any { return nonNil(sn.Debts) },
			save: saver(s.ledger.SaveDebt, func(e *core.DebtEntry, id string) { e.ID = id }),
		},
		"cash-flow": {
			kind: core.KindCashFlow,
			list: func(sn core.Snapshot) any { return nonNil(sn.CashFlow) },
			save: saver(s.ledger.SaveCashFlow, func(e *core.CashFlowEntry, id string) { e.ID = id }),
		},
		"profit-loss": {
			kind: core.KindProfitLoss,
			list: func(sn core.Snapshot) any { return nonNil(sn.ProfitLoss) },
			save: saver(s.ledger.SaveProfitLoss, func(e *core.ProfitLossEntry, id string) { e.ID = id }),
		},
		"kpis": {
			kind: core.KindKPI,
			list: func(sn core.Snapshot) any { return nonNil(sn.KPIs) },
			save: saver(s.ledger.SaveKPI, func(e *core.KpiEntry, id string) { e.ID = id }),
		},
	}
}

// errMalformed marks decode failures so they map to 400.
type errMalformed struct{ err error }

func (e errMalformed) Error() string { return e.err.Error() }

func saver[T any](
	save func(context.Context, string, T) (T, error),
	setID func(*T, string),
) func(context.Context, http.ResponseWriter, *http.Request, string, string) (any, error) {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, userID, id string) (any, error) {
		var e T
		if err := decodeBody(w, r, &e); err != nil {
			return nil, errMalformed{err}
		}
		setID(&e, id)
		return save(ctx, userID, e)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) (kindRoute, bool) {
	kr, ok := s.kinds[r.PathValue("kind")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown ledger "+r.PathValue("kind"))
	}
	return kr, ok
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kr, ok := s.route(w, r)
	if !ok {
		return
	}
	snap, err := s.ledger.Snapshot(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kr.list(snap))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.handleSave(w, r, "", http.StatusCreated, log.OpCreate)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.handleSave(w, r, r.PathValue("id"), http.StatusOK, log.OpUpdate)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, id string, status int, op string) {
	kr, ok := s.route(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	saved, err := kr.save(ctx, w, r, userID(ctx), id)
	if err != nil {
		if m, isMalformed := err.(errMalformed); isMalformed {
			writeError(w, http.StatusBadRequest, m.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Ledger entry saved",
		log.NewFields().WithLedgerChange(userID(ctx), string(kr.kind), op, id).ToSlice()...)
	writeJSON(w, status, saved)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	kr, ok := s.route(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := s.ledger.Delete(ctx, userID(ctx), kr.kind, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
