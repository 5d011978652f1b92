package rpc

import (
	"net/http"

	coreerrors "rocket/core/errors"
)

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.svc.Tokens.Tokens(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]tokenResponse, len(tokens))
	for i, meta := range tokens {
		out[i] = tokenResponseFrom(meta)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	tok, err := accountParam(r, "token")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.Tokens.Approve(r.Context(), tok, caller, req.Spender, req.Amount.Value()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	tok, err := accountParam(r, "token")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	moved, err := s.svc.Tokens.Transfer(r.Context(), tok, caller, req.To, req.Amount.Value())
	if err != nil {
		writeError(w, err)
		return
	}
	if !moved {
		writeError(w, coreerrors.New(coreerrors.ErrTransferFailed, "rpc: transfer", "token transfer returned false"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	tok, err := accountParam(r, "token")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	account, err := accountParam(r, "account")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	balance, err := s.svc.Tokens.BalanceOf(r.Context(), tok, account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":   Account(tok),
		"account": Account(account),
		"balance": amountOf(balance),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	tok, err := accountParam(r, "token")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	owner, err := accountParam(r, "owner")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	spender, err := accountParam(r, "spender")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	allowance, err := s.svc.Tokens.Allowance(r.Context(), tok, owner, spender)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     Account(tok),
		"owner":     Account(owner),
		"spender":   Account(spender),
		"allowance": amountOf(allowance),
	})
}
