package rpc

import (
	"net/http"
)

func (s *Server) handleItemsAdminAdd(w http.ResponseWriter, r *http.Request) {
	s.changeItemsAdmin(w, r, true)
}

func (s *Server) handleItemsAdminRemove(w http.ResponseWriter, r *http.Request) {
	s.changeItemsAdmin(w, r, false)
}

func (s *Server) changeItemsAdmin(w http.ResponseWriter, r *http.Request, grant bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var err error
	if grant {
		err = s.svc.Items.SetAdmin(r.Context(), caller, req.Account)
	} else {
		err = s.svc.Items.RevokeAdmin(r.Context(), caller, req.Account)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleItemsMint(w http.ResponseWriter, r *http.Request) {
	s.changeItems(w, r, true)
}

func (s *Server) handleItemsBurn(w http.ResponseWriter, r *http.Request) {
	s.changeItems(w, r, false)
}

func (s *Server) changeItems(w http.ResponseWriter, r *http.Request, mint bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req itemsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var err error
	if mint {
		err = s.svc.Items.MintBatch(r.Context(), caller, req.Account, req.IDs, req.Amounts)
	} else {
		err = s.svc.Items.BurnBatch(r.Context(), caller, req.Account, req.IDs, req.Amounts)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleItemsTransfer forwards transfer requests to the registry, which
// refuses them with ErrTransferDisabled.
func (s *Server) handleItemsTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req transferItemsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeError(w, s.svc.Items.SafeBatchTransferFrom(r.Context(), caller, req.From, req.To, req.IDs, req.Amounts, nil))
}

func (s *Server) handleItemsBalance(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r, "account")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	balance, err := s.svc.Items.BalanceOf(r.Context(), account, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": Account(account),
		"id":      id,
		"balance": balance,
	})
}
