package rpc

import (
	"context"
	"net/http"
	"strconv"
)

type statusChange int

const (
	statusSuspend statusChange = iota
	statusUnsuspend
	statusReject
	statusUnreject
)

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := s.svc.Permissions.Tiers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tierResponses(tiers))
}

func (s *Server) handleCreateTier(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req tierRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.Permissions.CreateTier(r.Context(), caller, req.ID, req.Label); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tierResponse{ID: req.ID, Label: req.Label})
}

// withAccounts decodes an accounts body, plus the {id} path parameter when
// withID is set, and runs fn for the caller.
func (s *Server) withAccounts(w http.ResponseWriter, r *http.Request, withID bool, fn func(ctx context.Context, caller [20]byte, id uint64, accts [][20]byte) error) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var id uint64
	if withID {
		v, err := uintParam(r, "id")
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		id = v
	}
	var req accountsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := fn(r.Context(), caller, id, accounts(req.Accounts)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignTier(w http.ResponseWriter, r *http.Request) {
	s.withAccounts(w, r, true, func(ctx context.Context, caller [20]byte, id uint64, accts [][20]byte) error {
		return s.svc.Permissions.AssignTier(ctx, caller, accts, id)
	})
}

func (s *Server) handleRevokeTier(w http.ResponseWriter, r *http.Request) {
	s.withAccounts(w, r, true, func(ctx context.Context, caller [20]byte, id uint64, accts [][20]byte) error {
		return s.svc.Permissions.RevokeTier(ctx, caller, accts, id)
	})
}

func (s *Server) handleAssignItem(w http.ResponseWriter, r *http.Request) {
	s.withAccounts(w, r, true, func(ctx context.Context, caller [20]byte, id uint64, accts [][20]byte) error {
		return s.svc.Permissions.AssignItem(ctx, caller, id, accts)
	})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.withAccounts(w, r, true, func(ctx context.Context, caller [20]byte, id uint64, accts [][20]byte) error {
		return s.svc.Permissions.RemoveItem(ctx, caller, id, accts)
	})
}

func (s *Server) handleStatus(change statusChange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.withAccounts(w, r, false, func(ctx context.Context, caller [20]byte, _ uint64, accts [][20]byte) error {
			switch change {
			case statusSuspend:
				return s.svc.Permissions.SuspendUser(ctx, caller, accts)
			case statusUnsuspend:
				return s.svc.Permissions.UnsuspendUser(ctx, caller, accts)
			case statusReject:
				return s.svc.Permissions.RejectUser(ctx, caller, accts)
			default:
				return s.svc.Permissions.UnRejectUser(ctx, caller, accts)
			}
		})
	}
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	addr, err := s.svc.Permissions.PermissionItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registryRequest{Registry: addr})
}

func (s *Server) handleSetRegistry(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req registryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.Permissions.SetPermissionItems(r.Context(), caller, req.Registry); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePermissionsAdminAdd(w http.ResponseWriter, r *http.Request) {
	s.changePermissionsAdmin(w, r, true)
}

func (s *Server) handlePermissionsAdminRemove(w http.ResponseWriter, r *http.Request) {
	s.changePermissionsAdmin(w, r, false)
}

func (s *Server) changePermissionsAdmin(w http.ResponseWriter, r *http.Request, grant bool) {
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
		err = s.svc.Permissions.SetPermissionsAdmin(r.Context(), caller, req.Account)
	} else {
		err = s.svc.Permissions.RevokePermissionsAdmin(r.Context(), caller, req.Account)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAccountStatus reports the moderation flags. With ?tier=N it also
// reports whether the account holds that tier item.
func (s *Server) handleAccountStatus(w http.ResponseWriter, r *http.Request) {
	account, err := accountParam(r, "account")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	status, err := s.svc.Permissions.AccountStatus(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := accountStatusResponse{Account: account, Suspended: status.Suspended, Rejected: status.Rejected}
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "invalid tier "+strconv.Quote(raw))
			return
		}
		held, err := s.svc.Permissions.UserHasItem(r.Context(), account, tier)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Tier = &tier
		resp.HasItem = &held
	}
	writeJSON(w, http.StatusOK, resp)
}
