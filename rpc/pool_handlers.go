package rpc

import (
	"net/http"
	"strconv"

	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/native/rocket"
)

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.svc.Pools.Pools(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]poolResponse, len(pools))
	for i, p := range pools {
		out[i] = poolResponseFrom(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createPoolRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	id, err := s.svc.Pools.CreatePool(r.Context(), caller, rocket.PoolParams{
		TargetAmount:      req.TargetAmount.Value(),
		Tokens:            accounts(req.Tokens),
		Receiver:          req.Receiver,
		Price:             req.Price.Value(),
		RewardToken:       req.RewardToken,
		RewardTokenAmount: req.RewardTokenAmount.Value(),
		Expiry:            req.Expiry,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	pool, err := s.svc.Pools.Pool(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponseFrom(pool))
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	contrib, dists, err := s.svc.Pools.SchedulesOf(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := schedulesResponse{
		Contribution: make([]scheduleResponse, len(contrib)),
		Distribution: make([]distributionResponse, len(dists)),
	}
	for i, c := range contrib {
		resp.Contribution[i] = scheduleResponse{
			ID:        c.ID,
			PoolID:    c.PoolID,
			Tier:      c.Tier,
			MinAmount: amountOf(c.MinAmount),
			MaxAmount: amountOf(c.MaxAmount),
			Price:     amountOf(c.Price),
			Start:     c.Start,
			End:       c.End,
		}
	}
	for i, d := range dists {
		resp.Distribution[i] = distributionResponse{
			ID:           d.ID,
			PoolID:       d.PoolID,
			Start:        d.Start,
			End:          d.End,
			PeriodLength: d.PeriodLength,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	poolID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req contributionScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	id, err := s.svc.Pools.CreateContributionSchedule(r.Context(), caller, poolID, rocket.ScheduleParams{
		Tier:      req.Tier,
		MinAmount: req.MinAmount.Value(),
		MaxAmount: req.MaxAmount.Value(),
		Price:     req.Price.Value(),
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleCreateDistribution(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	poolID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req distributionScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	id, err := s.svc.Pools.CreateDistributionSchedule(r.Context(), caller, poolID, req.Start, req.End, req.PeriodLength)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	poolID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req contributeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.Pools.Contribute(r.Context(), caller, poolID, req.ScheduleID, req.Amount.Value(), req.Token); err != nil {
		writeError(w, err)
		return
	}
	rec, _, err := s.svc.Pools.Contribution(r.Context(), req.ScheduleID, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contributionResponseFrom(rec, nil))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	poolID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.Pools.WithdrawFundToReceiver(r.Context(), caller, poolID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDepositReward(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	poolID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.Pools.DepositPoolRewardTokens(r.Context(), caller, poolID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	poolID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := s.svc.Pools.ClaimPoolRewardToken(r.Context(), caller, poolID, req.ScheduleID, req.DistributionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Amount: amountOf(amount)})
}

// handleContribution returns one contributor's record. With ?distribution=N
// it also reports the vested share under that distribution schedule.
func (s *Server) handleContribution(w http.ResponseWriter, r *http.Request) {
	poolID, err := uintParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	scheduleID, err := uintParam(r, "schedule")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	account, err := accountParam(r, "account")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	sched, err := s.svc.Pools.ContributionSchedule(r.Context(), scheduleID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sched.PoolID != poolID {
		writeError(w, coreerrors.New(coreerrors.ErrNotFound, "rpc: contribution", "schedule does not belong to pool").WithID(scheduleID))
		return
	}
	rec, found, err := s.svc.Pools.Contribution(r.Context(), scheduleID, account)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, coreerrors.New(coreerrors.ErrNotFound, "rpc: contribution", "no contribution found").WithAccount(crypto.FormatAccount(account)))
		return
	}
	var vested *Amount
	if raw := r.URL.Query().Get("distribution"); raw != "" {
		distID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "invalid distribution "+strconv.Quote(raw))
			return
		}
		v, err := s.svc.Pools.VestedAmount(r.Context(), poolID, scheduleID, distID, account)
		if err != nil {
			writeError(w, err)
			return
		}
		a := amountOf(v)
		vested = &a
	}
	writeJSON(w, http.StatusOK, contributionResponseFrom(rec, vested))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Pools.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{Permissions: cfg.Permissions, FeeReceiver: cfg.FeeReceiver, FeeBps: cfg.FeeBps})
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req feeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Receiver == nil && req.Bps == nil {
		writeBadRequest(w, "receiver or bps required")
		return
	}
	if req.Receiver != nil {
		if err := s.svc.Pools.SetFeeReceiver(r.Context(), caller, *req.Receiver); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Bps != nil {
		if err := s.svc.Pools.SetFeeBps(r.Context(), caller, *req.Bps); err != nil {
			writeError(w, err)
			return
		}
	}
	s.handleConfig(w, r)
}

func (s *Server) handleRocketAdminAdd(w http.ResponseWriter, r *http.Request) {
	s.changeRocketAdmin(w, r, true)
}

func (s *Server) handleRocketAdminRemove(w http.ResponseWriter, r *http.Request) {
	s.changeRocketAdmin(w, r, false)
}

func (s *Server) changeRocketAdmin(w http.ResponseWriter, r *http.Request, grant bool) {
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
		err = s.svc.Pools.SetRocketAdmin(r.Context(), caller, req.Account)
	} else {
		err = s.svc.Pools.RevokeRocketAdmin(r.Context(), caller, req.Account)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func contributionResponseFrom(rec *rocket.Contribution, vested *Amount) contributionResponse {
	return contributionResponse{
		ScheduleID:        rec.ScheduleID,
		Contributor:       rec.Contributor,
		AmountContributed: amountOf(rec.AmountContributed),
		AmountToReceive:   amountOf(rec.AmountToReceive),
		Claimed:           rec.Claimed,
		Vested:            vested,
	}
}
