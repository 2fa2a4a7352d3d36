package rpc

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func contextWithCaller(ctx context.Context, caller [20]byte) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func callerFromContext(ctx context.Context) ([20]byte, bool) {
	caller, ok := ctx.Value(callerKey{}).([20]byte)
	return caller, ok
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", value)
	}
	return amount, nil
}

type contributeParams struct {
	Party  string `json:"party"`
	Amount string `json:"amount"`
}

type partyParams struct {
	Party string `json:"party"`
}

type whitelistParams struct {
	Parties []string `json:"parties"`
	Allowed bool     `json:"allowed"`
}

type enabledParams struct {
	Enabled bool `json:"enabled"`
}

type withdrawParams struct {
	Destination string `json:"destination"`
}

type emergencyValueParams struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type emergencyAssetParams struct {
	Asset       string `json:"asset"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type saleStatusResult struct {
	Status           string `json:"status"`
	StartTime        int64  `json:"startTime"`
	EndTime          int64  `json:"endTime"`
	SoftCap          string `json:"softCap"`
	HardCap          string `json:"hardCap"`
	MinContribution  string `json:"minContribution"`
	MaxContribution  string `json:"maxContribution"`
	Rate             string `json:"rate"`
	TotalRaised      string `json:"totalRaised"`
	Finalized        bool   `json:"finalized"`
	Succeeded        bool   `json:"succeeded"`
	WhitelistEnabled bool   `json:"whitelistEnabled"`
}

func (s *Server) handleSaleStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot, err := s.sale.Snapshot()
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, saleStatusResult{
		Status:           snapshot.Status.String(),
		StartTime:        snapshot.Params.StartTime,
		EndTime:          snapshot.Params.EndTime,
		SoftCap:          snapshot.Params.SoftCap.String(),
		HardCap:          snapshot.Params.HardCap.String(),
		MinContribution:  snapshot.Params.MinContribution.String(),
		MaxContribution:  snapshot.Params.MaxContribution.String(),
		Rate:             snapshot.Params.Rate.String(),
		TotalRaised:      snapshot.TotalRaised.String(),
		Finalized:        snapshot.Finalized,
		Succeeded:        snapshot.Succeeded,
		WhitelistEnabled: snapshot.WhitelistEnabled,
	})
}

func (s *Server) handleContributionOf(w http.ResponseWriter, r *http.Request) {
	party, err := parseAddress(chi.URLParam(r, "party"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := s.sale.ContributionOf(party)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"party":  formatAddress(party),
		"amount": amount.String(),
	})
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var params contributeParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	party, err := parseAddress(params.Party)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sale.Contribute(party, amount); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"party":  formatAddress(party),
		"amount": amount.String(),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var params partyParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	party, err := parseAddress(params.Party)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tokenAmount, err := s.sale.Claim(party)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"party":       formatAddress(party),
		"tokenAmount": tokenAmount.String(),
	})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var params partyParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	party, err := parseAddress(params.Party)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := s.sale.Refund(party)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"party":  formatAddress(party),
		"amount": amount.String(),
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "caller not established")
		return
	}
	success, err := s.sale.Finalize(caller)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": success})
}

func (s *Server) handleSetWhitelist(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "caller not established")
		return
	}
	var params whitelistParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	parties := make([][20]byte, 0, len(params.Parties))
	for _, entry := range params.Parties {
		party, err := parseAddress(entry)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		parties = append(parties, party)
	}
	if err := s.sale.SetWhitelist(caller, parties, params.Allowed); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": len(parties)})
}

func (s *Server) handleSetWhitelistEnabled(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "caller not established")
		return
	}
	var params enabledParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sale.SetWhitelistEnabled(caller, params.Enabled); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": params.Enabled})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "caller not established")
		return
	}
	var params withdrawParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	destination, err := parseAddress(params.Destination)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := s.sale.WithdrawFunds(caller, destination)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"destination": formatAddress(destination),
		"amount":      amount.String(),
	})
}

func (s *Server) handleEmergencyValue(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "caller not established")
		return
	}
	var params emergencyValueParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	destination, err := parseAddress(params.Destination)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sale.EmergencyWithdrawValue(caller, destination, amount); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"destination": formatAddress(destination),
		"amount":      amount.String(),
	})
}

func (s *Server) handleEmergencyAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "caller not established")
		return
	}
	var params emergencyAssetParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	destination, err := parseAddress(params.Destination)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sale.EmergencyWithdrawAsset(caller, params.Asset, destination, amount); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"asset":       strings.ToUpper(strings.TrimSpace(params.Asset)),
		"destination": formatAddress(destination),
		"amount":      amount.String(),
	})
}

func (s *Server) handleContributors(w http.ResponseWriter, _ *http.Request) {
	contributors, err := s.state.Contributors()
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	parties := make([]string, 0, len(contributors))
	for _, party := range contributors {
		parties = append(parties, formatAddress(party))
	}
	respondJSON(w, http.StatusOK, map[string][]string{"contributors": parties})
}

func (s *Server) handleTokenSupply(w http.ResponseWriter, _ *http.Request) {
	supply, err := s.token.TotalSupply()
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"supply": supply.String()})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.token.BalanceOf(addr)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"address": formatAddress(addr),
		"balance": balance.String(),
	})
}
