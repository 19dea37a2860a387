package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/auth"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/claims"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

type merkleTreeResponse struct {
	MerkleTree *merkle.PayoutTree `json:"merkle_tree"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.HealthCheck(); err != nil {
		s.logger.Sugar().Warnw("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, &types.HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// handleCreateSnapshot accepts a snapshot task owned by the authenticated wallet
func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSnapshotRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	owner, _ := auth.SubjectFromContext(r.Context())
	snapshot, err := s.manager.Create(r.Context(), &req, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.CreateSnapshotResponse{ID: snapshot.ID})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.manager.GetById(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &types.SnapshotFilter{
		Owner:        q.Get("owner"),
		AssetAddress: q.Get("asset"),
	}
	if v := q.Get("chainId"); v != "" {
		chainId, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, r, types.NewValidationError("invalid chainId %q", v))
			return
		}
		filter.ChainID = chainId
	}
	for _, st := range splitList(q.Get("status")) {
		status := types.SnapshotStatus(strings.ToUpper(st))
		if !status.IsValid() {
			s.writeError(w, r, types.NewValidationError("invalid status %q", st))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	snapshots, err := s.manager.List(filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.ListSnapshotsResponse{Snapshots: snapshots})
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreatePayoutTask accepts the payout flavor of a snapshot request. GET takes the block
// and ignore list from the query string, POST from a JSON body.
func (s *Server) handleCreatePayoutTask(w http.ResponseWriter, r *http.Request) {
	chainId, err := chainIdParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body types.CreatePayoutTaskRequest
	if r.Method == http.MethodPost {
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		q := r.URL.Query()
		v := q.Get("payout_block_number")
		if v == "" {
			s.writeError(w, r, types.NewValidationError("payout_block_number is required"))
			return
		}
		if body.BlockNumber, err = strconv.ParseUint(v, 10, 64); err != nil {
			s.writeError(w, r, types.NewValidationError("invalid payout_block_number %q", v))
			return
		}
		body.IgnoredAssetAddresses = splitList(q.Get("ignored_asset_addresses"))
	}

	owner, _ := auth.SubjectFromContext(r.Context())
	snapshot, err := s.manager.Create(r.Context(), &types.CreateSnapshotRequest{
		Name:                   body.Name,
		ChainID:                chainId,
		AssetAddress:           chi.URLParam(r, "assetAddress"),
		BlockNumber:            body.BlockNumber,
		IgnoredHolderAddresses: body.IgnoredAssetAddresses,
	}, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.CreatePayoutTaskResponse{TaskID: snapshot.ID})
}

func (s *Server) handleGetPayoutTask(w http.ResponseWriter, r *http.Request) {
	chainId, err := chainIdParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payoutManager, err := addressQuery(r, "payoutManager", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.manager.GetPayoutTask(r.Context(), chainId, chi.URLParam(r, "taskId"), payoutManager)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleGetPayouts(w http.ResponseWriter, r *http.Request) {
	chainId, err := chainIdParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	addrs, err := contractAddresses(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter := &claims.AdminFilter{Owner: r.URL.Query().Get("owner")}
	for _, st := range splitList(r.URL.Query().Get("status")) {
		filter.Statuses = append(filter.Statuses, types.PayoutTaskStatus(strings.ToUpper(st)))
	}

	resp, err := s.claims.GetPayouts(r.Context(), chainId, addrs, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleClaimablePayouts lists the payouts of the authenticated wallet
func (s *Server) handleClaimablePayouts(w http.ResponseWriter, r *http.Request) {
	investor, err := s.investor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v := r.URL.Query().Get("chainId")
	chainId, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		s.writeError(w, r, types.NewValidationError("invalid chainId %q", v))
		return
	}
	addrs, err := contractAddresses(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.claims.GetPayoutsForInvestor(r.Context(), chainId, investor, addrs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) investor(r *http.Request) (common.Address, error) {
	if subject, ok := auth.SubjectFromContext(r.Context()); ok {
		return common.HexToAddress(subject), nil
	}
	if s.verifier != nil {
		return common.Address{}, types.NewUnauthorizedError("a bearer token is required")
	}
	addr, err := addressQuery(r, "investor", true)
	if err != nil {
		return common.Address{}, err
	}
	return *addr, nil
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	chainId, err := chainIdParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tree, err := s.claims.GetTree(r.Context(), chainId, chi.URLParam(r, "assetAddress"), chi.URLParam(r, "rootHash"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &merkleTreeResponse{MerkleTree: tree})
}

func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	chainId, err := chainIdParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.claims.GetPath(r.Context(), chainId,
		chi.URLParam(r, "assetAddress"),
		chi.URLParam(r, "rootHash"),
		chi.URLParam(r, "walletAddress"),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return types.NewValidationError("request body is required")
		}
		return types.NewValidationError("failed to parse request: %v", err)
	}
	return nil
}

func chainIdParam(r *http.Request) (uint64, error) {
	v := chi.URLParam(r, "chainId")
	chainId, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, types.NewValidationError("invalid chainId %q", v)
	}
	return chainId, nil
}

func addressQuery(r *http.Request, name string, required bool) (*common.Address, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		if required {
			return nil, types.NewValidationError("%s is required", name)
		}
		return nil, nil
	}
	if !common.IsHexAddress(v) {
		return nil, types.NewValidationError("invalid %s address %q", name, v)
	}
	addr := common.HexToAddress(v)
	return &addr, nil
}

// contractAddresses reads assetFactories, payoutService, payoutManager and the optional issuer
func contractAddresses(r *http.Request) (*claims.ContractAddresses, error) {
	factories, err := contractCaller.ParseAddresses(r.URL.Query().Get("assetFactories"))
	if err != nil {
		return nil, types.NewValidationError("assetFactories: %v", err)
	}
	payoutService, err := addressQuery(r, "payoutService", true)
	if err != nil {
		return nil, err
	}
	payoutManager, err := addressQuery(r, "payoutManager", true)
	if err != nil {
		return nil, err
	}
	issuer, err := addressQuery(r, "issuer", false)
	if err != nil {
		return nil, err
	}
	if issuer == nil && len(factories) == 0 {
		return nil, types.NewValidationError("assetFactories is required")
	}
	return &claims.ContractAddresses{
		AssetFactories: factories,
		PayoutService:  *payoutService,
		PayoutManager:  *payoutManager,
		Issuer:         issuer,
	}, nil
}

func splitList(v string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
