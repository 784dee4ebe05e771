package rest

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/analysis"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store/schema"
)

const (
	policyIDHexLength   = 56
	credentialHexLength = 56
	defaultHolderLimit  = 100
	historyLimit        = 20
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetTokenRisk runs the online holder analyzer for a token
	// GET /api/v1/tokens/:policy/risk?asset=<hex>
	GetTokenRisk(c *gin.Context)

	// GetTokenHolders retrieves current holdings for a token from the graph store
	// GET /api/v1/tokens/:policy/holders
	GetTokenHolders(c *gin.Context)

	// GetWalletCluster retrieves the cluster containing a stake credential
	// GET /api/v1/wallets/:credential/cluster
	GetWalletCluster(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store    store.Store
	analyzer *analysis.Analyzer
}

// NewHandler creates a new REST API handler
func NewHandler(dataStore store.Store, analyzer *analysis.Analyzer) Handler {
	return &handler{
		store:    dataStore,
		analyzer: analyzer,
	}
}

// GetTokenRisk runs the online holder analyzer for a token
func (h *handler) GetTokenRisk(c *gin.Context) {
	policyID := c.Param("policy")
	if !validHex(policyID, policyIDHexLength) {
		respondBadRequest(c, "Invalid policy ID")
		return
	}

	assetName := c.Query("asset")
	if assetName != "" && !validHex(assetName, 0) {
		respondBadRequest(c, "Invalid asset name")
		return
	}

	report, err := h.analyzer.AnalyzeToken(c.Request.Context(), policyID, assetName)
	if err != nil {
		respondInternalError(c, err, "Failed to analyze token", zap.String("policy_id", policyID))
		return
	}

	c.JSON(http.StatusOK, report)
}

// holderResponse is one graph-store holding row
type holderResponse struct {
	StakeCredential string `json:"stakeCredential"`
	Balance         int64  `json:"balance"`
	LastSeen        string `json:"lastSeen"`
}

// GetTokenHolders retrieves current holdings for a token from the graph store
func (h *handler) GetTokenHolders(c *gin.Context) {
	policyID := c.Param("policy")
	if !validHex(policyID, policyIDHexLength) {
		respondBadRequest(c, "Invalid policy ID")
		return
	}

	holdings, err := h.store.GetTokenHolders(c.Request.Context(), policyID, defaultHolderLimit)
	if err != nil {
		respondInternalError(c, err, "Failed to get token holders", zap.String("policy_id", policyID))
		return
	}
	if len(holdings) == 0 {
		respondNotFound(c, "No holders found for this policy")
		return
	}

	holders := make([]holderResponse, len(holdings))
	for i, holding := range holdings {
		holders[i] = holderResponse{
			StakeCredential: holding.StakeCredential,
			Balance:         holding.Balance,
			LastSeen:        holding.LastSeen.UTC().Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"policyId": policyID,
		"holders":  holders,
	})
}

// clusterResponse is the wallet-cluster lookup payload
type clusterResponse struct {
	ClusterID string         `json:"clusterId"`
	RiskScore float64        `json:"riskScore"`
	Tags      []string       `json:"tags"`
	Members   []string       `json:"members"`
	History   []historyEntry `json:"history"`
}

type historyEntry struct {
	Score     float64 `json:"score"`
	CreatedAt string  `json:"createdAt"`
}

// GetWalletCluster retrieves the cluster containing a stake credential
func (h *handler) GetWalletCluster(c *gin.Context) {
	credential := c.Param("credential")
	if !validHex(credential, credentialHexLength) {
		respondBadRequest(c, "Invalid stake credential")
		return
	}

	cluster, members, err := h.store.GetClusterForCredential(c.Request.Context(), credential)
	if err != nil {
		respondInternalError(c, err, "Failed to get wallet cluster", zap.String("credential", credential))
		return
	}
	if cluster == nil {
		respondNotFound(c, "Wallet is not part of any cluster")
		return
	}

	history, err := h.store.GetClusterScoreHistory(c.Request.Context(), cluster.ID, historyLimit)
	if err != nil {
		respondInternalError(c, err, "Failed to get cluster history", zap.String("cluster_id", cluster.ID))
		return
	}

	c.JSON(http.StatusOK, buildClusterResponse(cluster, members, history))
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func buildClusterResponse(cluster *schema.Cluster, members []string, history []schema.ClusterScoreHistory) clusterResponse {
	response := clusterResponse{
		ClusterID: cluster.ID,
		RiskScore: cluster.RiskScore,
		Tags:      []string{},
		Members:   members,
		History:   []historyEntry{},
	}
	if len(cluster.Tags) > 0 {
		var tags []string
		if err := json.Unmarshal(cluster.Tags, &tags); err == nil {
			response.Tags = tags
		}
	}
	for _, row := range history {
		response.History = append(response.History, historyEntry{
			Score:     row.Score,
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return response
}

// validHex reports whether s is valid lowercase-insensitive hex of the given
// byte-doubled length; length 0 skips the length check.
func validHex(s string, length int) bool {
	if s == "" {
		return false
	}
	if length > 0 && len(s) != length {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
