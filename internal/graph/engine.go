// Package graph implements the clustering job that groups wallets believed
// to share control into connected components.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store/schema"
)

// Engine recomputes connected components over shared-control wallet edges
// and rebuilds the cluster tables. Each run is a full recompute, which makes
// the resulting partition a pure function of the current edge set,
// independent of edge processing order.
type Engine struct {
	store store.Store
}

// NewEngine creates a new cluster engine
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// RunOnce performs one clustering pass: union-find over all wallets along
// same-control edges, then a full rebuild of the cluster and cluster_member
// tables with every component of size two or more.
func (e *Engine) RunOnce(ctx context.Context) error {
	credentials, err := e.store.ListWalletCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to list wallets: %w", err)
	}

	edges, err := e.store.ListEdgesByRelation(ctx, domain.RelationSameStake)
	if err != nil {
		return fmt.Errorf("failed to list edges: %w", err)
	}

	clusters := Components(credentials, edges)

	if err := e.store.ReplaceClusters(ctx, clusters); err != nil {
		return fmt.Errorf("failed to replace clusters: %w", err)
	}

	logger.InfoCtx(ctx, "Rebuilt wallet clusters",
		zap.Int("wallets", len(credentials)),
		zap.Int("edges", len(edges)),
		zap.Int("clusters", len(clusters)))

	return nil
}

// Components groups wallets into connected components along the given edges
// and returns every component with at least two members as a cluster.
// Singletons carry no clustering signal and are dropped. Edge endpoints not
// present in the wallet list are added to the vertex set, so a stale edge can
// never be silently ignored.
func Components(credentials []string, edges []schema.WalletEdge) []store.ClusterWithMembers {
	index := make(map[string]int, len(credentials))
	vertices := make([]string, 0, len(credentials))

	add := func(credential string) int {
		if idx, ok := index[credential]; ok {
			return idx
		}
		idx := len(vertices)
		index[credential] = idx
		vertices = append(vertices, credential)
		return idx
	}

	for _, c := range credentials {
		add(c)
	}
	for _, e := range edges {
		add(e.SrcCredential)
		add(e.DstCredential)
	}

	uf := NewUnionFind(len(vertices))
	for _, e := range edges {
		uf.Union(index[e.SrcCredential], index[e.DstCredential])
	}

	byRoot := make(map[int][]string)
	for i, credential := range vertices {
		root := uf.Find(i)
		byRoot[root] = append(byRoot[root], credential)
	}

	var clusters []store.ClusterWithMembers
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		clusters = append(clusters, store.ClusterWithMembers{
			ID:      uuid.NewString(),
			Members: members,
		})
	}

	// Deterministic persist order regardless of map iteration.
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Members[0] < clusters[j].Members[0]
	})

	return clusters
}
