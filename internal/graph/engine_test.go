package graph

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func edge(src, dst string) schema.WalletEdge {
	return schema.WalletEdge{SrcCredential: src, DstCredential: dst, Relation: domain.RelationSameStake}
}

func memberSets(clusters []store.ClusterWithMembers) [][]string {
	sets := make([][]string, len(clusters))
	for i, c := range clusters {
		sets[i] = c.Members
	}
	return sets
}

func TestComponents_ChainAndIsolated(t *testing.T) {
	// A-B and B-C connect into one component; D stays out entirely.
	clusters := Components(
		[]string{"a", "b", "c", "d"},
		[]schema.WalletEdge{edge("a", "b"), edge("b", "c")},
	)

	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"a", "b", "c"}, clusters[0].Members)
}

func TestComponents_NoSingletonClusters(t *testing.T) {
	clusters := Components([]string{"a", "b", "c"}, nil)
	assert.Empty(t, clusters)
}

func TestComponents_MultipleComponents(t *testing.T) {
	clusters := Components(
		[]string{"a", "b", "c", "d", "e"},
		[]schema.WalletEdge{edge("a", "b"), edge("d", "e")},
	)

	require.Len(t, clusters, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"d", "e"}}, memberSets(clusters))
	for _, c := range clusters {
		assert.GreaterOrEqual(t, len(c.Members), 2)
	}
}

func TestComponents_EdgeEndpointsOutsideWalletList(t *testing.T) {
	// Endpoints unknown to the wallet table are still clustered.
	clusters := Components(
		[]string{"a"},
		[]schema.WalletEdge{edge("a", "ghost")},
	)

	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"a", "ghost"}, clusters[0].Members)
}

func TestComponents_OrderInvariant(t *testing.T) {
	credentials := []string{"a", "b", "c", "d", "e", "f", "g"}
	edges := []schema.WalletEdge{
		edge("a", "b"),
		edge("b", "c"),
		edge("e", "d"),
		edge("f", "e"),
	}

	reference := memberSets(Components(credentials, edges))

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		shuffledCreds := append([]string(nil), credentials...)
		rng.Shuffle(len(shuffledCreds), func(i, j int) {
			shuffledCreds[i], shuffledCreds[j] = shuffledCreds[j], shuffledCreds[i]
		})

		shuffledEdges := append([]schema.WalletEdge(nil), edges...)
		rng.Shuffle(len(shuffledEdges), func(i, j int) {
			shuffledEdges[i], shuffledEdges[j] = shuffledEdges[j], shuffledEdges[i]
		})

		// Occasionally flip edge direction; the relation is symmetric.
		for i := range shuffledEdges {
			if rng.Intn(2) == 0 {
				shuffledEdges[i].SrcCredential, shuffledEdges[i].DstCredential =
					shuffledEdges[i].DstCredential, shuffledEdges[i].SrcCredential
			}
		}

		got := memberSets(Components(shuffledCreds, shuffledEdges))
		assert.Equal(t, reference, got, "trial %d", trial)
	}
}

func TestComponents_FreshIDsPerRun(t *testing.T) {
	credentials := []string{"a", "b"}
	edges := []schema.WalletEdge{edge("a", "b")}

	first := Components(credentials, edges)
	second := Components(credentials, edges)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}
