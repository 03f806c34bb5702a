package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

func TestSeed_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	log := logger.Discard()
	orgs := services.NewOrganizationService(st, st, log)

	created, updated, err := seed(ctx, orgs, st, log)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Zero(t, updated)

	created, updated, err = seed(ctx, orgs, st, log)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, 3, updated)

	list, count, err := orgs.ListOrganizations(ctx, store.OrganizationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	byName := map[string]int{}
	for _, org := range list {
		byName[org.Name] = len(org.Updates)
		assert.Len(t, org.Impact, 4)
	}
	assert.Equal(t, 2, byName["Global Water Initiative"])
	assert.Equal(t, 1, byName["Education for All"])
	assert.Equal(t, 0, byName["Healthcare Without Borders"])
}
