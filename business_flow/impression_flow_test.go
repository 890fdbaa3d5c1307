package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/hopgate/app/services"
	testingutil "github.com/amirphl/hopgate/testing"
	"github.com/amirphl/hopgate/utils"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImpressionFixture(t *testing.T) (ImpressionFlow, *testingutil.MemoryImpressionStore) {
	t.Helper()
	log, _ := test.NewNullLogger()
	index := NewRuleIndex(testingutil.NewMemoryRoutingSource(testingutil.ExampleRoutingTables()), log)
	require.NoError(t, index.Refresh(context.Background()))

	hasher, err := services.NewFingerprintService("")
	require.NoError(t, err)
	store := testingutil.NewMemoryImpressionStore()
	rec := NewAttributionRecorder(testingutil.NewMemoryClickLogStore(), store, hasher, nil, time.Second, log)
	return NewImpressionFlow(index, rec), store
}

func TestImpressionFlow_PendingPartner(t *testing.T) {
	flow, store := newImpressionFixture(t)

	err := flow.Record(context.Background(), ImpressionRequest{PartnerCode: "ABC123"})
	assert.True(t, IsPartnerNotEligible(err))
	assert.True(t, IsNotFoundError(err))
	assert.Zero(t, store.Attempts())
}

func TestImpressionFlow_ApprovedPartnerWithoutIP(t *testing.T) {
	flow, store := newImpressionFixture(t)

	err := flow.Record(context.Background(), ImpressionRequest{
		PartnerCode: "XYZ",
		IP:          nil,
		UserAgent:   utils.ToPtr("Mozilla/5.0"),
	})
	require.NoError(t, err)

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, uint(10), rows[0].PartnerID)
	assert.Nil(t, rows[0].IPHash)
	assert.NotNil(t, rows[0].UserAgentHash)
}

func TestImpressionFlow_Validation(t *testing.T) {
	flow, store := newImpressionFixture(t)

	tests := []struct {
		name  string
		req   ImpressionRequest
		check func(error) bool
	}{
		{"missing partner", ImpressionRequest{}, IsPartnerCodeRequired},
		{"blank partner", ImpressionRequest{PartnerCode: "   "}, IsPartnerCodeRequired},
		{"malformed partner", ImpressionRequest{PartnerCode: "<script>"}, IsInvalidPartnerCode},
		{"non-numeric creative", ImpressionRequest{PartnerCode: "XYZ", CreativeID: "banner"}, IsInvalidCreativeID},
		{"unknown partner", ImpressionRequest{PartnerCode: "NOPE"}, IsPartnerNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := flow.Record(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
	assert.Zero(t, store.Attempts())
}

func TestImpressionFlow_CreativeID(t *testing.T) {
	flow, store := newImpressionFixture(t)

	require.NoError(t, flow.Record(context.Background(), ImpressionRequest{PartnerCode: "XYZ", CreativeID: "42"}))
	rows := store.Rows()
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].CreativeID)
	assert.Equal(t, uint(42), *rows[0].CreativeID)
}

func TestImpressionFlow_StoreFailure(t *testing.T) {
	flow, store := newImpressionFixture(t)
	store.SetFaults(testingutil.StoreFaults{Err: errors.New("store unavailable")})

	err := flow.Record(context.Background(), ImpressionRequest{PartnerCode: "XYZ"})
	require.Error(t, err)
	assert.False(t, IsClientInputError(err))
	assert.False(t, IsNotFoundError(err))
}
