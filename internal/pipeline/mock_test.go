package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/enrich-cli/pkg/demographic"
	"github.com/sells-group/enrich-cli/pkg/dnc"
	"github.com/sells-group/enrich-cli/pkg/peoplesearch"
	"github.com/sells-group/enrich-cli/pkg/phoneintel"
)

type mockPeopleClient struct {
	mock.Mock
}

func (m *mockPeopleClient) Search(ctx context.Context, q peoplesearch.Query) (*peoplesearch.SearchResponse, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*peoplesearch.SearchResponse), args.Error(1)
}

type mockPhoneClient struct {
	mock.Mock
}

func (m *mockPhoneClient) Lookup(ctx context.Context, phone string) (*phoneintel.LookupResponse, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*phoneintel.LookupResponse), args.Error(1)
}

type mockDNCClient struct {
	mock.Mock
}

func (m *mockDNCClient) Check(ctx context.Context, token, phone string) (*dnc.CheckResponse, error) {
	args := m.Called(ctx, token, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dnc.CheckResponse), args.Error(1)
}

type mockDemographicClient struct {
	mock.Mock
}

func (m *mockDemographicClient) Lookup(ctx context.Context, q demographic.Query) (*demographic.LookupResponse, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*demographic.LookupResponse), args.Error(1)
}

// countingIssuer hands out sequenced tokens and counts exchanges.
type countingIssuer struct {
	calls atomic.Int64
}

func (f *countingIssuer) Exchange(ctx context.Context) (string, time.Duration, error) {
	return fmt.Sprintf("token-%d", f.calls.Add(1)), time.Hour, nil
}
