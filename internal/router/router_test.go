package router_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/registry"
	"github.com/kari-ai/core/internal/router"
)

type fakeProvider struct {
	name    string
	fail    bool
	failMsg string
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	f.calls++
	if f.fail {
		msg := f.failMsg
		if msg == "" {
			msg = "boom"
		}
		return "", errors.New(msg)
	}
	return "reply from " + f.name, nil
}

func (f *fakeProvider) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
	out := make(chan domain.StreamChunk, 1)
	out <- domain.StreamChunk{Text: "reply from " + f.name, Done: true}
	close(out)
	return out, nil
}

func (f *fakeProvider) CheckHealth(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{OK: !f.fail}
}

func newReg(providers ...*fakeProvider) *registry.Registry {
	reg := registry.New()
	for i, p := range providers {
		reg.RegisterProvider(domain.ProviderSpec{
			Name:     p.name,
			Category: domain.CategoryLLM,
			Bucket:   domain.PriorityBucket(i),
			Provider: p,
		})
	}
	return reg
}

func TestDispatch_SucceedsOnFirstHealthyProvider(t *testing.T) {
	primary := &fakeProvider{name: "local"}
	reg := newReg(primary)
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)

	result := r.Dispatch(context.Background(), domain.RoutingRequest{Message: "hi"})
	require.Nil(t, result.Degraded)
	assert.Equal(t, "local", result.Provider)
	assert.Contains(t, result.Text, "local")
}

func TestDispatch_FallsBackToSecondProviderOnFailure(t *testing.T) {
	failing := &fakeProvider{name: "local", fail: true}
	backup := &fakeProvider{name: "remote"}
	reg := newReg(failing, backup)
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)

	result := r.Dispatch(context.Background(), domain.RoutingRequest{Message: "hi"})
	require.Nil(t, result.Degraded)
	assert.Equal(t, "remote", result.Provider)
	assert.Equal(t, 3, failing.calls, "retries 3 times before falling back")
}

func TestDispatch_DegradesWhenEveryProviderFails(t *testing.T) {
	a := &fakeProvider{name: "a", fail: true, failMsg: "connection timeout"}
	b := &fakeProvider{name: "b", fail: true, failMsg: "connection timeout"}
	reg := newReg(a, b)
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)

	result := r.Dispatch(context.Background(), domain.RoutingRequest{Message: "hi"})
	require.NotNil(t, result.Degraded)
	assert.Equal(t, domain.ReasonNetworkIssues, result.Degraded.Reason)
}

func TestDispatch_DegradesWhenNoProviderRegistered(t *testing.T) {
	reg := registry.New()
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)

	result := r.Dispatch(context.Background(), domain.RoutingRequest{Message: "hi"})
	require.NotNil(t, result.Degraded)
	assert.Equal(t, domain.ReasonAllProvidersFailed, result.Degraded.Reason)
}

func TestDispatch_RateLimitedReasonInferred(t *testing.T) {
	a := &fakeProvider{name: "a", fail: true, failMsg: "429 rate limit exceeded"}
	reg := newReg(a)
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)

	result := r.Dispatch(context.Background(), domain.RoutingRequest{Message: "hi"})
	require.NotNil(t, result.Degraded)
	assert.Equal(t, domain.ReasonAPIRateLimits, result.Degraded.Reason)
}

func TestSelectProvider_PriorityLadderPrefersLocalBucket(t *testing.T) {
	local := &fakeProvider{name: "local"}
	remote := &fakeProvider{name: "remote"}
	reg := registry.New()
	reg.RegisterProvider(domain.ProviderSpec{Name: "remote", Category: domain.CategoryLLM, Bucket: domain.BucketRemote, Provider: remote})
	reg.RegisterProvider(domain.ProviderSpec{Name: "local", Category: domain.CategoryLLM, Bucket: domain.BucketLocal, Provider: local})

	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)
	spec, ok := r.SelectProvider(domain.RoutingRequest{Message: "hi"})
	require.True(t, ok)
	assert.Equal(t, "local", spec.Name)
}

func TestSelectProvider_RoundRobinRotates(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	reg := newReg(a, b)
	r := router.New(reg, router.PolicyRoundRobin, zap.NewNop(), time.Second)

	first, _ := r.SelectProvider(domain.RoutingRequest{Message: "hi"})
	second, _ := r.SelectProvider(domain.RoutingRequest{Message: "hi"})
	assert.NotEqual(t, first.Name, second.Name)
}

func TestHealthMonitor_StartsLazilyAndStopsCleanly(t *testing.T) {
	a := &fakeProvider{name: "a"}
	reg := newReg(a)
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)

	// SelectProvider triggers ensureHealthMonitor internally; calling it
	// twice must not start a second monitor goroutine.
	r.SelectProvider(domain.RoutingRequest{Message: "hi"})
	r.SelectProvider(domain.RoutingRequest{Message: "hi"})

	assert.NotPanics(t, func() { r.StopHealthMonitor() }, "stops the monitor started by SelectProvider")
	assert.NotPanics(t, func() { r.StopHealthMonitor() }, "stopping twice is a no-op")
}

func TestHealthMonitor_StopWithoutStartIsNoOp(t *testing.T) {
	reg := registry.New()
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)
	assert.NotPanics(t, func() { r.StopHealthMonitor() })
}

func TestStream_SingleChunkWhenNotStreamingCapable(t *testing.T) {
	p := &fakeProvider{name: "a"}
	reg := newReg(p)
	r := router.New(reg, router.PolicyPriority, zap.NewNop(), time.Second)

	ch, provider, err := r.Stream(context.Background(), domain.RoutingRequest{Message: "hi", Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "a", provider)
	chunk := <-ch
	assert.True(t, chunk.Done)
	assert.Contains(t, chunk.Text, "a")
}
