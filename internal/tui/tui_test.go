package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/aws-ratecode-checker/internal/lookup"
	"github.com/rshade/aws-ratecode-checker/internal/picker"
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/pricingtest"
)

// TestAppDrivesController walks a lookup through the picker callbacks
// without starting the terminal event loop.
func TestAppDrivesController(t *testing.T) {
	srv := pricingtest.NewServer(t)
	client, err := pricing.NewClient(zerolog.Nop(),
		pricing.WithBaseURL(srv.URL),
		pricing.WithRegionNames([]byte(pricingtest.RegionNamesJSON)))
	require.NoError(t, err)

	ctrl := lookup.New(client, zerolog.Nop())
	t.Cleanup(ctrl.Close)
	a := New(ctrl, zerolog.Nop())

	assert.True(t, a.services.Loading())
	assert.True(t, a.regions.Disabled())
	assert.False(t, a.focusable(a.regionField))

	ctrl.Start(context.Background())
	ctrl.Wait()
	a.refresh()
	require.False(t, a.services.Loading())

	a.pickService(picker.Option{Value: "AmazonEC2", Label: "Amazon EC2"})
	assert.Equal(t, "AmazonEC2", ctrl.Snapshot().Service)
	assert.Equal(t, "Amazon EC2", a.serviceField.GetText())
	ctrl.Wait()
	a.refresh()
	require.False(t, a.regions.Disabled())
	assert.True(t, a.focusable(a.regionField))
	assert.False(t, a.focusable(a.codeField))

	opt, ok := match(a.regions.Options(), "us-east-1")
	require.True(t, ok)
	a.pickRegion(opt)
	ctrl.Wait()
	a.refresh()
	assert.Equal(t, "us-east-1", ctrl.Snapshot().Region)
	assert.True(t, a.focusable(a.codeField))

	typed := strings.ToLower(pricingtest.OnDemandRateCode)
	a.codeField.SetText(typed)
	ctrl.SetInput(typed)
	a.refresh()
	assert.Equal(t, pricingtest.OnDemandRateCode, a.codeField.GetText(), "field shows the upper-cased code")

	_, err = ctrl.Confirm()
	require.NoError(t, err)
	a.refresh()
	assert.Contains(t, a.results.GetText(true), "description: per hour")
	assert.Contains(t, a.status.GetText(true), "resolved under OnDemand terms")
}

func TestPickUnknownServiceIsIgnored(t *testing.T) {
	srv := pricingtest.NewServer(t)
	client, err := pricing.NewClient(zerolog.Nop(), pricing.WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctrl := lookup.New(client, zerolog.Nop())
	t.Cleanup(ctrl.Close)
	a := New(ctrl, zerolog.Nop())
	ctrl.Start(context.Background())
	ctrl.Wait()
	a.refresh()

	a.pickService(picker.Option{Value: "AmazonRDS", Label: "Amazon RDS"})
	assert.Empty(t, ctrl.Snapshot().Service)
	assert.True(t, a.regions.Disabled())
}
