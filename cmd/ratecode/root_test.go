package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/aws-ratecode-checker/internal/catalog"
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/pricingtest"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
	"github.com/rshade/aws-ratecode-checker/internal/render"
	"github.com/rshade/aws-ratecode-checker/internal/rpc"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RATECODE_CONFIG", "")
	var out, errOut bytes.Buffer
	cmd := newRootCmd(fs, &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func withUpstream(t *testing.T) (afero.Fs, []string) {
	t.Helper()
	srv := pricingtest.NewServer(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/names.json", []byte(pricingtest.RegionNamesJSON), 0o644))
	return fs, []string{"--base-url", srv.URL, "--region-names-file", "/names.json", "--log-level", "error"}
}

func TestServicesCmd(t *testing.T) {
	fs, base := withUpstream(t)

	out, err := run(t, fs, append(base, "services")...)
	require.NoError(t, err)
	assert.Equal(t, "AmazonEC2\tAmazon EC2\nAmazonS3\tAmazon S3\nawskms\taws kms\n", out)

	out, err = run(t, fs, append(base, "services", "-q", "s3", "-o", "json")...)
	require.NoError(t, err)
	var body map[string][]map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body["services"], 1)
	assert.Equal(t, "AmazonS3", body["services"][0]["value"])
}

func TestRegionsCmd(t *testing.T) {
	fs, base := withUpstream(t)

	out, err := run(t, fs, append(base, "regions", "AmazonEC2")...)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1\tus-east-1 - US East (N. Virginia)\n"+
		"us-west-2\tus-west-2 - US West (Oregon)\n"+
		"xx-test-9\txx-test-9 - xx-test-9\n", out)

	out, err = run(t, fs, append(base, "regions", "AmazonEC2", "-q", "oregon", "-o", "yaml")...)
	require.NoError(t, err)
	assert.Contains(t, out, "regions:\n  - value: us-west-2\n")

	_, err = run(t, fs, append(base, "regions", "AmazonRDS")...)
	assert.ErrorIs(t, err, catalog.ErrUnknownService)

	_, err = run(t, fs, append(base, "regions")...)
	assert.Error(t, err, "service argument is required")
}

func TestLookupCmd(t *testing.T) {
	fs, base := withUpstream(t)

	out, err := run(t, fs, append(base, "lookup", "-s", "AmazonEC2", "-r", "us-east-1", pricingtest.OnDemandRateCode)...)
	require.NoError(t, err)
	assert.Equal(t, "Product Details\n"+
		"  instanceType: m5.large\n"+
		"Offer Terms (OnDemand)\n"+
		"  description: per hour\n"+
		"  Tier: 0 - Inf\n"+
		"  unit: Hrs\n"+
		"  pricePerUnit: 0.1 USD\n", out)

	out, err = run(t, fs, append(base, "lookup", "-s", "AmazonEC2", "-r", "us-east-1", "--quantity", "10", "-o", "json", pricingtest.OnDemandRateCode)...)
	require.NoError(t, err)
	var view render.View
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "1", view.Dimension.Prices[0].Total)
}

func TestLookupCmd_Errors(t *testing.T) {
	fs, base := withUpstream(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "unknown sku", args: []string{"-s", "AmazonEC2", "-r", "us-east-1", pricingtest.UnknownSKURateCode}, wantErr: ratecode.ErrSKUNotFound},
		{name: "unknown dimension", args: []string{"-s", "AmazonEC2", "-r", "us-east-1", pricingtest.MissingDimensionRateCode}, wantErr: ratecode.ErrNotFound},
		{name: "invalid code", args: []string{"-s", "AmazonEC2", "-r", "us-east-1", "abc"}, wantErr: ratecode.ErrInvalid},
		{name: "bad quantity", args: []string{"-s", "AmazonEC2", "-r", "us-east-1", "--quantity", "many", pricingtest.OnDemandRateCode}, wantMsg: "invalid quantity"},
		{name: "missing region flag", args: []string{"-s", "AmazonEC2", pricingtest.OnDemandRateCode}, wantMsg: "required flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, fs, append(append(base, "lookup"), tt.args...)...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLookupCmd_Remote(t *testing.T) {
	srv := pricingtest.NewServer(t)
	client, err := pricing.NewClient(zerolog.Nop(),
		pricing.WithBaseURL(srv.URL),
		pricing.WithRegionNames([]byte(pricingtest.RegionNamesJSON)))
	require.NoError(t, err)
	cat := catalog.New(pricing.NewCachedFetcher(client, time.Hour, 1, zerolog.Nop()), zerolog.Nop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s, _ := rpc.NewGRPCServer(cat, zerolog.Nop())
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	out, err := run(t, afero.NewMemMapFs(), "--log-level", "error", "lookup",
		"--remote", lis.Addr().String(), "-s", "AmazonEC2", "-r", "us-east-1", "-o", "yaml",
		pricingtest.ReservedRateCode)
	require.NoError(t, err)
	assert.Contains(t, out, "termType: Reserved\n")
	assert.Contains(t, out, "description: Upfront Fee\n")

	_, err = run(t, afero.NewMemMapFs(), "--log-level", "error", "lookup",
		"--remote", lis.Addr().String(), "-s", "AmazonEC2", "-r", "us-east-1",
		pricingtest.UnknownSKURateCode)
	assert.ErrorIs(t, err, ratecode.ErrSKUNotFound)
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	srv := pricingtest.NewServer(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/ratecode.yaml", []byte(
		"base_url: "+srv.URL+"\noutput: json\nlog:\n  level: error\n"), 0o644))

	out, err := run(t, fs, "--config", "/etc/ratecode.yaml", "services", "-q", "kms")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{"), "output comes from the config file")

	out, err = run(t, fs, "--config", "/etc/ratecode.yaml", "-o", "text", "services", "-q", "kms")
	require.NoError(t, err)
	assert.Equal(t, "awskms\taws kms\n", out, "flags override the config file")
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "missing config file", args: []string{"--config", "/nope.yaml", "version"}, wantMsg: "failed to read config file"},
		{name: "bad output", args: []string{"-o", "xml", "version"}, wantMsg: "unknown output format"},
		{name: "bad source", args: []string{"--source", "s3", "version"}, wantMsg: "invalid source"},
		{name: "bad base url", args: []string{"--base-url", "ftp://x", "version"}, wantMsg: "scheme must be"},
		{name: "bad log level", args: []string{"--log-level", "loud", "version"}, wantMsg: "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, afero.NewMemMapFs(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestMirrorCmd(t *testing.T) {
	fs, base := withUpstream(t)

	out, err := run(t, fs, append(base, "mirror", "--dir", "/mirror", "--service", "AmazonEC2", "--region", "us-east-1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "mirrored 1 documents")
	assert.Contains(t, out, "use --base-url file:///mirror")

	exists, err := afero.Exists(fs, "/mirror"+pricingtest.EC2USEast1Path)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = run(t, fs, append(base, "mirror", "--dir", "/mirror")...)
	assert.ErrorContains(t, err, "required flag")
}

func TestServeCmd_StopsOnCancel(t *testing.T) {
	fs, base := withUpstream(t)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(fs, &out, &errOut)
	cmd.SetArgs(append(base, "serve", "--http-addr", "127.0.0.1:0", "--grpc-addr", "127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeCmd_GRPCAddrInUse(t *testing.T) {
	fs, base := withUpstream(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpAddr := free.Addr().String()
	require.NoError(t, free.Close())

	done := make(chan error, 1)
	go func() {
		_, err := run(t, fs, append(base, "serve", "--http-addr", httpAddr, "--grpc-addr", busy.Addr().String())...)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorContains(t, err, "grpc listen")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not fail")
	}

	// HTTP never started, so its address is still free.
	lis, err := net.Listen("tcp", httpAddr)
	require.NoError(t, err)
	require.NoError(t, lis.Close())
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ratecode dev ("), out)
}
