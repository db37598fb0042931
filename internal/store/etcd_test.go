package store

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
	"go.uber.org/zap"
)

func freeURL(t *testing.T) url.URL {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	u, err := url.Parse(fmt.Sprintf("http://%s", addr))
	require.NoError(t, err)
	return *u
}

// startTestEtcd runs a single-member etcd server in-process and returns
// its client endpoint
func startTestEtcd(t *testing.T) string {
	t.Helper()

	cfg := embed.NewConfig()
	cfg.Name = "hostcheck-test"
	cfg.Dir = t.TempDir()
	cfg.LogLevel = "error"

	clientURL := freeURL(t)
	peerURL := freeURL(t)
	cfg.ListenClientUrls = []url.URL{clientURL}
	cfg.AdvertiseClientUrls = []url.URL{clientURL}
	cfg.ListenPeerUrls = []url.URL{peerURL}
	cfg.AdvertisePeerUrls = []url.URL{peerURL}
	cfg.InitialCluster = cfg.InitialClusterFromName(cfg.Name)

	e, err := embed.StartEtcd(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(30 * time.Second):
		e.Server.Stop()
		t.Fatal("etcd server did not become ready")
	}
	return clientURL.String()
}

func TestEtcdWriter_CreateIfAbsent(t *testing.T) {
	endpoint := startTestEtcd(t)

	w, err := NewEtcdWriter(EtcdConfig{
		Endpoints:   []string{endpoint},
		Prefix:      "/hc-test/",
		DialTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job := Record{JobID: "j1", Kind: KindJob, Payload: []byte(`{"status":"QUEUED"}`)}
	require.NoError(t, w.Write(ctx, job))

	err = w.Write(ctx, Record{JobID: "j1", Kind: KindJob, Payload: []byte(`{"status":"DONE"}`)})
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, w.Write(ctx, Record{JobID: "j1", Kind: KindEvent, Seq: 2, Payload: []byte(`{"t":"verdict"}`)}))

	resp, err := w.client.Get(ctx, "/hc-test/jobs/j1/", clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 2)
	assert.Equal(t, "/hc-test/jobs/j1/event/0000000002", string(resp.Kvs[0].Key))
	assert.Equal(t, `{"t":"verdict"}`, string(resp.Kvs[0].Value))
	assert.Equal(t, "/hc-test/jobs/j1/job/0000000000", string(resp.Kvs[1].Key))
	assert.Equal(t, `{"status":"QUEUED"}`, string(resp.Kvs[1].Value), "a refused write leaves the first value")
}

func TestEtcdWriter_DefaultPrefix(t *testing.T) {
	endpoint := startTestEtcd(t)

	cli, err := clientv3.New(clientv3.Config{Endpoints: []string{endpoint}, DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	w := NewEtcdWriterFromClient(cli, "")
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec := Record{JobID: "j9", Kind: KindResult, Payload: []byte(`{}`)}
	require.NoError(t, w.Write(ctx, rec))

	resp, err := cli.Get(ctx, Key(DefaultEtcdPrefix, rec))
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.Equal(t, "/hostcheck/jobs/j9/result/0000000000", string(resp.Kvs[0].Key))
}
