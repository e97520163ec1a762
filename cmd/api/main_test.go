package main

import (
	"bufio"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giggen/pkg/config"
)

func listeningAddr(hook *test.Hook) string {
	for _, e := range hook.AllEntries() {
		if e.Message == "http listening" {
			addr, _ := e.Data["addr"].(string)
			return addr
		}
	}
	return ""
}

func TestRun_ShutsDownWithOpenStream(t *testing.T) {
	log, hook := test.NewNullLogger()
	cfg := config.Config{
		AppEnv:        "dev",
		Storage:       "memory",
		HTTPAddr:      "127.0.0.1:0",
		RealtimeTopic: "bookings.changes",
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, log) }()

	require.Eventually(t, func() bool { return listeningAddr(hook) != "" }, 2*time.Second, 10*time.Millisecond)
	addr := listeningAddr(hook)

	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/v1/bookings/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-Id", "dev-sender")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return while a stream was open")
	}
}
