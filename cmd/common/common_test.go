package common

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateSigningKey(t *testing.T) {
	generated, err := LoadOrGenerateSigningKey("")
	require.NoError(t, err)

	loaded, err := LoadOrGenerateSigningKey(hex.EncodeToString(generated))
	require.NoError(t, err)
	require.Equal(t, generated, loaded)

	_, err = LoadOrGenerateSigningKey("zz")
	require.Error(t, err)

	_, err = LoadOrGenerateSigningKey("0102")
	require.ErrorIs(t, err, crypto.ErrInvalidPrivateKey)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug")
	require.NoError(t, err)
	require.True(t, log.IsLevelEnabled(logrus.DebugLevel))

	_, err = NewLogger("chatty")
	require.Error(t, err)
}

func TestStatusRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RunStarted()

	srv := httptest.NewServer(NewStatusRouter(reg, func() any {
		return map[string]string{"state": "SUCCESS"}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "dicemix_runs_total 1")

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.JSONEq(t, `{"state":"SUCCESS"}`, string(body))
}
