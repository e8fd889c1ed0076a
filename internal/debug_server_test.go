package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type staticOnline []string

func (s staticOnline) Online() []string { return s }

func TestDebugServer_Online_And_Metrics(t *testing.T) {
	req := require.New(t)
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "relay_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()
	server := NewDebugServer(":0", registry, staticOnline{"alice", "bob"}, nil)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/online", nil))
	req.Equal(http.StatusOK, rec.Code)
	var body map[string][]string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.Equal([]string{"alice", "bob"}, body["identityIds"])

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "relay_test_total 1")

	// Without a badger store there is no inspect page
	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/inspect", nil))
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestDebugServer_Inspect(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	req.NoError(db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("msg:YWxpY2U:Ym9i:0000000000000000001:0b6a3c3e-7c4f-4e0e-9d0a-6f2f1c3b2a10"), []byte("x"))
	}))
	server := NewDebugServer(":0", prometheus.NewRegistry(), staticOnline{}, db)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/inspect?prefix=msg:", nil))

	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "MESSAGE")
	req.Contains(rec.Body.String(), "0b6a3c3e")
}

func TestMapRow(t *testing.T) {
	req := require.New(t)

	message := MapRow("msg:YWxpY2U:Ym9i:1700000000000000000:0b6a3c3e-7c4f-4e0e-9d0a-6f2f1c3b2a10", 42)
	req.Equal("MESSAGE", message.Type)
	req.Equal("0b6a3c3e", message.EntityID)
	req.Equal("2023-11-14 22:13:20", message.Timestamp)
	req.True(strings.HasPrefix(message.Detail, "alice → bob"))

	req.Equal("USER", MapRow("user:alice@example.com", 10).Type)
	req.Equal("USER_INDEX", MapRow("userid:1234", 10).Type)
	req.Equal("RAW", MapRow("something", 10).Type)
}
