package internal

import (
	"chat-relay/infrastructure/storage"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type PageData struct {
	Prefix string
	Items  []InspectRow
}

var inspectTemplate = template.Must(template.New("inspect").Parse(`<!doctype html>
<html><head><title>relay store</title></head><body>
<form><input name="prefix" value="{{.Prefix}}"><button>scan</button></form>
<table border="1" cellpadding="4">
<tr><th>Type</th><th>Time</th><th>Entity</th><th>Key</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Type}}</td><td>{{.Timestamp}}</td><td>{{.EntityID}}</td><td>{{.Key}}</td><td>{{.Detail}}</td></tr>
{{end}}</table></body></html>`))

// OnlineLister exposes the live registry snapshot.
type OnlineLister interface {
	Online() []string
}

// NewDebugServer serves /metrics, /debug/online and, when db is not nil, /debug/inspect.
// It must never be exposed publicly.
func NewDebugServer(addr string, gatherer prometheus.Gatherer, online OnlineLister, db *badger.DB) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/online", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"identityIds": online.Online()})
	})
	if db != nil {
		mux.HandleFunc("/debug/inspect", inspectHandler(db))
	}
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func inspectHandler(db *badger.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}
		data := PageData{Prefix: prefix, Items: ScanRows(db, prefix, 500)}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, data)
	}
}

// ScanRows lists at most limit keys under prefix.
func ScanRows(db *badger.DB, prefix string, limit int) []InspectRow {
	var rows []InspectRow
	_ = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		defer it.Close()
		for it.Rewind(); it.Valid() && len(rows) < limit; it.Next() {
			item := it.Item()
			rows = append(rows, MapRow(string(item.Key()), item.ValueSize()))
		}
		return nil
	})
	return rows
}

// MapRow explains a store key:
// msg:{sender}:{receiver}:{ts}:{id}, msgid:{id}, user:{email} and userid:{id}.
func MapRow(key string, size int64) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.FormatInt(size, 10) + " bytes",
	}

	switch {
	case parts[0] == "msg" && len(parts) == 5:
		row.Type = "MESSAGE"
		if tsNano, err := strconv.ParseInt(parts[3], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("2006-01-02 15:04:05")
		}
		row.EntityID = short(parts[4])
		row.Detail = keyPart(parts[1]) + " → " + keyPart(parts[2]) + ", " + row.Detail
	case parts[0] == "msgid" && len(parts) == 2:
		row.Type = "MESSAGE_INDEX"
		row.EntityID = short(parts[1])
	case parts[0] == "user" && len(parts) == 2:
		row.Type = "USER"
		row.EntityID = parts[1]
	case parts[0] == "userid" && len(parts) == 2:
		row.Type = "USER_INDEX"
		row.EntityID = short(parts[1])
	}
	return row
}

// keyPart shows an encoded identity id in clear, or as stored when it doesn't decode.
func keyPart(part string) string {
	if id, err := storage.DecodeKeyPart(part); err == nil {
		return id
	}
	return part
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
