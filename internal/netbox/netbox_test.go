package netbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewWithOutput("error", io.Discard)
}

// fakeNetBox serves the handful of list endpoints the client walks,
// with optional pagination on the sites endpoint.
func fakeNetBox(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/api/dcim/sites/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "1" {
			fmt.Fprint(w, `{"count":2,"next":null,"results":[
				{"id":2,"name":"Branch","slug":"branch","status":{"value":"planned","label":"Planned"}}
			]}`)
			return
		}
		next := server.URL + "/api/dcim/sites/?offset=1"
		fmt.Fprintf(w, `{"count":2,"next":%q,"results":[
			{"id":1,"name":"HQ","slug":"hq","status":{"value":"active","label":"Active"}}
		]}`, next)
	})

	mux.HandleFunc("/api/ipam/vlans/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count":1,"next":null,"results":[
			{"id":10,"vid":100,"name":"users","site":{"name":"HQ","slug":"hq"},"status":{"value":"active"}}
		]}`)
	})

	mux.HandleFunc("/api/ipam/prefixes/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count":1,"next":null,"results":[
			{"id":20,"prefix":"10.1.0.0/24","vlan":{"id":10},"status":{"value":"active"}}
		]}`)
	})

	mux.HandleFunc("/api/extras/tags/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count":1,"next":null,"results":[
			{"id":30,"name":"managed","slug":"managed","color":"2196f3"}
		]}`)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientFollowsPagination(t *testing.T) {
	server := fakeNetBox(t)

	client, err := NewClient(server.URL+"/api", "test-token", false, testLogger())
	require.NoError(t, err)

	sites, err := client.FetchSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "hq", sites[0].Slug)
	assert.Equal(t, "active", sites[0].Status)
	assert.Equal(t, "branch", sites[1].Slug)
	assert.Equal(t, "planned", sites[1].Status)
}

func TestClientRejectsBadToken(t *testing.T) {
	server := fakeNetBox(t)

	client, err := NewClient(server.URL+"/api", "wrong-token", false, testLogger())
	require.NoError(t, err)

	_, err = client.FetchSites(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestFetchIntentResolvesSparseVLANs(t *testing.T) {
	server := fakeNetBox(t)

	client, err := NewClient(server.URL+"/api", "test-token", false, testLogger())
	require.NoError(t, err)

	set, err := client.FetchIntent(context.Background())
	require.NoError(t, err)

	// The prefix came back with only a VLAN internal id; resolution
	// through the VLAN table must fill in site and tag.
	require.Len(t, set.Prefixes, 1)
	assert.Equal(t, "hq", set.Prefixes[0].Site)
	require.NotNil(t, set.Prefixes[0].VID)
	assert.Equal(t, 100, *set.Prefixes[0].VID)
}

func TestNewClientRequiresURLAndToken(t *testing.T) {
	_, err := NewClient("", "tok", false, testLogger())
	assert.Error(t, err)

	_, err = NewClient("https://netbox.example.com/api", "", false, testLogger())
	assert.Error(t, err)
}

func TestNewClientRejectsInsecureTLSInCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")

	_, err := NewClient("https://netbox.example.com/api", "tok", true, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CI")
}

func TestNewClientAllowsInsecureTLSLocally(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "")

	client, err := NewClient("https://netbox.example.com/api", "tok", true, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

type fixtureSource struct {
	set *intent.Set
}

func (f *fixtureSource) FetchIntent(ctx context.Context) (*intent.Set, error) {
	return f.set, nil
}

func TestExporterWritesJSONAndYAMLMirrors(t *testing.T) {
	dir := t.TempDir()
	vid := 100
	source := &fixtureSource{set: &intent.Set{
		Sites:    []intent.Site{{Name: "HQ", Slug: "hq", Status: "active"}},
		VLANs:    []intent.VLAN{{VID: 100, Name: "users", Site: "hq", Status: "active"}},
		Prefixes: []intent.Prefix{{CIDR: "10.1.0.0/24", Site: "hq", VID: &vid, Status: "active"}},
		Tags:     []intent.Tag{{Name: "managed", Slug: "managed"}},
	}}

	exporter := NewExporter(source, testLogger())
	set, err := exporter.Export(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, set.Sites, 1)

	for _, name := range []string{"sites", "prefixes", "vlans", "tags"} {
		jsonData, err := os.ReadFile(filepath.Join(dir, name+".json"))
		require.NoError(t, err, "missing %s.json", name)
		assert.True(t, json.Valid(jsonData))

		yamlData, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
		require.NoError(t, err, "missing %s.yaml", name)
		var decoded interface{}
		assert.NoError(t, yaml.Unmarshal(yamlData, &decoded))
	}

	// The JSON snapshot must round-trip through the intent loader.
	var sites []intent.Site
	data, err := os.ReadFile(filepath.Join(dir, "sites.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &sites))
	assert.Equal(t, "hq", sites[0].Slug)
}
